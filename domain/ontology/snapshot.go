package ontology

import "strings"

// Snapshot is an immutable in-memory view of the ontology used for
// deterministic query expansion. It is rebuilt whenever the underlying
// tables change and requires no network access at query time.
type Snapshot struct {
	termsByID    map[string]Term
	termsByLabel map[string]Term
	relations    map[string][]Relation
	aliases      map[string][]Alias
	dictionary   map[string]DictionaryEntry
}

// NewSnapshot builds a Snapshot from the ontology tables. Labels, alias
// surfaces, and dictionary keys are matched case-insensitively.
func NewSnapshot(terms []Term, relations []Relation, aliases []Alias, dictionary []DictionaryEntry) *Snapshot {
	s := &Snapshot{
		termsByID:    make(map[string]Term, len(terms)),
		termsByLabel: make(map[string]Term, len(terms)),
		relations:    make(map[string][]Relation),
		aliases:      make(map[string][]Alias),
		dictionary:   make(map[string]DictionaryEntry, len(dictionary)),
	}
	for _, t := range terms {
		s.termsByID[t.ID()] = t
		s.termsByLabel[strings.ToLower(t.Label())] = t
	}
	for _, r := range relations {
		s.relations[r.FromID()] = append(s.relations[r.FromID()], r)
	}
	for _, a := range aliases {
		key := strings.ToLower(a.Surface())
		s.aliases[key] = append(s.aliases[key], a)
	}
	for _, d := range dictionary {
		s.dictionary[strings.ToLower(d.Key())] = d
	}
	return s
}

// EmptySnapshot returns a snapshot with no ontology content. Expansion over
// it is the identity.
func EmptySnapshot() *Snapshot {
	return NewSnapshot(nil, nil, nil, nil)
}

// TermByLabel looks up a term by its label (case-insensitive).
func (s *Snapshot) TermByLabel(label string) (Term, bool) {
	t, ok := s.termsByLabel[strings.ToLower(label)]
	return t, ok
}

// TermByID looks up a term by ID.
func (s *Snapshot) TermByID(id string) (Term, bool) {
	t, ok := s.termsByID[id]
	return t, ok
}

// RelationsFrom returns outgoing relations of a term.
func (s *Snapshot) RelationsFrom(termID string) []Relation {
	rels := s.relations[termID]
	cp := make([]Relation, len(rels))
	copy(cp, rels)
	return cp
}

// AliasesFor returns aliases matching a surface form (case-insensitive).
func (s *Snapshot) AliasesFor(surface string) []Alias {
	as := s.aliases[strings.ToLower(surface)]
	cp := make([]Alias, len(as))
	copy(cp, as)
	return cp
}

// DictionaryLookup returns the dictionary entry for a shorthand.
func (s *Snapshot) DictionaryLookup(key string) (DictionaryEntry, bool) {
	d, ok := s.dictionary[strings.ToLower(key)]
	return d, ok
}

// IsEmpty reports whether the snapshot carries no expansion content.
func (s *Snapshot) IsEmpty() bool {
	return len(s.termsByID) == 0 && len(s.aliases) == 0 && len(s.dictionary) == 0
}
