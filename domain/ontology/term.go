// Package ontology provides query-expansion terms, relations, and triggers.
package ontology

// RelationType classifies a concept relation.
type RelationType string

// RelationType values.
const (
	RelationBroader  RelationType = "broader"
	RelationNarrower RelationType = "narrower"
	RelationRelated  RelationType = "related"
)

// Weight returns the expansion weight contributed by the relation type.
func (r RelationType) Weight() float64 {
	switch r {
	case RelationBroader:
		return 0.6
	case RelationNarrower:
		return 0.8
	case RelationRelated:
		return 0.5
	default:
		return 0.0
	}
}

// Term is an ontology concept.
type Term struct {
	id       string
	label    string
	parentID string
	taxonomy string
}

// NewTerm creates a Term.
func NewTerm(id, label, parentID, taxonomy string) Term {
	return Term{id: id, label: label, parentID: parentID, taxonomy: taxonomy}
}

// ID returns the term ID.
func (t Term) ID() string { return t.id }

// Label returns the display label.
func (t Term) Label() string { return t.label }

// ParentID returns the parent term ID (empty at a root).
func (t Term) ParentID() string { return t.parentID }

// Taxonomy returns the owning taxonomy name.
func (t Term) Taxonomy() string { return t.taxonomy }

// Relation links two terms.
type Relation struct {
	fromID       string
	toID         string
	relationType RelationType
}

// NewRelation creates a Relation.
func NewRelation(fromID, toID string, relationType RelationType) Relation {
	return Relation{fromID: fromID, toID: toID, relationType: relationType}
}

// FromID returns the source term ID.
func (r Relation) FromID() string { return r.fromID }

// ToID returns the target term ID.
func (r Relation) ToID() string { return r.toID }

// Type returns the relation type.
func (r Relation) Type() RelationType { return r.relationType }

// Alias maps a surface form (synonym, acronym) to a term with a weight.
type Alias struct {
	surface string
	termID  string
	weight  float64
}

// NewAlias creates an Alias. Weights outside (0,1] fall back to 1.
func NewAlias(surface, termID string, weight float64) Alias {
	if weight <= 0 || weight > 1 {
		weight = 1
	}
	return Alias{surface: surface, termID: termID, weight: weight}
}

// Surface returns the alias surface form.
func (a Alias) Surface() string { return a.surface }

// TermID returns the canonical term ID.
func (a Alias) TermID() string { return a.termID }

// Weight returns the alias weight.
func (a Alias) Weight() float64 { return a.weight }

// DictionaryEntry maps an acronym or shorthand to its expansions.
type DictionaryEntry struct {
	key        string
	expansions []string
}

// NewDictionaryEntry creates a DictionaryEntry.
func NewDictionaryEntry(key string, expansions []string) DictionaryEntry {
	cp := make([]string, len(expansions))
	copy(cp, expansions)
	return DictionaryEntry{key: key, expansions: cp}
}

// Key returns the shorthand.
func (d DictionaryEntry) Key() string { return d.key }

// Expansions returns the expanded forms.
func (d DictionaryEntry) Expansions() []string {
	cp := make([]string, len(d.expansions))
	copy(cp, d.expansions)
	return cp
}
