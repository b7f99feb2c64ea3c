package ontology

import (
	"strings"
	"unicode"
)

// stopwords excluded from query plans.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "such": {},
	"that": {}, "the": {}, "their": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "to": {}, "was": {}, "will": {}, "with": {},
}

// QueryPlan is the expansion output: disjunctive groups of weighted terms
// plus trigger-contributed boosts and injections.
type QueryPlan struct {
	groups         []PlanGroup
	docTypeBoosts  map[string]float64
	termInjections []string
}

// Groups returns the plan's term groups, one per surviving query token.
func (p QueryPlan) Groups() []PlanGroup {
	cp := make([]PlanGroup, len(p.groups))
	copy(cp, p.groups)
	return cp
}

// DocTypeBoosts returns trigger doc-type boosts keyed by document type.
func (p QueryPlan) DocTypeBoosts() map[string]float64 {
	cp := make(map[string]float64, len(p.docTypeBoosts))
	for k, v := range p.docTypeBoosts {
		cp[k] = v
	}
	return cp
}

// TermInjections returns trigger-injected terms.
func (p QueryPlan) TermInjections() []string {
	cp := make([]string, len(p.termInjections))
	copy(cp, p.termInjections)
	return cp
}

// IsIdentity reports whether the plan contains only the original tokens at
// weight 1 with no boosts or injections.
func (p QueryPlan) IsIdentity() bool {
	if len(p.docTypeBoosts) > 0 || len(p.termInjections) > 0 {
		return false
	}
	for _, g := range p.groups {
		if len(g.terms) != 1 {
			return false
		}
	}
	return true
}

// WithDocTypeBoost returns a copy with a doc-type boost added.
func (p QueryPlan) WithDocTypeBoost(docType string, boost float64) QueryPlan {
	boosts := p.DocTypeBoosts()
	boosts[docType] += boost
	p.docTypeBoosts = boosts
	return p
}

// WithTermInjections returns a copy with injected terms appended.
func (p QueryPlan) WithTermInjections(terms ...string) QueryPlan {
	injections := p.TermInjections()
	p.termInjections = append(injections, terms...)
	return p
}

// PlanGroup is one disjunct: the original token plus its expansions.
type PlanGroup struct {
	token string
	terms []PlanTerm
}

// Token returns the original query token.
func (g PlanGroup) Token() string { return g.token }

// Terms returns the group's weighted terms, original token first.
func (g PlanGroup) Terms() []PlanTerm {
	cp := make([]PlanTerm, len(g.terms))
	copy(cp, g.terms)
	return cp
}

// PlanTerm is a term and its expansion weight.
type PlanTerm struct {
	term   string
	weight float64
}

// NewPlanTerm creates a PlanTerm.
func NewPlanTerm(term string, weight float64) PlanTerm {
	return PlanTerm{term: term, weight: weight}
}

// Term returns the term text.
func (t PlanTerm) Term() string { return t.term }

// Weight returns the expansion weight.
func (t PlanTerm) Weight() float64 { return t.weight }

// Expander produces deterministic query plans from an ontology snapshot.
type Expander struct {
	snapshot *Snapshot
}

// NewExpander creates an Expander over a snapshot.
func NewExpander(snapshot *Snapshot) Expander {
	if snapshot == nil {
		snapshot = EmptySnapshot()
	}
	return Expander{snapshot: snapshot}
}

// Expand tokenizes the query, strips stopwords, and attaches aliases,
// dictionary expansions, and depth-1 related concepts to each surviving
// token. Expansion is deterministic for a given snapshot and touches no
// network.
func (e Expander) Expand(query string) QueryPlan {
	tokens := Tokenize(query)

	groups := make([]PlanGroup, 0, len(tokens))
	for _, token := range tokens {
		group := PlanGroup{
			token: token,
			terms: []PlanTerm{{term: token, weight: 1.0}},
		}
		seen := map[string]struct{}{token: {}}

		add := func(term string, weight float64) {
			term = strings.ToLower(term)
			if term == "" {
				return
			}
			if _, dup := seen[term]; dup {
				return
			}
			seen[term] = struct{}{}
			group.terms = append(group.terms, PlanTerm{term: term, weight: weight})
		}

		// Dictionary expansions (acronyms, shorthands).
		if entry, ok := e.snapshot.DictionaryLookup(token); ok {
			for _, exp := range entry.Expansions() {
				add(exp, 0.9)
			}
		}

		// Aliases pointing at canonical terms, then that term's depth-1
		// relations weighted by alias weight x relation weight.
		for _, alias := range e.snapshot.AliasesFor(token) {
			if term, ok := e.snapshot.TermByID(alias.TermID()); ok {
				add(term.Label(), alias.Weight())
				e.addRelated(term.ID(), alias.Weight(), add)
			}
		}

		// Direct label match.
		if term, ok := e.snapshot.TermByLabel(token); ok {
			e.addRelated(term.ID(), 1.0, add)
		}

		groups = append(groups, group)
	}

	return QueryPlan{groups: groups}
}

func (e Expander) addRelated(termID string, baseWeight float64, add func(string, float64)) {
	for _, rel := range e.snapshot.RelationsFrom(termID) {
		if related, ok := e.snapshot.TermByID(rel.ToID()); ok {
			add(related.Label(), baseWeight*rel.Type().Weight())
		}
	}
}

// Tokenize lowercases, splits on runs of non-letter/non-digit runes, and
// strips stopwords. Letters from any script are kept, so accented and CJK
// queries tokenize rather than vanish.
func Tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}
