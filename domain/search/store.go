package search

import "context"

// VectorStore performs approximate-nearest-neighbor retrieval over document
// embeddings (cosine similarity). Documents without a stored embedding are
// never returned.
type VectorStore interface {
	// Search returns up to k (id, cosineSimilarity) hits matching filters.
	Search(ctx context.Context, queryVector []float64, k int, filters Filters) ([]Hit, error)
}

// LexicalStore performs BM25-ranked full-text retrieval over tokenized
// title and content.
type LexicalStore interface {
	// Search returns up to k (id, rank) hits matching filters. Terms may
	// carry expansion weights from the query plan.
	Search(ctx context.Context, query TermQuery, k int, filters Filters) ([]Hit, error)

	// Index adds or replaces the lexical entry for a document.
	Index(ctx context.Context, documentID, title, content string) error

	// Remove deletes lexical entries for the given documents.
	Remove(ctx context.Context, documentIDs []string) error
}

// TermQuery is a disjunctive weighted term query produced by query
// expansion. A bare query string becomes a single group of weight-1 terms.
type TermQuery struct {
	groups []TermGroup
}

// NewTermQuery creates a TermQuery from groups.
func NewTermQuery(groups ...TermGroup) TermQuery {
	cp := make([]TermGroup, len(groups))
	copy(cp, groups)
	return TermQuery{groups: cp}
}

// Groups returns the term groups (OR-ed together).
func (q TermQuery) Groups() []TermGroup {
	cp := make([]TermGroup, len(q.groups))
	copy(cp, q.groups)
	return cp
}

// IsEmpty reports whether the query carries no terms.
func (q TermQuery) IsEmpty() bool {
	for _, g := range q.groups {
		if len(g.terms) > 0 {
			return false
		}
	}
	return true
}

// Terms returns every term across all groups, deduplicated, keeping the
// highest weight per term.
func (q TermQuery) Terms() []WeightedTerm {
	best := map[string]float64{}
	order := []string{}
	for _, g := range q.groups {
		for _, t := range g.terms {
			if w, ok := best[t.term]; !ok {
				best[t.term] = t.weight
				order = append(order, t.term)
			} else if t.weight > w {
				best[t.term] = t.weight
			}
		}
	}
	out := make([]WeightedTerm, len(order))
	for i, term := range order {
		out[i] = WeightedTerm{term: term, weight: best[term]}
	}
	return out
}

// TermGroup is one disjunct: terms that may each satisfy the group.
type TermGroup struct {
	terms []WeightedTerm
}

// NewTermGroup creates a TermGroup.
func NewTermGroup(terms ...WeightedTerm) TermGroup {
	cp := make([]WeightedTerm, len(terms))
	copy(cp, terms)
	return TermGroup{terms: cp}
}

// Terms returns the group's weighted terms.
func (g TermGroup) Terms() []WeightedTerm {
	cp := make([]WeightedTerm, len(g.terms))
	copy(cp, g.terms)
	return cp
}

// WeightedTerm is a term with its expansion weight.
type WeightedTerm struct {
	term   string
	weight float64
}

// NewWeightedTerm creates a WeightedTerm.
func NewWeightedTerm(term string, weight float64) WeightedTerm {
	return WeightedTerm{term: term, weight: weight}
}

// Term returns the term text.
func (t WeightedTerm) Term() string { return t.term }

// Weight returns the expansion weight.
func (t WeightedTerm) Weight() float64 { return t.weight }
