package search

import "sort"

// Fusion combines vector and lexical candidate lists into a single ranking
// using a weighted sum over min-max normalized scores. A document missing
// from one side contributes zero on that side.
type Fusion struct {
	vectorWeight  float64
	lexicalWeight float64
}

// NewFusion creates a Fusion with the default 0.7 vector / 0.3 lexical split.
func NewFusion() Fusion {
	return Fusion{vectorWeight: 0.7, lexicalWeight: 0.3}
}

// NewFusionWithWeights creates a Fusion with custom weights. Non-positive
// totals fall back to the defaults.
func NewFusionWithWeights(vectorWeight, lexicalWeight float64) Fusion {
	if vectorWeight < 0 {
		vectorWeight = 0
	}
	if lexicalWeight < 0 {
		lexicalWeight = 0
	}
	if vectorWeight+lexicalWeight == 0 {
		return NewFusion()
	}
	return Fusion{vectorWeight: vectorWeight, lexicalWeight: lexicalWeight}
}

// VectorWeight returns the vector share.
func (f Fusion) VectorWeight() float64 { return f.vectorWeight }

// LexicalWeight returns the lexical share.
func (f Fusion) LexicalWeight() float64 { return f.lexicalWeight }

// Fuse merges the two candidate lists keyed by document ID. The output is
// sorted by fused score descending and carries the per-side normalized
// scores for explainability.
func (f Fusion) Fuse(vector, lexical []Hit) []Fused {
	vecNorm := normalize(vector)
	lexNorm := normalize(lexical)

	ids := make(map[string]struct{}, len(vecNorm)+len(lexNorm))
	for id := range vecNorm {
		ids[id] = struct{}{}
	}
	for id := range lexNorm {
		ids[id] = struct{}{}
	}

	results := make([]Fused, 0, len(ids))
	for id := range ids {
		v := vecNorm[id]
		l := lexNorm[id]
		results = append(results, Fused{
			id:           id,
			score:        f.vectorWeight*v + f.lexicalWeight*l,
			vectorScore:  v,
			lexicalScore: l,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].id < results[j].id
	})

	return results
}

// FuseSingle ranks a single candidate list (vector-only or text-only mode)
// keeping raw scores normalized for consistency with hybrid output.
func (f Fusion) FuseSingle(hits []Hit, vectorSide bool) []Fused {
	norm := normalize(hits)

	results := make([]Fused, 0, len(norm))
	for id, s := range norm {
		fused := Fused{id: id, score: s}
		if vectorSide {
			fused.vectorScore = s
		} else {
			fused.lexicalScore = s
		}
		results = append(results, fused)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].id < results[j].id
	})

	return results
}

// normalize min-max scales scores into [0,1]. A single-element list maps
// to 1.0; duplicate IDs keep the higher score.
func normalize(hits []Hit) map[string]float64 {
	if len(hits) == 0 {
		return map[string]float64{}
	}

	best := make(map[string]float64, len(hits))
	minScore, maxScore := hits[0].Score(), hits[0].Score()
	for _, h := range hits {
		if prev, ok := best[h.ID()]; !ok || h.Score() > prev {
			best[h.ID()] = h.Score()
		}
		if h.Score() < minScore {
			minScore = h.Score()
		}
		if h.Score() > maxScore {
			maxScore = h.Score()
		}
	}

	span := maxScore - minScore
	out := make(map[string]float64, len(best))
	for id, s := range best {
		if span == 0 {
			out[id] = 1.0
			continue
		}
		out[id] = (s - minScore) / span
	}
	return out
}

// Hit is a raw (id, score) candidate from one index side.
type Hit struct {
	id    string
	score float64
}

// NewHit creates a Hit.
func NewHit(id string, score float64) Hit {
	return Hit{id: id, score: score}
}

// ID returns the document ID.
func (h Hit) ID() string { return h.id }

// Score returns the raw index score (cosine similarity or BM25 rank).
func (h Hit) Score() float64 { return h.score }

// Fused is a merged candidate with the per-side normalized contributions.
type Fused struct {
	id           string
	score        float64
	vectorScore  float64
	lexicalScore float64
}

// ID returns the document ID.
func (f Fused) ID() string { return f.id }

// Score returns the fused score.
func (f Fused) Score() float64 { return f.score }

// VectorScore returns the normalized vector contribution.
func (f Fused) VectorScore() float64 { return f.vectorScore }

// LexicalScore returns the normalized lexical contribution.
func (f Fused) LexicalScore() float64 { return f.lexicalScore }

// WithScore returns a copy with the fused score replaced. Used by triggers
// and plugins that adjust ranking.
func (f Fused) WithScore(score float64) Fused {
	f.score = score
	return f
}
