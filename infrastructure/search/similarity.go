// Package search provides the vector and lexical index implementations
// behind hybrid retrieval: pgvector and tsvector on PostgreSQL, in-memory
// cosine scan and FTS5 on SQLite.
package search

import (
	"math"
	"sort"
)

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 (opposite) and 1 (identical).
// Returns 0 if either vector has zero magnitude.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, magA, magB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(magA) * math.Sqrt(magB))
}

// SimilarityMatch holds a document ID and its similarity score.
type SimilarityMatch struct {
	documentID string
	similarity float64
}

// NewSimilarityMatch creates a new SimilarityMatch.
func NewSimilarityMatch(documentID string, similarity float64) SimilarityMatch {
	return SimilarityMatch{
		documentID: documentID,
		similarity: similarity,
	}
}

// DocumentID returns the document identifier.
func (m SimilarityMatch) DocumentID() string { return m.documentID }

// Similarity returns the similarity score.
func (m SimilarityMatch) Similarity() float64 { return m.similarity }

// StoredVector holds an embedding vector with its document ID.
type StoredVector struct {
	documentID string
	embedding  []float64
}

// NewStoredVector creates a new StoredVector.
func NewStoredVector(documentID string, embedding []float64) StoredVector {
	vec := make([]float64, len(embedding))
	copy(vec, embedding)
	return StoredVector{
		documentID: documentID,
		embedding:  vec,
	}
}

// DocumentID returns the document identifier.
func (v StoredVector) DocumentID() string { return v.documentID }

// Embedding returns the embedding vector (copy).
func (v StoredVector) Embedding() []float64 {
	result := make([]float64, len(v.embedding))
	copy(result, v.embedding)
	return result
}

// TopKSimilar finds the top-k most similar vectors to the query.
// Results are sorted by similarity descending, ties broken by document ID
// ascending so repeated searches return a stable order.
func TopKSimilar(query []float64, vectors []StoredVector, k int) []SimilarityMatch {
	if len(vectors) == 0 || k <= 0 {
		return []SimilarityMatch{}
	}

	matches := make([]SimilarityMatch, 0, len(vectors))
	for _, v := range vectors {
		similarity := CosineSimilarity(query, v.embedding)
		matches = append(matches, NewSimilarityMatch(v.documentID, similarity))
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].similarity != matches[j].similarity {
			return matches[i].similarity > matches[j].similarity
		}
		return matches[i].documentID < matches[j].documentID
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k]
}
