package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridiansearch/meridian/domain/search"
	"github.com/meridiansearch/meridian/infrastructure/persistence"
	"github.com/meridiansearch/meridian/internal/database"
)

// SQLiteVectorStore implements search.VectorStore by brute-force cosine
// scan over JSON-stored vectors. The candidate set is narrowed by the
// structural filters first so only matching documents are scored.
type SQLiteVectorStore struct {
	db         database.Database
	embeddings *persistence.EmbeddingStore
	logger     *slog.Logger
}

// NewSQLiteVectorStore creates a SQLiteVectorStore.
func NewSQLiteVectorStore(db database.Database, embeddings *persistence.EmbeddingStore, logger *slog.Logger) *SQLiteVectorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteVectorStore{db: db, embeddings: embeddings, logger: logger}
}

// Search returns up to k (id, cosineSimilarity) hits matching filters.
func (s *SQLiteVectorStore) Search(ctx context.Context, queryVector []float64, k int, filters search.Filters) ([]search.Hit, error) {
	if len(queryVector) == 0 || k <= 0 {
		return []search.Hit{}, nil
	}

	var candidateIDs []string
	if !filters.IsZero() {
		query := s.db.Session(ctx).Table("documents").Select("documents.id")
		query = applyDocumentFilters(query, filters)
		if err := query.Pluck("documents.id", &candidateIDs).Error; err != nil {
			return nil, fmt.Errorf("filter vector candidates: %w", err)
		}
		if len(candidateIDs) == 0 {
			return []search.Hit{}, nil
		}
	}

	stored, err := s.embeddings.Vectors(ctx, candidateIDs)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return []search.Hit{}, nil
	}

	vectors := make([]StoredVector, 0, len(stored))
	for _, e := range stored {
		if len(e.Vector) != len(queryVector) {
			s.logger.Warn("skipping embedding with mismatched dimension",
				"document_id", e.DocumentID, "have", len(e.Vector), "want", len(queryVector))
			continue
		}
		vectors = append(vectors, NewStoredVector(e.DocumentID, e.Vector))
	}

	matches := TopKSimilar(queryVector, vectors, k)
	hits := make([]search.Hit, len(matches))
	for i, m := range matches {
		hits[i] = search.NewHit(m.DocumentID(), m.Similarity())
	}
	return hits, nil
}
