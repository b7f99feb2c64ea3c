package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridiansearch/meridian/domain/search"
	"github.com/meridiansearch/meridian/infrastructure/persistence"
	"github.com/meridiansearch/meridian/internal/database"
)

// PgvectorStore implements search.VectorStore using the pgvector
// extension. NewEmbeddingStore prepares the table and ivfflat index; this
// store only queries it.
type PgvectorStore struct {
	db     database.Database
	logger *slog.Logger
}

// NewPgvectorStore creates a PgvectorStore.
func NewPgvectorStore(db database.Database, logger *slog.Logger) *PgvectorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PgvectorStore{db: db, logger: logger}
}

// Search returns up to k (id, cosineSimilarity) hits matching filters.
// pgvector's <=> operator is cosine distance, so similarity is 1 - distance.
func (s *PgvectorStore) Search(ctx context.Context, queryVector []float64, k int, filters search.Filters) ([]search.Hit, error) {
	if len(queryVector) == 0 || k <= 0 {
		return []search.Hit{}, nil
	}

	vector := database.NewPgVector(queryVector)

	query := s.db.Session(ctx).
		Table(persistence.EmbeddingTable).
		Select(fmt.Sprintf("%s.document_id, 1 - (embedding <=> ?) AS score", persistence.EmbeddingTable), vector).
		Joins(fmt.Sprintf("JOIN documents ON documents.id = %s.document_id", persistence.EmbeddingTable))
	query = applyDocumentFilters(query, filters)
	query = query.Order("score DESC").Limit(k)

	rows, err := query.Rows()
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []search.Hit
	for rows.Next() {
		var documentID string
		var score float64
		if err := rows.Scan(&documentID, &score); err != nil {
			return nil, fmt.Errorf("scan pgvector hit: %w", err)
		}
		hits = append(hits, search.NewHit(documentID, score))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector rows: %w", err)
	}
	return hits, nil
}
