package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/meridiansearch/meridian/domain/search"
	"github.com/meridiansearch/meridian/internal/database"
)

// SQL statements for the PostgreSQL full-text index. Title matches are
// weighted above content via setweight, applied by a trigger so the tsv
// column stays consistent with whatever writes the row.
const (
	pgCreateLexicalTable = `
CREATE TABLE IF NOT EXISTS document_lexical (
    document_id VARCHAR(255) PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    tsv TSVECTOR
)`

	pgCreateLexicalIndex = `
CREATE INDEX IF NOT EXISTS document_lexical_tsv_idx
ON document_lexical USING GIN (tsv)`

	pgCreateLexicalFunction = `
CREATE OR REPLACE FUNCTION document_lexical_update_tsv()
RETURNS trigger AS $$
BEGIN
    NEW.tsv := setweight(to_tsvector('english', NEW.title), 'A')
        || setweight(to_tsvector('english', NEW.content), 'B');
    RETURN NEW;
END
$$ LANGUAGE plpgsql`

	pgCreateLexicalTrigger = `
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_trigger WHERE tgname = 'document_lexical_tsv_trigger'
    ) THEN
        CREATE TRIGGER document_lexical_tsv_trigger
        BEFORE INSERT OR UPDATE ON document_lexical
        FOR EACH ROW EXECUTE FUNCTION document_lexical_update_tsv();
    END IF;
END
$$`

	pgUpsertLexicalQuery = `
INSERT INTO document_lexical (document_id, title, content)
VALUES (?, ?, ?)
ON CONFLICT (document_id) DO UPDATE SET title = EXCLUDED.title, content = EXCLUDED.content`

	pgDeleteLexicalQuery = `DELETE FROM document_lexical WHERE document_id IN ?`
)

// ErrLexicalInitializationFailed indicates full-text initialization failed.
var ErrLexicalInitializationFailed = errors.New("failed to initialize lexical store")

// PostgresLexicalStore implements search.LexicalStore using tsvector and
// ts_rank_cd.
type PostgresLexicalStore struct {
	db     database.Database
	logger *slog.Logger
}

// NewPostgresLexicalStore creates a PostgresLexicalStore, eagerly
// creating the table, trigger, and GIN index.
func NewPostgresLexicalStore(db database.Database, logger *slog.Logger) (*PostgresLexicalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PostgresLexicalStore{db: db, logger: logger}

	session := db.Session(context.Background())
	for _, stmt := range []string{
		pgCreateLexicalTable,
		pgCreateLexicalIndex,
		pgCreateLexicalFunction,
		pgCreateLexicalTrigger,
	} {
		if err := session.Exec(stmt).Error; err != nil {
			return nil, errors.Join(ErrLexicalInitializationFailed, err)
		}
	}
	return s, nil
}

// Index adds or replaces the lexical entry for a document.
func (s *PostgresLexicalStore) Index(ctx context.Context, documentID, title, content string) error {
	if documentID == "" {
		return nil
	}
	if err := s.db.Session(ctx).Exec(pgUpsertLexicalQuery, documentID, title, content).Error; err != nil {
		return fmt.Errorf("index lexical entry: %w", err)
	}
	return nil
}

// Remove deletes lexical entries for the given documents.
func (s *PostgresLexicalStore) Remove(ctx context.Context, documentIDs []string) error {
	if len(documentIDs) == 0 {
		return nil
	}
	if err := s.db.Session(ctx).Exec(pgDeleteLexicalQuery, documentIDs).Error; err != nil {
		return fmt.Errorf("remove lexical entries: %w", err)
	}
	return nil
}

// Search returns up to k (id, rank) hits matching filters. Each expansion
// term runs as its own tsquery; a document keeps its best weighted rank.
func (s *PostgresLexicalStore) Search(ctx context.Context, query search.TermQuery, k int, filters search.Filters) ([]search.Hit, error) {
	if query.IsEmpty() || k <= 0 {
		return []search.Hit{}, nil
	}

	terms := query.Terms()
	if len(terms) > maxLexicalTerms {
		terms = terms[:maxLexicalTerms]
	}

	best := map[string]float64{}
	for _, term := range terms {
		hits, err := s.matchTerm(ctx, term.Term(), k*2, filters)
		if err != nil {
			return nil, err
		}
		for _, hit := range hits {
			weighted := hit.Score() * term.Weight()
			if weighted > best[hit.ID()] {
				best[hit.ID()] = weighted
			}
		}
	}

	return topHits(best, k), nil
}

func (s *PostgresLexicalStore) matchTerm(ctx context.Context, term string, limit int, filters search.Filters) ([]search.Hit, error) {
	sanitized := sanitizeTsQueryTerm(term)
	if sanitized == "" {
		return nil, nil
	}

	query := s.db.Session(ctx).
		Table("document_lexical").
		Select("document_lexical.document_id, ts_rank_cd(tsv, plainto_tsquery('english', ?)) AS score", sanitized).
		Joins("JOIN documents ON documents.id = document_lexical.document_id").
		Where("tsv @@ plainto_tsquery('english', ?)", sanitized)
	query = applyDocumentFilters(query, filters)
	query = query.Order("score DESC").Limit(limit)

	rows, err := query.Rows()
	if err != nil {
		return nil, fmt.Errorf("tsvector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []search.Hit
	for rows.Next() {
		var documentID string
		var score float64
		if err := rows.Scan(&documentID, &score); err != nil {
			return nil, fmt.Errorf("scan tsvector hit: %w", err)
		}
		hits = append(hits, search.NewHit(documentID, score))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tsvector rows: %w", err)
	}
	return hits, nil
}

// sanitizeTsQueryTerm strips characters that confuse plainto_tsquery.
func sanitizeTsQueryTerm(term string) string {
	replacer := strings.NewReplacer("&", " ", "|", " ", "!", " ", "(", " ", ")", " ", ":", " ", "'", " ")
	return strings.TrimSpace(replacer.Replace(term))
}
