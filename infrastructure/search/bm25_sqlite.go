package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/meridiansearch/meridian/domain/search"
	"github.com/meridiansearch/meridian/internal/database"
)

// SQL statements for SQLite FTS5 operations.
const (
	sqliteCreateFTSTable = `
CREATE VIRTUAL TABLE IF NOT EXISTS document_fts USING fts5(
    document_id UNINDEXED,
    title,
    content,
    tokenize='porter ascii'
)`

	sqliteDeleteFTSQuery = `DELETE FROM document_fts WHERE document_id = ?`

	sqliteDeleteManyFTSQuery = `DELETE FROM document_fts WHERE document_id IN ?`

	sqliteInsertFTSQuery = `
INSERT INTO document_fts (document_id, title, content)
VALUES (?, ?, ?)`
)

// maxLexicalTerms bounds how many expansion terms one search issues
// against the index.
const maxLexicalTerms = 16

// ErrFTSInitializationFailed indicates SQLite FTS5 initialization failed.
var ErrFTSInitializationFailed = errors.New("failed to initialize FTS5 store")

// SQLiteLexicalStore implements search.LexicalStore using SQLite FTS5.
type SQLiteLexicalStore struct {
	db     database.Database
	logger *slog.Logger
}

// NewSQLiteLexicalStore creates a SQLiteLexicalStore, eagerly creating
// the FTS5 virtual table.
func NewSQLiteLexicalStore(db database.Database, logger *slog.Logger) (*SQLiteLexicalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SQLiteLexicalStore{db: db, logger: logger}

	if err := db.Session(context.Background()).Exec(sqliteCreateFTSTable).Error; err != nil {
		return nil, errors.Join(ErrFTSInitializationFailed, fmt.Errorf("create fts5 table: %w", err))
	}
	return s, nil
}

// Index adds or replaces the lexical entry for a document.
func (s *SQLiteLexicalStore) Index(ctx context.Context, documentID, title, content string) error {
	if documentID == "" {
		return nil
	}
	session := s.db.Session(ctx)
	if err := session.Exec(sqliteDeleteFTSQuery, documentID).Error; err != nil {
		return fmt.Errorf("replace fts entry: %w", err)
	}
	if err := session.Exec(sqliteInsertFTSQuery, documentID, title, content).Error; err != nil {
		return fmt.Errorf("index fts entry: %w", err)
	}
	return nil
}

// Remove deletes lexical entries for the given documents.
func (s *SQLiteLexicalStore) Remove(ctx context.Context, documentIDs []string) error {
	if len(documentIDs) == 0 {
		return nil
	}
	if err := s.db.Session(ctx).Exec(sqliteDeleteManyFTSQuery, documentIDs).Error; err != nil {
		return fmt.Errorf("remove fts entries: %w", err)
	}
	return nil
}

// Search returns up to k (id, rank) hits matching filters. Each expansion
// term runs as its own MATCH; a document keeps its best weighted rank so
// a strong match on a low-weight synonym cannot outscore a direct hit.
func (s *SQLiteLexicalStore) Search(ctx context.Context, query search.TermQuery, k int, filters search.Filters) ([]search.Hit, error) {
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

func (s *SQLiteLexicalStore) matchTerm(ctx context.Context, term string, limit int, filters search.Filters) ([]search.Hit, error) {
	match := escapeFTS5Term(term)
	if match == "" {
		return nil, nil
	}

	query := s.db.Session(ctx).
		Table("document_fts").
		Select("document_fts.document_id, bm25(document_fts) AS score").
		Joins("JOIN documents ON documents.id = document_fts.document_id").
		Where("document_fts MATCH ?", match)
	query = applyDocumentFilters(query, filters)
	// SQLite bm25() returns negative scores where more negative is better.
	query = query.Order("score ASC").Limit(limit)

	rows, err := query.Rows()
	if err != nil {
		return nil, fmt.Errorf("fts5 search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []search.Hit
	for rows.Next() {
		var documentID string
		var score float64
		if err := rows.Scan(&documentID, &score); err != nil {
			return nil, fmt.Errorf("scan fts5 hit: %w", err)
		}
		hits = append(hits, search.NewHit(documentID, -score))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fts5 rows: %w", err)
	}
	return hits, nil
}

// escapeFTS5Term quotes a term as an FTS5 phrase so operator characters
// in user input cannot change the query structure.
func escapeFTS5Term(term string) string {
	term = strings.TrimSpace(term)
	if term == "" {
		return ""
	}
	return `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
}

// topHits sorts accumulated scores descending, ties by ID ascending, and
// truncates to k.
func topHits(best map[string]float64, k int) []search.Hit {
	hits := make([]search.Hit, 0, len(best))
	for id, score := range best {
		hits = append(hits, search.NewHit(id, score))
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score() != hits[j].Score() {
			return hits[i].Score() > hits[j].Score()
		}
		return hits[i].ID() < hits[j].ID()
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}
