package persistence

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meridiansearch/meridian/internal/database"
)

// EmbeddingTable is the single table holding document vectors. Postgres
// stores them as pgvector columns, SQLite as JSON.
const EmbeddingTable = "document_embeddings"

// ErrVectorInitializationFailed indicates the embedding table could not
// be prepared.
var ErrVectorInitializationFailed = errors.New("failed to initialize embedding store")

// ErrDimensionMismatch indicates the stored vector width differs from the
// embedder's.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// SQL specific to pgvector (extension, index, catalog dimension lookup).
const (
	pgvCreateExtension = `CREATE EXTENSION IF NOT EXISTS vector`

	pgvCreateIndex = `
CREATE INDEX IF NOT EXISTS document_embeddings_idx
ON document_embeddings
USING ivfflat (embedding vector_cosine_ops)
WITH (lists = 100)`

	pgvCheckDimension = `
SELECT a.atttypmod as dimension
FROM pg_attribute a
JOIN pg_class c ON a.attrelid = c.oid
WHERE c.relname = 'document_embeddings'
AND a.attname = 'embedding'`
)

// PgEmbeddingModel is the GORM model for the pgvector variant.
type PgEmbeddingModel struct {
	ID         int64             `gorm:"column:id;primaryKey;autoIncrement"`
	DocumentID string            `gorm:"column:document_id;uniqueIndex"`
	Embedding  database.PgVector `gorm:"column:embedding;type:vector"`
}

// TableName overrides the GORM table name.
func (PgEmbeddingModel) TableName() string { return EmbeddingTable }

// Float64Slice is a custom type for JSON serialization of []float64 in SQLite.
type Float64Slice []float64

// Scan implements sql.Scanner for reading JSON from SQLite.
func (f *Float64Slice) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Float64Slice", value)
	}

	return json.Unmarshal(data, f)
}

// Value implements driver.Valuer for writing JSON to SQLite.
func (f Float64Slice) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

// SQLiteEmbeddingModel is the GORM model for the SQLite variant.
type SQLiteEmbeddingModel struct {
	ID         int64        `gorm:"column:id;primaryKey;autoIncrement"`
	DocumentID string       `gorm:"column:document_id;uniqueIndex"`
	Embedding  Float64Slice `gorm:"column:embedding;type:json"`
}

// TableName overrides the GORM table name.
func (SQLiteEmbeddingModel) TableName() string { return EmbeddingTable }

// StoredEmbedding pairs a document with its stored vector, the working
// set of brute-force similarity search.
type StoredEmbedding struct {
	DocumentID string
	Vector     []float64
}

// EmbeddingStore implements document.EmbeddingStore over either dialect.
type EmbeddingStore struct {
	db     database.Database
	logger *slog.Logger
}

// NewEmbeddingStore creates an EmbeddingStore, eagerly preparing the
// table. On Postgres this installs the pgvector extension, creates the
// table with the given dimension, and verifies an existing table matches.
func NewEmbeddingStore(ctx context.Context, db database.Database, dimension int, logger *slog.Logger) (*EmbeddingStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &EmbeddingStore{db: db, logger: logger}

	rawDB := db.Session(ctx)

	if db.IsPostgres() {
		if err := rawDB.Exec(pgvCreateExtension).Error; err != nil {
			return nil, errors.Join(ErrVectorInitializationFailed, fmt.Errorf("create extension: %w", err))
		}

		// Dynamic dimension requires raw SQL.
		createTableSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id SERIAL PRIMARY KEY,
    document_id VARCHAR(255) NOT NULL UNIQUE,
    embedding VECTOR(%d) NOT NULL
)`, EmbeddingTable, dimension)
		if err := rawDB.Exec(createTableSQL).Error; err != nil {
			return nil, errors.Join(ErrVectorInitializationFailed, fmt.Errorf("create table: %w", err))
		}

		if err := rawDB.Exec(pgvCreateIndex).Error; err != nil {
			logger.Warn("failed to create index (may already exist)", "error", err)
		}

		var dbDimension int
		result := rawDB.Raw(pgvCheckDimension).Scan(&dbDimension)
		if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, errors.Join(ErrVectorInitializationFailed, fmt.Errorf("check dimension: %w", result.Error))
		}
		if result.RowsAffected > 0 && dbDimension != dimension {
			return nil, fmt.Errorf("%w: database has %d, embedder has %d", ErrDimensionMismatch, dbDimension, dimension)
		}
		return s, nil
	}

	createTableSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id VARCHAR(255) NOT NULL UNIQUE,
    embedding JSON NOT NULL
)`, EmbeddingTable)
	if err := rawDB.Exec(createTableSQL).Error; err != nil {
		return nil, errors.Join(ErrVectorInitializationFailed, fmt.Errorf("create table: %w", err))
	}
	return s, nil
}

// Save stores or replaces the embedding for a document.
func (s *EmbeddingStore) Save(ctx context.Context, documentID string, vector []float64) error {
	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"embedding"}),
	}

	var err error
	if s.db.IsPostgres() {
		model := PgEmbeddingModel{
			DocumentID: documentID,
			Embedding:  database.NewPgVector(vector),
		}
		err = s.db.Session(ctx).Clauses(upsert).Create(&model).Error
	} else {
		model := SQLiteEmbeddingModel{
			DocumentID: documentID,
			Embedding:  Float64Slice(vector),
		}
		err = s.db.Session(ctx).Clauses(upsert).Create(&model).Error
	}
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

// ByDocumentID retrieves the embedding for a document.
func (s *EmbeddingStore) ByDocumentID(ctx context.Context, documentID string) ([]float64, error) {
	if s.db.IsPostgres() {
		var model PgEmbeddingModel
		err := s.db.Session(ctx).First(&model, "document_id = ?", documentID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: embedding", database.ErrNotFound)
			}
			return nil, fmt.Errorf("find embedding: %w", err)
		}
		return model.Embedding.Floats(), nil
	}

	var model SQLiteEmbeddingModel
	err := s.db.Session(ctx).First(&model, "document_id = ?", documentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: embedding", database.ErrNotFound)
		}
		return nil, fmt.Errorf("find embedding: %w", err)
	}
	return model.Embedding, nil
}

// HasEmbedding reports whether the document has a stored embedding.
func (s *EmbeddingStore) HasEmbedding(ctx context.Context, documentID string) (bool, error) {
	var count int64
	err := s.db.Session(ctx).Table(EmbeddingTable).
		Where("document_id = ?", documentID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count embeddings: %w", err)
	}
	return count > 0, nil
}

// DeleteByDocumentIDs removes embeddings for the given documents.
func (s *EmbeddingStore) DeleteByDocumentIDs(ctx context.Context, documentIDs []string) error {
	if len(documentIDs) == 0 {
		return nil
	}
	err := s.db.Session(ctx).
		Exec("DELETE FROM "+EmbeddingTable+" WHERE document_id IN ?", documentIDs).Error
	if err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}
	return nil
}

// Vectors loads stored vectors for the given documents, or every stored
// vector when ids is empty. Brute-force similarity search on SQLite runs
// over this set.
func (s *EmbeddingStore) Vectors(ctx context.Context, documentIDs []string) ([]StoredEmbedding, error) {
	if s.db.IsPostgres() {
		var models []PgEmbeddingModel
		query := s.db.Session(ctx)
		if len(documentIDs) > 0 {
			query = query.Where("document_id IN ?", documentIDs)
		}
		if err := query.Find(&models).Error; err != nil {
			return nil, fmt.Errorf("load embeddings: %w", err)
		}
		out := make([]StoredEmbedding, 0, len(models))
		for _, m := range models {
			out = append(out, StoredEmbedding{DocumentID: m.DocumentID, Vector: m.Embedding.Floats()})
		}
		return out, nil
	}

	var models []SQLiteEmbeddingModel
	query := s.db.Session(ctx)
	if len(documentIDs) > 0 {
		query = query.Where("document_id IN ?", documentIDs)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	out := make([]StoredEmbedding, 0, len(models))
	for _, m := range models {
		if len(m.Embedding) == 0 {
			s.logger.Warn("skipping empty embedding", "document_id", m.DocumentID)
			continue
		}
		out = append(out, StoredEmbedding{DocumentID: m.DocumentID, Vector: m.Embedding})
	}
	return out, nil
}
