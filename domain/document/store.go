package document

import (
	"context"
	"time"

	"github.com/meridiansearch/meridian/domain/storage"
)

// UpsertOutcome reports whether an upsert created or updated a row.
type UpsertOutcome string

// UpsertOutcome values.
const (
	OutcomeCreated UpsertOutcome = "created"
	OutcomeUpdated UpsertOutcome = "updated"
)

// SourceEntry is the (externalID, lastModified) pair used by incremental sync.
type SourceEntry struct {
	externalID   string
	lastModified time.Time
}

// NewSourceEntry creates a SourceEntry.
func NewSourceEntry(externalID string, lastModified time.Time) SourceEntry {
	return SourceEntry{externalID: externalID, lastModified: lastModified}
}

// ExternalID returns the per-source identity.
func (e SourceEntry) ExternalID() string { return e.externalID }

// LastModified returns the source-reported modification time.
func (e SourceEntry) LastModified() time.Time { return e.lastModified }

// Store defines persistence operations for documents.
type Store interface {
	// Upsert atomically writes the document, its attributes, and its
	// permission groups. Identity is (sourceID, externalID) when both are
	// set, otherwise the document ID.
	Upsert(ctx context.Context, doc Document) (Document, UpsertOutcome, error)

	// ByID retrieves a single document.
	ByID(ctx context.Context, id string) (Document, error)

	// ByIDs retrieves documents preserving the order of ids.
	ByIDs(ctx context.Context, ids []string) ([]Document, error)

	// BySourceExternalID retrieves a document by its per-source identity.
	BySourceExternalID(ctx context.Context, sourceID, externalID string) (Document, error)

	// Find retrieves documents matching the given options.
	Find(ctx context.Context, options ...storage.Option) ([]Document, error)

	// Count returns the number of documents matching the given options.
	Count(ctx context.Context, options ...storage.Option) (int64, error)

	// Delete removes a document and its derived rows.
	Delete(ctx context.Context, id string) error

	// DeleteBySourceKeeping removes documents of a source whose external ID
	// is not in keep. Returns the number of removed documents. This is the
	// delete-sweep of incremental sync.
	DeleteBySourceKeeping(ctx context.Context, sourceID string, keep []string) (int64, error)

	// ListForSource returns (externalID, lastModified) pairs for a source.
	ListForSource(ctx context.Context, sourceID string) ([]SourceEntry, error)
}

// EmbeddingStore persists document embeddings separately from document rows
// so documents can exist before and after vectorization.
type EmbeddingStore interface {
	// Save stores or replaces the embedding for a document.
	Save(ctx context.Context, documentID string, vector []float64) error

	// ByDocumentID retrieves the embedding for a document.
	ByDocumentID(ctx context.Context, documentID string) ([]float64, error)

	// HasEmbedding reports whether the document has a stored embedding.
	HasEmbedding(ctx context.Context, documentID string) (bool, error)

	// DeleteByDocumentIDs removes embeddings for the given documents.
	DeleteByDocumentIDs(ctx context.Context, documentIDs []string) error
}
