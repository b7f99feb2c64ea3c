package enrichment

import (
	"context"

	"github.com/meridiansearch/meridian/domain/storage"
)

// Store defines persistence operations for enrichment results.
type Store interface {
	// Save creates or replaces the result for (documentID, version).
	Save(ctx context.Context, r Result) error

	// ByDocumentID retrieves the latest result for a document.
	ByDocumentID(ctx context.Context, documentID string) (Result, error)

	// Pending returns document IDs with no completed result at their
	// current version, bounded by limit.
	Pending(ctx context.Context, limit int) ([]string, error)

	// DeleteByDocumentIDs removes results for the given documents.
	DeleteByDocumentIDs(ctx context.Context, documentIDs []string) error
}

// RelationshipStore defines persistence operations for entity
// relationships.
type RelationshipStore interface {
	// Union merges documentID into the relationship row for the entity,
	// creating the row when absent.
	Union(ctx context.Context, entityType EntityType, normalized, documentID string) error

	// ByEntity retrieves the relationship for one entity.
	ByEntity(ctx context.Context, entityType EntityType, normalized string) (Relationship, error)

	// Find retrieves relationships matching the given options, typically
	// ordered by document count.
	Find(ctx context.Context, options ...storage.Option) ([]Relationship, error)

	// RemoveDocument drops a document from every relationship that
	// mentions it, deleting rows that become empty.
	RemoveDocument(ctx context.Context, documentID string) error
}
