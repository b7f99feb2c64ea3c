package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/storage"
	"github.com/meridiansearch/meridian/internal/database"
)

// DocumentStore implements document.Store using GORM.
type DocumentStore struct {
	database.Repository[document.Document, DocumentModel]
	db database.Database
}

// NewDocumentStore creates a DocumentStore.
func NewDocumentStore(db database.Database) DocumentStore {
	return DocumentStore{
		Repository: database.NewRepository[document.Document, DocumentModel](db, DocumentMapper{}, "document"),
		db:         db,
	}
}

// Upsert atomically writes the document. Identity is (sourceID, externalID)
// when both are set, otherwise the document ID.
func (s DocumentStore) Upsert(ctx context.Context, doc document.Document) (document.Document, document.UpsertOutcome, error) {
	model := s.Mapper().ToModel(doc)

	var existing DocumentModel
	query := s.DB(ctx).Model(&DocumentModel{})
	if doc.SourceID() != "" && doc.ExternalID() != "" {
		query = query.Where("source_id = ? AND external_id = ?", doc.SourceID(), doc.ExternalID())
	} else {
		query = query.Where("id = ?", doc.ID())
	}

	err := query.First(&existing).Error
	switch {
	case err == nil:
		// Keep the stored identity and creation time on re-sync.
		model.ID = existing.ID
		model.CreatedAt = existing.CreatedAt
		model.UpdatedAt = time.Now().UTC()
		if result := s.DB(ctx).Save(&model); result.Error != nil {
			return document.Document{}, "", fmt.Errorf("update document: %w", result.Error)
		}
		return s.Mapper().ToDomain(model), document.OutcomeUpdated, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if result := s.DB(ctx).Create(&model); result.Error != nil {
			return document.Document{}, "", fmt.Errorf("create document: %w", result.Error)
		}
		return s.Mapper().ToDomain(model), document.OutcomeCreated, nil
	default:
		return document.Document{}, "", fmt.Errorf("find document for upsert: %w", err)
	}
}

// ByID retrieves a single document.
func (s DocumentStore) ByID(ctx context.Context, id string) (document.Document, error) {
	return s.FindOne(ctx, storage.WithID(id))
}

// ByIDs retrieves documents preserving the order of ids.
func (s DocumentStore) ByIDs(ctx context.Context, ids []string) ([]document.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := s.Find(ctx, storage.WithIDIn(ids))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]document.Document, len(found))
	for _, d := range found {
		byID[d.ID()] = d
	}
	out := make([]document.Document, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// BySourceExternalID retrieves a document by its per-source identity.
func (s DocumentStore) BySourceExternalID(ctx context.Context, sourceID, externalID string) (document.Document, error) {
	return s.FindOne(ctx,
		storage.WithSourceID(sourceID),
		storage.WithExternalID(externalID),
	)
}

// Delete removes a document and its derived rows.
func (s DocumentStore) Delete(ctx context.Context, id string) error {
	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := deleteDerived(tx, []string{id}); err != nil {
			return err
		}
		if err := tx.Delete(&DocumentModel{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return nil
	})
}

// DeleteBySourceKeeping removes documents of a source whose external ID is
// not in keep. This is the delete-sweep of incremental sync.
func (s DocumentStore) DeleteBySourceKeeping(ctx context.Context, sourceID string, keep []string) (int64, error) {
	var swept []string
	query := s.DB(ctx).Model(&DocumentModel{}).Where("source_id = ?", sourceID)
	if len(keep) > 0 {
		query = query.Where("external_id NOT IN ?", keep)
	}
	if err := query.Pluck("id", &swept).Error; err != nil {
		return 0, fmt.Errorf("list swept documents: %w", err)
	}
	if len(swept) == 0 {
		return 0, nil
	}

	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := deleteDerived(tx, swept); err != nil {
			return err
		}
		if err := tx.Delete(&DocumentModel{}, "id IN ?", swept).Error; err != nil {
			return fmt.Errorf("sweep documents: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(swept)), nil
}

// ListForSource returns (externalID, lastModified) pairs for a source.
func (s DocumentStore) ListForSource(ctx context.Context, sourceID string) ([]document.SourceEntry, error) {
	var rows []struct {
		ExternalID   string
		LastModified *time.Time
	}
	err := s.DB(ctx).Model(&DocumentModel{}).
		Where("source_id = ?", sourceID).
		Select("external_id", "last_modified").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list source entries: %w", err)
	}

	entries := make([]document.SourceEntry, len(rows))
	for i, row := range rows {
		var lm time.Time
		if row.LastModified != nil {
			lm = *row.LastModified
		}
		entries[i] = document.NewSourceEntry(row.ExternalID, lm)
	}
	return entries, nil
}

// SampleContents returns the content of up to limit recently updated
// documents. Used to train the keyword extractor's corpus statistics.
func (s DocumentStore) SampleContents(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}
	var contents []string
	err := s.DB(ctx).Model(&DocumentModel{}).
		Order("updated_at DESC").
		Limit(limit).
		Pluck("content", &contents).Error
	if err != nil {
		return nil, fmt.Errorf("sample document contents: %w", err)
	}
	return contents, nil
}

// deleteDerived removes rows derived from the given documents: tags,
// embeddings, and enrichment results.
func deleteDerived(tx *gorm.DB, documentIDs []string) error {
	if err := tx.Delete(&DocumentTagModel{}, "document_id IN ?", documentIDs).Error; err != nil {
		return fmt.Errorf("delete document tags: %w", err)
	}
	if err := tx.Exec("DELETE FROM document_embeddings WHERE document_id IN ?", documentIDs).Error; err != nil {
		return fmt.Errorf("delete document embeddings: %w", err)
	}
	if err := tx.Delete(&EnrichmentResultModel{}, "document_id IN ?", documentIDs).Error; err != nil {
		return fmt.Errorf("delete enrichment results: %w", err)
	}
	return nil
}
