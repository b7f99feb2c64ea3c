package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/meridiansearch/meridian/domain/enrichment"
	"github.com/meridiansearch/meridian/domain/storage"
	"github.com/meridiansearch/meridian/internal/database"
)

// EnrichmentResultStore implements enrichment.Store using GORM.
type EnrichmentResultStore struct {
	database.Repository[enrichment.Result, EnrichmentResultModel]
}

// NewEnrichmentResultStore creates an EnrichmentResultStore.
func NewEnrichmentResultStore(db database.Database) EnrichmentResultStore {
	return EnrichmentResultStore{
		Repository: database.NewRepository[enrichment.Result, EnrichmentResultModel](db, enrichmentMapper{}, "enrichment result"),
	}
}

// Save creates or replaces the result for a document.
func (s EnrichmentResultStore) Save(ctx context.Context, r enrichment.Result) error {
	model := s.Mapper().ToModel(r)
	if result := s.DB(ctx).Save(&model); result.Error != nil {
		return fmt.Errorf("save enrichment result: %w", result.Error)
	}
	return nil
}

// ByDocumentID retrieves the result for a document.
func (s EnrichmentResultStore) ByDocumentID(ctx context.Context, documentID string) (enrichment.Result, error) {
	return s.FindOne(ctx, storage.WithCondition("document_id", documentID))
}

// Pending returns document IDs with no usable enrichment: documents that
// have no result row, whose row is still pending, or whose row predates
// the document's last update.
func (s EnrichmentResultStore) Pending(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	query := s.DB(ctx).
		Table("documents").
		Select("documents.id").
		Joins("LEFT JOIN enrichment_results ON enrichment_results.document_id = documents.id").
		Where(
			"enrichment_results.document_id IS NULL OR enrichment_results.status = ? OR enrichment_results.enriched_at < documents.updated_at",
			string(enrichment.StatusPending),
		).
		Order("documents.updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("documents.id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list pending enrichments: %w", err)
	}
	return ids, nil
}

// DeleteByDocumentIDs removes results for the given documents.
func (s EnrichmentResultStore) DeleteByDocumentIDs(ctx context.Context, documentIDs []string) error {
	if len(documentIDs) == 0 {
		return nil
	}
	if err := s.DB(ctx).Delete(&EnrichmentResultModel{}, "document_id IN ?", documentIDs).Error; err != nil {
		return fmt.Errorf("delete enrichment results: %w", err)
	}
	return nil
}

// RelationshipStore implements enrichment.RelationshipStore using GORM.
type RelationshipStore struct {
	database.Repository[enrichment.Relationship, EntityRelationshipModel]
	db database.Database
}

// NewRelationshipStore creates a RelationshipStore.
func NewRelationshipStore(db database.Database) RelationshipStore {
	return RelationshipStore{
		Repository: database.NewRepository[enrichment.Relationship, EntityRelationshipModel](db, relationshipMapper{}, "entity relationship"),
		db:         db,
	}
}

// Union merges documentID into the relationship row for the entity,
// creating the row when absent.
func (s RelationshipStore) Union(ctx context.Context, entityType enrichment.EntityType, normalized, documentID string) error {
	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var model EntityRelationshipModel
		err := tx.Where("entity_type = ? AND normalized = ?", string(entityType), normalized).
			First(&model).Error
		switch {
		case err == nil:
			merged := relationshipMapper{}.ToDomain(model).Union(documentID)
			updated := relationshipMapper{}.ToModel(merged)
			updated.ID = model.ID
			if err := tx.Save(&updated).Error; err != nil {
				return fmt.Errorf("update entity relationship: %w", err)
			}
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			fresh := relationshipMapper{}.ToModel(
				enrichment.NewRelationship(entityType, normalized, []string{documentID}),
			)
			if err := tx.Create(&fresh).Error; err != nil {
				return fmt.Errorf("create entity relationship: %w", err)
			}
			return nil
		default:
			return fmt.Errorf("find entity relationship: %w", err)
		}
	})
}

// ByEntity retrieves the relationship for one entity.
func (s RelationshipStore) ByEntity(ctx context.Context, entityType enrichment.EntityType, normalized string) (enrichment.Relationship, error) {
	return s.FindOne(ctx,
		storage.WithCondition("entity_type", string(entityType)),
		storage.WithCondition("normalized", normalized),
	)
}

// RemoveDocument drops a document from every relationship that mentions
// it, deleting rows that become empty.
func (s RelationshipStore) RemoveDocument(ctx context.Context, documentID string) error {
	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var models []EntityRelationshipModel
		// The JSON column cannot be queried portably, so match on a
		// substring and filter precisely in Go.
		err := tx.Where("document_ids LIKE ?", "%"+documentID+"%").Find(&models).Error
		if err != nil {
			return fmt.Errorf("find relationships for document: %w", err)
		}
		for _, model := range models {
			remaining := relationshipMapper{}.ToDomain(model).Remove(documentID)
			if remaining.DocumentCount() == 0 {
				if err := tx.Delete(&EntityRelationshipModel{}, "id = ?", model.ID).Error; err != nil {
					return fmt.Errorf("delete empty relationship: %w", err)
				}
				continue
			}
			updated := relationshipMapper{}.ToModel(remaining)
			updated.ID = model.ID
			updated.UpdatedAt = time.Now().UTC()
			if err := tx.Save(&updated).Error; err != nil {
				return fmt.Errorf("update relationship: %w", err)
			}
		}
		return nil
	})
}
