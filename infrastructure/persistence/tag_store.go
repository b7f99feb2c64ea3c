package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/meridiansearch/meridian/internal/database"
)

// TagCount is one tag with its document count.
type TagCount struct {
	Tag   string
	Count int
}

// TagPairCount is a co-occurring tag pair with its shared document count.
type TagPairCount struct {
	Tag   string
	Other string
	Count int
}

// TagStore maintains the document_tags mirror of enrichment tags so
// filters and facet queries run in SQL.
type TagStore struct {
	db database.Database
}

// NewTagStore creates a TagStore.
func NewTagStore(db database.Database) TagStore {
	return TagStore{db: db}
}

// SetTags replaces the tag set of a document.
func (s TagStore) SetTags(ctx context.Context, documentID string, tags []string) error {
	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Delete(&DocumentTagModel{}, "document_id = ?", documentID).Error; err != nil {
			return fmt.Errorf("clear document tags: %w", err)
		}
		if len(tags) == 0 {
			return nil
		}
		seen := make(map[string]struct{}, len(tags))
		models := make([]DocumentTagModel, 0, len(tags))
		for _, tag := range tags {
			if tag == "" {
				continue
			}
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			models = append(models, DocumentTagModel{DocumentID: documentID, Tag: tag})
		}
		if len(models) == 0 {
			return nil
		}
		if err := tx.Create(&models).Error; err != nil {
			return fmt.Errorf("save document tags: %w", err)
		}
		return nil
	})
}

// Tags returns the tags of a document.
func (s TagStore) Tags(ctx context.Context, documentID string) ([]string, error) {
	var tags []string
	err := s.db.Session(ctx).Model(&DocumentTagModel{}).
		Where("document_id = ?", documentID).
		Order("tag ASC").
		Pluck("tag", &tags).Error
	if err != nil {
		return nil, fmt.Errorf("list document tags: %w", err)
	}
	return tags, nil
}

// Cloud returns the most frequent tags with their document counts.
func (s TagStore) Cloud(ctx context.Context, limit int) ([]TagCount, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []TagCount
	err := s.db.Session(ctx).Model(&DocumentTagModel{}).
		Select("tag, COUNT(DISTINCT document_id) AS count").
		Group("tag").
		Order("count DESC, tag ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("tag cloud: %w", err)
	}
	return rows, nil
}

// Cooccurring returns tags that share documents with the given tag,
// ordered by shared document count.
func (s TagStore) Cooccurring(ctx context.Context, tag string, limit int) ([]TagPairCount, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []TagPairCount
	err := s.db.Session(ctx).
		Table("document_tags AS a").
		Select("a.tag AS tag, b.tag AS other, COUNT(DISTINCT a.document_id) AS count").
		Joins("JOIN document_tags AS b ON a.document_id = b.document_id AND a.tag <> b.tag").
		Where("a.tag = ?", tag).
		Group("a.tag, b.tag").
		Order("count DESC, other ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("tag co-occurrence: %w", err)
	}
	return rows, nil
}
