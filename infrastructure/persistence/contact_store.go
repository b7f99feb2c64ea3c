package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/meridiansearch/meridian/domain/wot"
	"github.com/meridiansearch/meridian/internal/database"
)

// ContactStore implements wot.GraphStore using GORM. One row per pubkey
// holds its latest observed follow list.
type ContactStore struct {
	db database.Database
}

// NewContactStore creates a ContactStore.
func NewContactStore(db database.Database) ContactStore {
	return ContactStore{db: db}
}

// SaveContactList stores the list if it is newer than the stored one for
// the same pubkey.
func (s ContactStore) SaveContactList(ctx context.Context, list wot.ContactList) error {
	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var existing ContactListModel
		err := tx.First(&existing, "pubkey = ?", list.Pubkey()).Error
		switch {
		case err == nil:
			if !list.CreatedAt().After(existing.CreatedAt) {
				return nil
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// First list for this pubkey.
		default:
			return fmt.Errorf("find contact list: %w", err)
		}

		model := ContactListModel{
			Pubkey:    list.Pubkey(),
			Follows:   StringSlice(list.Follows()),
			EventID:   list.EventID(),
			CreatedAt: list.CreatedAt(),
			UpdatedAt: time.Now().UTC(),
		}
		if err := tx.Save(&model).Error; err != nil {
			return fmt.Errorf("save contact list: %w", err)
		}
		return nil
	})
}

// Follows returns the follow list of a pubkey, empty when unknown.
func (s ContactStore) Follows(ctx context.Context, pubkey string) ([]string, error) {
	var model ContactListModel
	err := s.db.Session(ctx).First(&model, "pubkey = ?", pubkey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find contact list: %w", err)
	}
	return model.Follows, nil
}

// FollowsBatch returns follow lists for many pubkeys in one query.
func (s ContactStore) FollowsBatch(ctx context.Context, pubkeys []string) (map[string][]string, error) {
	if len(pubkeys) == 0 {
		return map[string][]string{}, nil
	}
	var models []ContactListModel
	err := s.db.Session(ctx).Where("pubkey IN ?", pubkeys).Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("find contact lists: %w", err)
	}
	out := make(map[string][]string, len(models))
	for _, m := range models {
		out[m.Pubkey] = m.Follows
	}
	return out, nil
}
