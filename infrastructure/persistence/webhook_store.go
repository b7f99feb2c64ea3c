package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/meridiansearch/meridian/domain/storage"
	"github.com/meridiansearch/meridian/domain/webhook"
	"github.com/meridiansearch/meridian/internal/database"
)

// WebhookStore implements webhook.Store using GORM.
type WebhookStore struct {
	database.Repository[webhook.Webhook, WebhookModel]
	db database.Database
}

// NewWebhookStore creates a WebhookStore.
func NewWebhookStore(db database.Database) WebhookStore {
	return WebhookStore{
		Repository: database.NewRepository[webhook.Webhook, WebhookModel](db, WebhookMapper{}, "webhook"),
		db:         db,
	}
}

// Save creates or updates a webhook.
func (s WebhookStore) Save(ctx context.Context, w webhook.Webhook) error {
	model := WebhookMapper{}.ToModel(w)
	if result := s.DB(ctx).Save(&model); result.Error != nil {
		return fmt.Errorf("save webhook: %w", result.Error)
	}
	return nil
}

// ByID retrieves a webhook.
func (s WebhookStore) ByID(ctx context.Context, id string) (webhook.Webhook, error) {
	return s.FindOne(ctx, storage.WithID(id))
}

// SubscribedTo returns active webhooks listening for an event. Wildcard
// matching happens in Go because patterns live inside a JSON column.
func (s WebhookStore) SubscribedTo(ctx context.Context, event string) ([]webhook.Webhook, error) {
	active, err := s.Find(ctx, storage.WithCondition("is_active", true))
	if err != nil {
		return nil, err
	}
	var subscribed []webhook.Webhook
	for _, w := range active {
		if w.Subscribed(event) {
			subscribed = append(subscribed, w)
		}
	}
	return subscribed, nil
}

// Delete removes a webhook and its deliveries.
func (s WebhookStore) Delete(ctx context.Context, id string) error {
	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := tx.Delete(&WebhookDeliveryModel{}, "webhook_id = ?", id).Error; err != nil {
			return fmt.Errorf("delete webhook deliveries: %w", err)
		}
		if err := tx.Delete(&WebhookModel{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete webhook: %w", err)
		}
		return nil
	})
}

// DeliveryStore implements webhook.DeliveryStore using GORM.
type DeliveryStore struct {
	database.Repository[webhook.Delivery, WebhookDeliveryModel]
}

// NewDeliveryStore creates a DeliveryStore.
func NewDeliveryStore(db database.Database) DeliveryStore {
	return DeliveryStore{
		Repository: database.NewRepository[webhook.Delivery, WebhookDeliveryModel](db, deliveryMapper{}, "webhook delivery"),
	}
}

// Save creates or updates a delivery record.
func (s DeliveryStore) Save(ctx context.Context, d webhook.Delivery) error {
	model := deliveryMapper{}.ToModel(d)
	if result := s.DB(ctx).Save(&model); result.Error != nil {
		return fmt.Errorf("save webhook delivery: %w", result.Error)
	}
	return nil
}

// Due returns pending deliveries whose retry time has passed.
func (s DeliveryStore) Due(ctx context.Context, limit int) ([]webhook.Delivery, error) {
	options := []storage.Option{
		storage.WithStatus(string(webhook.DeliveryPending)),
		storage.WithConditionOp("next_attempt", "<=", time.Now().UTC()),
		storage.WithOrderAsc("next_attempt"),
	}
	if limit > 0 {
		options = append(options, storage.WithLimit(limit))
	}
	return s.Find(ctx, options...)
}

// ByWebhookID retrieves delivery history for a webhook.
func (s DeliveryStore) ByWebhookID(ctx context.Context, webhookID string, options ...storage.Option) ([]webhook.Delivery, error) {
	all := append([]storage.Option{
		storage.WithCondition("webhook_id", webhookID),
		storage.WithOrderDesc("created_at"),
	}, options...)
	return s.Find(ctx, all...)
}
