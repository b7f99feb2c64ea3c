package webhook

import (
	"context"

	"github.com/meridiansearch/meridian/domain/storage"
)

// Store defines persistence operations for webhooks.
type Store interface {
	// Save creates or updates a webhook.
	Save(ctx context.Context, w Webhook) error

	// ByID retrieves a webhook.
	ByID(ctx context.Context, id string) (Webhook, error)

	// Find retrieves webhooks matching the given options.
	Find(ctx context.Context, options ...storage.Option) ([]Webhook, error)

	// SubscribedTo returns active webhooks listening for an event.
	SubscribedTo(ctx context.Context, event string) ([]Webhook, error)

	// Delete removes a webhook and its deliveries.
	Delete(ctx context.Context, id string) error
}

// DeliveryStore defines persistence operations for delivery records.
type DeliveryStore interface {
	// Save creates or updates a delivery record.
	Save(ctx context.Context, d Delivery) error

	// Due returns pending deliveries whose retry time has passed.
	Due(ctx context.Context, limit int) ([]Delivery, error)

	// ByWebhookID retrieves delivery history for a webhook.
	ByWebhookID(ctx context.Context, webhookID string, options ...storage.Option) ([]Delivery, error)
}
