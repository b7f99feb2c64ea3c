package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridiansearch/meridian/domain/webhook"
)

// WebhookSink writes signed delivery records for subscribed webhooks. The
// core only enqueues; an external dispatcher performs the HTTP calls and
// drives the retry backoff.
type WebhookSink struct {
	webhooks   webhook.Store
	deliveries webhook.DeliveryStore
	logger     *slog.Logger
}

// NewWebhookSink creates a WebhookSink.
func NewWebhookSink(webhooks webhook.Store, deliveries webhook.DeliveryStore, logger *slog.Logger) *WebhookSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookSink{webhooks: webhooks, deliveries: deliveries, logger: logger}
}

// Emit enqueues one delivery per webhook subscribed to the event. Emission
// failures are logged, never propagated; events must not fail the
// operation that produced them.
func (s *WebhookSink) Emit(ctx context.Context, event string, data map[string]any) {
	subscribed, err := s.webhooks.SubscribedTo(ctx, event)
	if err != nil {
		s.logger.Warn("webhook lookup failed", slog.String("event", event), slog.String("error", err.Error()))
		return
	}
	if len(subscribed) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"event":     event,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      data,
	})
	if err != nil {
		s.logger.Warn("webhook payload encoding failed", slog.String("event", event), slog.String("error", err.Error()))
		return
	}

	for _, w := range subscribed {
		delivery := webhook.NewDelivery(w, event, payload)
		if err := s.deliveries.Save(ctx, delivery); err != nil {
			s.logger.Warn("webhook delivery enqueue failed",
				slog.String("event", event),
				slog.String("webhook_id", w.ID().String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Register validates and persists a new webhook subscription.
func (s *WebhookSink) Register(ctx context.Context, url, secret string, events []string) (webhook.Webhook, error) {
	w, err := webhook.New(url, secret, events)
	if err != nil {
		return webhook.Webhook{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	if err := s.webhooks.Save(ctx, w); err != nil {
		return webhook.Webhook{}, fmt.Errorf("save webhook: %w", err)
	}
	return w, nil
}
