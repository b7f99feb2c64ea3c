package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiansearch/meridian/domain/storage"
	"github.com/meridiansearch/meridian/domain/webhook"
)

type memoryWebhookStore struct {
	mu    sync.Mutex
	items map[string]webhook.Webhook
	err   error
}

func newMemoryWebhookStore() *memoryWebhookStore {
	return &memoryWebhookStore{items: map[string]webhook.Webhook{}}
}

func (s *memoryWebhookStore) Save(_ context.Context, w webhook.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[w.ID().String()] = w
	return nil
}

func (s *memoryWebhookStore) ByID(_ context.Context, id string) (webhook.Webhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.items[id]
	if !ok {
		return webhook.Webhook{}, ErrNotFound
	}
	return w, nil
}

func (s *memoryWebhookStore) Find(context.Context, ...storage.Option) ([]webhook.Webhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]webhook.Webhook, 0, len(s.items))
	for _, w := range s.items {
		out = append(out, w)
	}
	return out, nil
}

func (s *memoryWebhookStore) SubscribedTo(_ context.Context, event string) ([]webhook.Webhook, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []webhook.Webhook
	for _, w := range s.items {
		if w.IsActive() && w.Subscribed(event) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *memoryWebhookStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

type memoryDeliveryStore struct {
	mu         sync.Mutex
	deliveries []webhook.Delivery
}

func (s *memoryDeliveryStore) Save(_ context.Context, d webhook.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.deliveries {
		if existing.ID() == d.ID() {
			s.deliveries[i] = d
			return nil
		}
	}
	s.deliveries = append(s.deliveries, d)
	return nil
}

func (s *memoryDeliveryStore) Due(context.Context, int) ([]webhook.Delivery, error) {
	return nil, nil
}

func (s *memoryDeliveryStore) ByWebhookID(_ context.Context, webhookID string, _ ...storage.Option) ([]webhook.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []webhook.Delivery
	for _, d := range s.deliveries {
		if d.WebhookID().String() == webhookID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *memoryDeliveryStore) all() []webhook.Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]webhook.Delivery, len(s.deliveries))
	copy(out, s.deliveries)
	return out
}

func TestWebhookSinkDeliversToSubscribedHooksOnly(t *testing.T) {
	webhooks := newMemoryWebhookStore()
	deliveries := &memoryDeliveryStore{}
	sink := NewWebhookSink(webhooks, deliveries, slog.Default())

	runHook, err := sink.Register(context.Background(), "https://example.com/runs", "s3cret", []string{"connector.*"})
	require.NoError(t, err)
	_, err = sink.Register(context.Background(), "https://example.com/docs", "s3cret", []string{"document.created"})
	require.NoError(t, err)

	sink.Emit(context.Background(), webhook.EventConnectorRunDone, map[string]any{"run_id": "r1"})

	all := deliveries.all()
	require.Len(t, all, 1)
	d := all[0]
	assert.Equal(t, runHook.ID(), d.WebhookID())
	assert.Equal(t, webhook.EventConnectorRunDone, d.Event())
	assert.Equal(t, webhook.DeliveryPending, d.Status())

	// Payload is signed with the webhook secret and carries the event data.
	assert.True(t, runHook.VerifySignature(d.Payload(), d.Signature()))
	var payload struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(d.Payload(), &payload))
	assert.Equal(t, webhook.EventConnectorRunDone, payload.Event)
	assert.Equal(t, "r1", payload.Data["run_id"])
}

func TestWebhookSinkSwallowsLookupFailures(t *testing.T) {
	webhooks := newMemoryWebhookStore()
	webhooks.err = assert.AnError
	deliveries := &memoryDeliveryStore{}
	sink := NewWebhookSink(webhooks, deliveries, slog.Default())

	sink.Emit(context.Background(), webhook.EventDocumentCreated, nil)
	assert.Empty(t, deliveries.all())
}

func TestWebhookRegisterValidates(t *testing.T) {
	sink := NewWebhookSink(newMemoryWebhookStore(), &memoryDeliveryStore{}, slog.Default())

	_, err := sink.Register(context.Background(), "not-a-url", "s3cret", []string{"document.created"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = sink.Register(context.Background(), "https://example.com/hook", "", []string{"document.created"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = sink.Register(context.Background(), "https://example.com/hook", "s3cret", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
