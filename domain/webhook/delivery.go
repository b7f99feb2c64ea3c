package webhook

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the lifecycle state of one delivery.
type DeliveryStatus string

// Delivery states.
const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// MaxDeliveryAttempts bounds retries before a delivery is abandoned.
const MaxDeliveryAttempts = 5

// deliveryBackoff returns the wait before the given retry attempt
// (1-based): 30s, 2m, 10m, 30m, then 1h.
func deliveryBackoff(attempt int) time.Duration {
	schedule := []time.Duration{
		30 * time.Second,
		2 * time.Minute,
		10 * time.Minute,
		30 * time.Minute,
	}
	if attempt <= 0 {
		attempt = 1
	}
	if attempt > len(schedule) {
		return time.Hour
	}
	return schedule[attempt-1]
}

// Delivery is one pending or completed webhook dispatch. The core only
// writes these records; an external dispatcher performs the HTTP calls.
type Delivery struct {
	id          uuid.UUID
	webhookID   uuid.UUID
	event       string
	payload     []byte
	signature   string
	status      DeliveryStatus
	attempts    int
	nextAttempt time.Time
	lastError   string
	createdAt   time.Time
}

// NewDelivery enqueues a signed delivery for a subscribed webhook.
func NewDelivery(w Webhook, event string, payload []byte) Delivery {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	now := time.Now().UTC()
	return Delivery{
		id:          uuid.New(),
		webhookID:   w.ID(),
		event:       event,
		payload:     cp,
		signature:   w.Sign(cp),
		status:      DeliveryPending,
		nextAttempt: now,
		createdAt:   now,
	}
}

// ReconstructDelivery rebuilds a Delivery from persistence.
func ReconstructDelivery(
	id, webhookID uuid.UUID,
	event string,
	payload []byte,
	signature string,
	status DeliveryStatus,
	attempts int,
	nextAttempt time.Time,
	lastError string,
	createdAt time.Time,
) Delivery {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	return Delivery{
		id:          id,
		webhookID:   webhookID,
		event:       event,
		payload:     cp,
		signature:   signature,
		status:      status,
		attempts:    attempts,
		nextAttempt: nextAttempt,
		lastError:   lastError,
		createdAt:   createdAt,
	}
}

// ID returns the delivery ID.
func (d Delivery) ID() uuid.UUID { return d.id }

// WebhookID returns the target webhook.
func (d Delivery) WebhookID() uuid.UUID { return d.webhookID }

// Event returns the event name the delivery carries.
func (d Delivery) Event() string { return d.event }

// Payload returns the JSON payload.
func (d Delivery) Payload() []byte {
	cp := make([]byte, len(d.payload))
	copy(cp, d.payload)
	return cp
}

// Signature returns the hex HMAC of the payload.
func (d Delivery) Signature() string { return d.signature }

// Status returns the delivery state.
func (d Delivery) Status() DeliveryStatus { return d.status }

// Attempts returns the number of attempts made so far.
func (d Delivery) Attempts() int { return d.attempts }

// NextAttempt returns when the dispatcher should retry.
func (d Delivery) NextAttempt() time.Time { return d.nextAttempt }

// LastError returns the most recent attempt failure.
func (d Delivery) LastError() string { return d.lastError }

// CreatedAt returns when the delivery was enqueued.
func (d Delivery) CreatedAt() time.Time { return d.createdAt }

// MarkDelivered returns a copy recording a successful attempt.
func (d Delivery) MarkDelivered() Delivery {
	d.attempts++
	d.status = DeliveryDelivered
	d.lastError = ""
	return d
}

// MarkAttemptFailed returns a copy recording a failed attempt, scheduling
// a backoff retry or abandoning after MaxDeliveryAttempts.
func (d Delivery) MarkAttemptFailed(err error, now time.Time) Delivery {
	d.attempts++
	if err != nil {
		d.lastError = err.Error()
	}
	if d.attempts >= MaxDeliveryAttempts {
		d.status = DeliveryFailed
		return d
	}
	d.nextAttempt = now.Add(deliveryBackoff(d.attempts))
	return d
}
