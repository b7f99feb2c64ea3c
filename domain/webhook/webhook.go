// Package webhook defines event subscriptions, HMAC payload signing, and
// the delivery records the core writes for an external dispatcher.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event names follow a "topic.action" convention. Subscriptions may use a
// trailing wildcard ("connector.*").
const (
	EventDocumentCreated     = "document.created"
	EventDocumentUpdated     = "document.updated"
	EventDocumentDeleted     = "document.deleted"
	EventConnectorRunStarted = "connector.run.started"
	EventConnectorRunDone    = "connector.run.completed"
	EventConnectorRunFailed  = "connector.run.failed"
	EventSearchPerformed     = "search.performed"
)

// SignatureHeader carries the payload signature on each delivery, in the
// form "sha256=<hex(HMAC-SHA256(secret, body))>".
const SignatureHeader = "X-Signature"

// Webhook is one event subscription.
type Webhook struct {
	id        uuid.UUID
	url       string
	secret    string
	events    []string
	isActive  bool
	createdAt time.Time
	updatedAt time.Time
}

// New creates a Webhook after validating the target URL and event list.
func New(rawURL, secret string, events []string) (Webhook, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Webhook{}, errors.New("webhook url must be absolute")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Webhook{}, errors.New("webhook url must be http or https")
	}
	if secret == "" {
		return Webhook{}, errors.New("webhook secret is required")
	}
	if len(events) == 0 {
		return Webhook{}, errors.New("webhook needs at least one event")
	}
	for _, e := range events {
		if !validEventPattern(e) {
			return Webhook{}, errors.New("invalid event pattern: " + e)
		}
	}
	cp := make([]string, len(events))
	copy(cp, events)
	now := time.Now().UTC()
	return Webhook{
		id:        uuid.New(),
		url:       rawURL,
		secret:    secret,
		events:    cp,
		isActive:  true,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct rebuilds a Webhook from persistence.
func Reconstruct(id uuid.UUID, rawURL, secret string, events []string, isActive bool, createdAt, updatedAt time.Time) Webhook {
	cp := make([]string, len(events))
	copy(cp, events)
	return Webhook{
		id:        id,
		url:       rawURL,
		secret:    secret,
		events:    cp,
		isActive:  isActive,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// ID returns the webhook ID.
func (w Webhook) ID() uuid.UUID { return w.id }

// URL returns the delivery target.
func (w Webhook) URL() string { return w.url }

// Secret returns the signing secret.
func (w Webhook) Secret() string { return w.secret }

// Events returns the subscribed event patterns.
func (w Webhook) Events() []string {
	cp := make([]string, len(w.events))
	copy(cp, w.events)
	return cp
}

// IsActive reports whether the webhook receives deliveries.
func (w Webhook) IsActive() bool { return w.isActive }

// CreatedAt returns the creation time.
func (w Webhook) CreatedAt() time.Time { return w.createdAt }

// UpdatedAt returns the last modification time.
func (w Webhook) UpdatedAt() time.Time { return w.updatedAt }

// WithActive returns a copy with the active flag set.
func (w Webhook) WithActive(active bool) Webhook {
	w.isActive = active
	w.updatedAt = time.Now().UTC()
	return w
}

// WithEvents returns a copy with a new validated event list.
func (w Webhook) WithEvents(events []string) (Webhook, error) {
	if len(events) == 0 {
		return Webhook{}, errors.New("webhook needs at least one event")
	}
	for _, e := range events {
		if !validEventPattern(e) {
			return Webhook{}, errors.New("invalid event pattern: " + e)
		}
	}
	cp := make([]string, len(events))
	copy(cp, events)
	w.events = cp
	w.updatedAt = time.Now().UTC()
	return w, nil
}

// Subscribed reports whether the webhook listens for the given event,
// honoring trailing wildcards.
func (w Webhook) Subscribed(event string) bool {
	for _, pattern := range w.events {
		if pattern == event {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, ".*"); ok && strings.HasPrefix(event, prefix+".") {
			return true
		}
	}
	return false
}

// Sign computes the signature of a payload with the webhook secret:
// "sha256=" followed by the hex HMAC-SHA256 digest.
func (w Webhook) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(w.secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether a signature matches the payload, in
// constant time.
func (w Webhook) VerifySignature(payload []byte, signature string) bool {
	return hmac.Equal([]byte(w.Sign(payload)), []byte(signature))
}

func validEventPattern(pattern string) bool {
	if pattern == "" {
		return false
	}
	base, wildcard := strings.CutSuffix(pattern, ".*")
	if wildcard {
		pattern = base
	}
	for _, part := range strings.Split(pattern, ".") {
		if part == "" || part == "*" {
			return false
		}
	}
	return true
}
