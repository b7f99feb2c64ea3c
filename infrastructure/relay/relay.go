// Package relay implements the Nostr relay pool: NIP-11 policy discovery,
// per-relay rate limiting and circuit breaking, health-weighted selection,
// and cross-relay deduplicated query and subscription streams.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/meridiansearch/meridian/domain/nostr"
)

// Rate limit defaults per relay.
const (
	DefaultRPS   = 10
	DefaultBurst = 50
)

// DefaultQueryTimeout bounds one Query when the caller's context carries
// no earlier deadline.
const DefaultQueryTimeout = 10 * time.Second

// ErrRelayCooling indicates the relay's circuit breaker is open.
var ErrRelayCooling = errors.New("relay cooling down")

// Relay is one managed relay endpoint. Each Query dials a dedicated
// websocket; health and rate limit state persist across calls.
type Relay struct {
	url     string
	limiter *rate.Limiter
	dialer  *websocket.Dialer
	logger  *slog.Logger

	mu     sync.Mutex
	health nostr.RelayHealth
	policy nostr.RelayPolicy
	hasPol bool
}

// NewRelay creates a Relay with the default rate limit.
func NewRelay(url string, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		url:     url,
		limiter: rate.NewLimiter(rate.Limit(DefaultRPS), DefaultBurst),
		dialer:  websocket.DefaultDialer,
		logger:  logger.With("relay", url),
	}
}

// URL returns the relay websocket URL.
func (r *Relay) URL() string { return r.url }

// Health returns a snapshot of the relay health.
func (r *Relay) Health() nostr.RelayHealth {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.health
}

// Score returns the relay's health score at now.
func (r *Relay) Score(now time.Time) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.health.Score(now)
}

// Open reports whether the circuit breaker is open at now.
func (r *Relay) Open(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.health.Open(now)
}

// SetPolicy attaches a discovered NIP-11 policy.
func (r *Relay) SetPolicy(policy nostr.RelayPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policy = policy
	r.hasPol = true
}

func (r *Relay) capFilter(f nostr.Filter) nostr.Filter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasPol {
		return r.policy.CapFilter(f)
	}
	return f
}

func (r *Relay) recordSuccess(latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.health = r.health.RecordSuccess(latency, time.Now())
}

func (r *Relay) recordFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.health = r.health.RecordFailure(time.Now())
}

// Query sends one REQ and collects events until EOSE, the filter limit,
// or the context deadline.
func (r *Relay) Query(ctx context.Context, filter nostr.Filter) ([]nostr.Event, error) {
	if r.Open(time.Now()) {
		return nil, fmt.Errorf("%w: %s", ErrRelayCooling, r.url)
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultQueryTimeout)
		defer cancel()
	}

	started := time.Now()
	events, err := r.query(ctx, r.capFilter(filter))
	if err != nil {
		r.recordFailure()
		return nil, err
	}
	r.recordSuccess(time.Since(started))
	return events, nil
}

func (r *Relay) query(ctx context.Context, filter nostr.Filter) ([]nostr.Event, error) {
	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", r.url, err)
	}
	defer func() { _ = conn.Close() }()

	subID := uuid.NewString()
	req, err := json.Marshal([]any{"REQ", subID, filter})
	if err != nil {
		return nil, fmt.Errorf("marshal req: %w", err)
	}
	if err := writeWithDeadline(ctx, conn, req); err != nil {
		return nil, fmt.Errorf("send req: %w", err)
	}

	limit := filter.Limit()
	var events []nostr.Event
	for {
		msgType, payload, err := readWithDeadline(ctx, conn)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", r.url, err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		kind, event, notice, done := parseRelayMessage(payload, subID)
		switch kind {
		case messageEvent:
			events = append(events, event)
			if limit > 0 && len(events) >= limit {
				_ = sendClose(conn, subID)
				return events, nil
			}
		case messageEOSE:
			_ = sendClose(conn, subID)
			return events, nil
		case messageClosed:
			return events, fmt.Errorf("relay closed subscription: %s", notice)
		case messageNotice:
			r.logger.Debug("relay notice", "notice", notice)
		}
		_ = done
	}
}

// Subscribe streams live events matching the filter until the context is
// cancelled, reconnecting with backoff on connection loss.
func (r *Relay) Subscribe(ctx context.Context, filter nostr.Filter, out chan<- nostr.Event) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.Open(time.Now()) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}

		err := r.stream(ctx, r.capFilter(filter), out)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		r.recordFailure()
		r.logger.Debug("subscription dropped, reconnecting", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (r *Relay) stream(ctx context.Context, filter nostr.Filter, out chan<- nostr.Event) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	conn, _, err := r.dialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", r.url, err)
	}
	defer func() { _ = conn.Close() }()

	subID := uuid.NewString()
	req, err := json.Marshal([]any{"REQ", subID, filter})
	if err != nil {
		return fmt.Errorf("marshal req: %w", err)
	}
	if err := writeWithDeadline(ctx, conn, req); err != nil {
		return fmt.Errorf("send req: %w", err)
	}
	r.recordSuccess(0)

	for {
		if err := ctx.Err(); err != nil {
			_ = sendClose(conn, subID)
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(time.Minute))
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read %s: %w", r.url, err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		kind, event, notice, _ := parseRelayMessage(payload, subID)
		switch kind {
		case messageEvent:
			select {
			case out <- event:
			case <-ctx.Done():
				_ = sendClose(conn, subID)
				return ctx.Err()
			}
		case messageClosed:
			return fmt.Errorf("relay closed subscription: %s", notice)
		}
	}
}

type relayMessageKind int

const (
	messageIgnore relayMessageKind = iota
	messageEvent
	messageEOSE
	messageClosed
	messageNotice
)

// parseRelayMessage decodes one relay frame: ["EVENT", sub, event],
// ["EOSE", sub], ["CLOSED", sub, reason], ["NOTICE", text]. Frames for
// other subscriptions are ignored.
func parseRelayMessage(payload []byte, subID string) (relayMessageKind, nostr.Event, string, bool) {
	var frame []json.RawMessage
	if err := json.Unmarshal(payload, &frame); err != nil || len(frame) == 0 {
		return messageIgnore, nostr.Event{}, "", false
	}

	var label string
	if err := json.Unmarshal(frame[0], &label); err != nil {
		return messageIgnore, nostr.Event{}, "", false
	}

	switch label {
	case "EVENT":
		if len(frame) < 3 || !matchesSub(frame[1], subID) {
			return messageIgnore, nostr.Event{}, "", false
		}
		event, err := nostr.ParseEvent(frame[2])
		if err != nil {
			return messageIgnore, nostr.Event{}, "", false
		}
		return messageEvent, event, "", true
	case "EOSE":
		if len(frame) < 2 || !matchesSub(frame[1], subID) {
			return messageIgnore, nostr.Event{}, "", false
		}
		return messageEOSE, nostr.Event{}, "", true
	case "CLOSED":
		reason := ""
		if len(frame) >= 3 {
			_ = json.Unmarshal(frame[2], &reason)
		}
		if len(frame) < 2 || !matchesSub(frame[1], subID) {
			return messageIgnore, nostr.Event{}, "", false
		}
		return messageClosed, nostr.Event{}, reason, true
	case "NOTICE":
		notice := ""
		if len(frame) >= 2 {
			_ = json.Unmarshal(frame[1], &notice)
		}
		return messageNotice, nostr.Event{}, notice, true
	}
	return messageIgnore, nostr.Event{}, "", false
}

func matchesSub(raw json.RawMessage, subID string) bool {
	var got string
	if err := json.Unmarshal(raw, &got); err != nil {
		return false
	}
	return got == subID
}

func sendClose(conn *websocket.Conn, subID string) error {
	msg, err := json.Marshal([]any{"CLOSE", subID})
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func writeWithDeadline(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func readWithDeadline(ctx context.Context, conn *websocket.Conn) (int, []byte, error) {
	deadline := time.Now().Add(30 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)
	return conn.ReadMessage()
}
