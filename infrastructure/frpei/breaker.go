// Package frpei provides the retrieval-side infrastructure for federated
// search: provider circuit breaking, the read-through result cache, and
// the external meta-search provider client.
package frpei

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/meridiansearch/meridian/domain/frpei"
)

// Breaker tunables.
const (
	breakerFailureThreshold = 3
	breakerCooldown         = 30 * time.Second
)

// ErrProviderOpen indicates the provider's circuit is open and the call
// was skipped.
var ErrProviderOpen = errors.New("provider circuit open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// BreakerProvider wraps a provider in a circuit breaker: after
// breakerFailureThreshold consecutive failures the circuit opens and
// calls fail fast for breakerCooldown; the next call after the cooldown
// runs as a half-open probe whose outcome closes or reopens the circuit.
type BreakerProvider struct {
	inner frpei.Provider

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreakerProvider wraps a provider.
func NewBreakerProvider(inner frpei.Provider) *BreakerProvider {
	return &BreakerProvider{inner: inner}
}

// Name returns the wrapped provider's name.
func (b *BreakerProvider) Name() string { return b.inner.Name() }

// TrustTier returns the wrapped provider's trust tier.
func (b *BreakerProvider) TrustTier() int { return b.inner.TrustTier() }

// State returns the current breaker state for health reporting.
func (b *BreakerProvider) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Fetch calls the wrapped provider subject to the breaker.
func (b *BreakerProvider) Fetch(ctx context.Context, query string, limit int) ([]frpei.RawCandidate, error) {
	if err := b.before(); err != nil {
		return nil, err
	}

	candidates, err := b.inner.Fetch(ctx, query, limit)
	b.after(err == nil)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", b.inner.Name(), err)
	}
	return candidates, nil
}

// before admits or rejects a call. In half-open state only one probe may
// be in flight.
func (b *BreakerProvider) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return nil
	case stateOpen:
		if time.Since(b.openedAt) < breakerCooldown {
			return fmt.Errorf("%w: %s", ErrProviderOpen, b.inner.Name())
		}
		b.state = stateHalfOpen
		b.probing = true
		return nil
	default: // half-open
		if b.probing {
			return fmt.Errorf("%w: %s (probe in flight)", ErrProviderOpen, b.inner.Name())
		}
		b.probing = true
		return nil
	}
}

func (b *BreakerProvider) after(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.probing = false
		if ok {
			b.state = stateClosed
			b.failures = 0
		} else {
			b.state = stateOpen
			b.openedAt = time.Now()
		}
		return
	}

	if ok {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= breakerFailureThreshold {
		b.state = stateOpen
		b.openedAt = time.Now()
	}
}
