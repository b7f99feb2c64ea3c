package nostr

import (
	"time"
)

// RelayPolicy captures the NIP-11 limits a relay advertises. Zero values
// mean the relay did not advertise the limit.
type RelayPolicy struct {
	name             string
	maxLimit         int
	maxMessageLength int
	maxSubscriptions int
	supportedNIPs    []int
}

// NewRelayPolicy creates a RelayPolicy from a NIP-11 information document.
func NewRelayPolicy(name string, maxLimit, maxMessageLength, maxSubscriptions int, supportedNIPs []int) RelayPolicy {
	cp := make([]int, len(supportedNIPs))
	copy(cp, supportedNIPs)
	return RelayPolicy{
		name:             name,
		maxLimit:         maxLimit,
		maxMessageLength: maxMessageLength,
		maxSubscriptions: maxSubscriptions,
		supportedNIPs:    cp,
	}
}

// Name returns the relay's advertised name.
func (p RelayPolicy) Name() string { return p.name }

// MaxLimit returns the largest filter limit the relay accepts.
func (p RelayPolicy) MaxLimit() int { return p.maxLimit }

// MaxMessageLength returns the relay's message size cap in bytes.
func (p RelayPolicy) MaxMessageLength() int { return p.maxMessageLength }

// MaxSubscriptions returns the per-connection subscription cap.
func (p RelayPolicy) MaxSubscriptions() int { return p.maxSubscriptions }

// SupportsNIP reports whether the relay advertises the given NIP.
func (p RelayPolicy) SupportsNIP(nip int) bool {
	for _, n := range p.supportedNIPs {
		if n == nip {
			return true
		}
	}
	return false
}

// CapFilter clamps a filter's limit to the relay's advertised maximum.
func (p RelayPolicy) CapFilter(f Filter) Filter {
	return f.WithLimitCapped(p.maxLimit)
}

// Circuit breaker tunables for relay connections.
const (
	CircuitFailureThreshold = 3
	CircuitBaseCooldown     = 2 * time.Second
	CircuitMaxCooldown      = 10 * time.Minute
)

// RelayHealth tracks per-relay reliability for weighted selection and
// circuit breaking.
type RelayHealth struct {
	totalQueries        int
	failedQueries       int
	consecutiveFailures int
	avgLatency          time.Duration
	lastOK              time.Time
	openUntil           time.Time
}

// RecordSuccess folds a successful query into the health state.
func (h RelayHealth) RecordSuccess(latency time.Duration, now time.Time) RelayHealth {
	h.totalQueries++
	h.consecutiveFailures = 0
	h.lastOK = now
	h.openUntil = time.Time{}
	if h.avgLatency == 0 {
		h.avgLatency = latency
	} else {
		// Exponential moving average, weight 1/4 on the new sample.
		h.avgLatency = (h.avgLatency*3 + latency) / 4
	}
	return h
}

// RecordFailure folds a failed query into the health state, opening the
// circuit with exponential backoff once the failure threshold is reached.
func (h RelayHealth) RecordFailure(now time.Time) RelayHealth {
	h.totalQueries++
	h.failedQueries++
	h.consecutiveFailures++
	if h.consecutiveFailures >= CircuitFailureThreshold {
		cooldown := CircuitBaseCooldown << uint(h.consecutiveFailures-CircuitFailureThreshold)
		if cooldown > CircuitMaxCooldown || cooldown <= 0 {
			cooldown = CircuitMaxCooldown
		}
		h.openUntil = now.Add(cooldown)
	}
	return h
}

// Open reports whether the circuit is open at the given time.
func (h RelayHealth) Open(now time.Time) bool {
	return now.Before(h.openUntil)
}

// SuccessRate returns the fraction of queries that succeeded. A relay
// with no history is optimistically rated 1.
func (h RelayHealth) SuccessRate() float64 {
	if h.totalQueries == 0 {
		return 1
	}
	return float64(h.totalQueries-h.failedQueries) / float64(h.totalQueries)
}

// AvgLatency returns the moving-average query latency.
func (h RelayHealth) AvgLatency() time.Duration { return h.avgLatency }

// ConsecutiveFailures returns the current failure streak.
func (h RelayHealth) ConsecutiveFailures() int { return h.consecutiveFailures }

// LastOK returns the time of the last successful query.
func (h RelayHealth) LastOK() time.Time { return h.lastOK }

// Score rates the relay for selection: success rate dominates, latency
// discounts. Open circuits score zero.
func (h RelayHealth) Score(now time.Time) float64 {
	if h.Open(now) {
		return 0
	}
	score := h.SuccessRate()
	if h.avgLatency > 0 {
		// Halve the score at one second of average latency.
		score *= float64(time.Second) / float64(time.Second+h.avgLatency)
	}
	return score
}
