package relay

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridiansearch/meridian/domain/nostr"
)

// Pool manages a set of relays: NIP-11 policy discovery, health-weighted
// selection, fan-out queries with cross-relay deduplication, and merged
// live subscriptions.
type Pool struct {
	policies *PolicyFetcher
	logger   *slog.Logger

	mu     sync.RWMutex
	relays map[string]*Relay
}

// NewPool creates an empty Pool.
func NewPool(logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		policies: NewPolicyFetcher(nil),
		relays:   map[string]*Relay{},
		logger:   logger,
	}
}

// Add registers a relay URL. Adding an existing URL is a no-op, so the
// pool can be re-seeded from configuration on each connector run.
func (p *Pool) Add(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.relays[url]; ok {
		return
	}
	p.relays[url] = NewRelay(url, p.logger)
}

// Remove drops a relay from the pool.
func (p *Pool) Remove(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.relays, url)
}

// URLs returns the registered relay URLs.
func (p *Pool) URLs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	urls := make([]string, 0, len(p.relays))
	for url := range p.relays {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// RefreshPolicies fetches NIP-11 documents for all relays. Failures are
// logged and skipped: a relay without a policy still gets queried, just
// without filter capping.
func (p *Pool) RefreshPolicies(ctx context.Context) {
	for _, r := range p.snapshot() {
		policy, err := p.policies.Fetch(ctx, r.URL())
		if err != nil {
			p.logger.Debug("nip-11 fetch failed", "relay", r.URL(), "error", err)
			continue
		}
		r.SetPolicy(policy)
	}
}

// Select returns up to n relays ordered by health score, skipping relays
// whose circuit is open.
func (p *Pool) Select(n int) []*Relay {
	now := time.Now()
	relays := p.snapshot()

	open := relays[:0]
	for _, r := range relays {
		if !r.Open(now) {
			open = append(open, r)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		si, sj := open[i].Score(now), open[j].Score(now)
		if si != sj {
			return si > sj
		}
		return open[i].URL() < open[j].URL()
	})
	if n > 0 && len(open) > n {
		open = open[:n]
	}
	return open
}

// Query fans the filter out to up to maxRelays healthy relays and merges
// the results, deduplicating by event ID and sorting newest first.
// Individual relay failures are tolerated as long as at least one relay
// answers; the pool fails only when every relay does.
func (p *Pool) Query(ctx context.Context, filter nostr.Filter, maxRelays int) ([]nostr.Event, error) {
	relays := p.Select(maxRelays)
	if len(relays) == 0 {
		return nil, ErrRelayCooling
	}

	var (
		mu      sync.Mutex
		merged  []nostr.Event
		seen    = map[string]struct{}{}
		lastErr error
		got     int
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range relays {
		g.Go(func() error {
			events, err := r.Query(gctx, filter)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				lastErr = err
				p.logger.Debug("relay query failed", "relay", r.URL(), "error", err)
				return nil
			}
			got++
			for _, e := range events {
				if _, dup := seen[e.ID()]; dup {
					continue
				}
				seen[e.ID()] = struct{}{}
				merged = append(merged, e)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if got == 0 {
		return nil, lastErr
	}

	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].CreatedAt().Equal(merged[j].CreatedAt()) {
			return merged[i].CreatedAt().After(merged[j].CreatedAt())
		}
		return merged[i].ID() < merged[j].ID()
	})
	if limit := filter.Limit(); limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// Subscribe opens live subscriptions on up to maxRelays relays and merges
// them into one deduplicated channel. The channel closes when the context
// is cancelled and all relay streams have stopped.
func (p *Pool) Subscribe(ctx context.Context, filter nostr.Filter, maxRelays int) <-chan nostr.Event {
	relays := p.Select(maxRelays)
	out := make(chan nostr.Event, 64)
	raw := make(chan nostr.Event, 64)

	var wg sync.WaitGroup
	for _, r := range relays {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Subscribe(ctx, filter, raw); err != nil && ctx.Err() == nil {
				p.logger.Debug("relay subscription ended", "relay", r.URL(), "error", err)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(raw)
	}()

	go func() {
		defer close(out)
		seen := map[string]struct{}{}
		for e := range raw {
			if _, dup := seen[e.ID()]; dup {
				continue
			}
			seen[e.ID()] = struct{}{}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// HealthReport is a point-in-time view of one relay's health, exposed on
// the health endpoint.
type HealthReport struct {
	URL                 string        `json:"url"`
	Score               float64       `json:"score"`
	SuccessRate         float64       `json:"success_rate"`
	AvgLatency          time.Duration `json:"avg_latency"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	CircuitOpen         bool          `json:"circuit_open"`
}

// HealthReports returns health snapshots for all relays, ordered by URL.
func (p *Pool) HealthReports() []HealthReport {
	now := time.Now()
	relays := p.snapshot()
	reports := make([]HealthReport, 0, len(relays))
	for _, r := range relays {
		h := r.Health()
		reports = append(reports, HealthReport{
			URL:                 r.URL(),
			Score:               h.Score(now),
			SuccessRate:         h.SuccessRate(),
			AvgLatency:          h.AvgLatency(),
			ConsecutiveFailures: h.ConsecutiveFailures(),
			CircuitOpen:         h.Open(now),
		})
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].URL < reports[j].URL })
	return reports
}

func (p *Pool) snapshot() []*Relay {
	p.mu.RLock()
	defer p.mu.RUnlock()
	relays := make([]*Relay, 0, len(p.relays))
	for _, r := range p.relays {
		relays = append(relays, r)
	}
	return relays
}
