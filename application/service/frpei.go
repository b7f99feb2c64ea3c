package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/meridiansearch/meridian/domain/frpei"
	"github.com/meridiansearch/meridian/domain/ontology"
)

// maxProviderTier is the trust tier that maps to a full provider_trust
// signal.
const maxProviderTier = 3

// CandidateCache is the read-through federated result cache contract.
type CandidateCache interface {
	GetOrFetch(ctx context.Context, key string, fetch func(context.Context) ([]frpei.Candidate, error)) ([]frpei.Candidate, bool, error)
	Purge()
}

// Annotator extracts entities and topics from candidate text.
type Annotator interface {
	Annotate(text string) (entities, topics []string)
}

// stateReporter is implemented by breaker-wrapped providers.
type stateReporter interface {
	State() string
}

// ProviderState is one provider's health summary.
type ProviderState struct {
	Name      string
	TrustTier int
	State     string
}

// ProviderStat summarizes one provider's contribution to a retrieval.
type ProviderStat struct {
	Provider string
	Count    int
	Failed   bool
	Elapsed  time.Duration
}

// RetrieveResult is the outcome of one federated retrieval. Stats and
// Warnings are populated only when providers were actually queried; a
// cache hit carries neither.
type RetrieveResult struct {
	Ranked   []frpei.Ranked
	Cached   bool
	Stats    []ProviderStat
	Warnings []string
}

// Federation orchestrates federated retrieval: provider fan-out,
// canonicalization, deduplication, enrichment, and signal ranking.
// Candidate sets are cached across requests; ranking reruns per request so
// viewer-dependent signals stay fresh.
type Federation struct {
	providers   []frpei.Provider
	canon       frpei.Canonicalizer
	ranker      frpei.Ranker
	cache       CandidateCache
	annotator   Annotator
	enrichments frpei.EnrichmentStore
	rankLogs    frpei.RankLogStore
	feedback    frpei.FeedbackStore
	now         func() time.Time
	logger      *slog.Logger

	fetchTotal *prometheus.CounterVec
	duration   prometheus.Histogram
	cacheHits  prometheus.Counter
}

// NewFederation creates a Federation service. Providers should already be
// breaker-wrapped; nil cache disables caching.
func NewFederation(
	providers []frpei.Provider,
	ranker frpei.Ranker,
	cache CandidateCache,
	annotator Annotator,
	enrichments frpei.EnrichmentStore,
	rankLogs frpei.RankLogStore,
	feedback frpei.FeedbackStore,
	registerer prometheus.Registerer,
	logger *slog.Logger,
) *Federation {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Federation{
		providers:   providers,
		canon:       frpei.NewCanonicalizer(),
		ranker:      ranker,
		cache:       cache,
		annotator:   annotator,
		enrichments: enrichments,
		rankLogs:    rankLogs,
		feedback:    feedback,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger,
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_frpei_provider_fetch_total",
			Help: "Provider fetches by outcome.",
		}, []string{"provider", "outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meridian_frpei_retrieve_seconds",
			Help:    "End-to-end federated retrieval latency.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meridian_frpei_cache_hits_total",
			Help: "Federated result cache hits.",
		}),
	}
	if registerer != nil {
		registerer.MustRegister(f.fetchTotal, f.duration, f.cacheHits)
	}
	return f
}

// Retrieve runs one federated request end to end.
func (f *Federation) Retrieve(ctx context.Context, req frpei.Request) (RetrieveResult, error) {
	if req.Query() == "" {
		return RetrieveResult{}, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	providers, err := f.selectProviders(req.Providers())
	if err != nil {
		return RetrieveResult{}, err
	}

	started := time.Now()
	defer func() { f.duration.Observe(time.Since(started).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, req.Timeout())
	defer cancel()

	var stats []ProviderStat
	var warnings []string
	fetch := func(ctx context.Context) ([]frpei.Candidate, error) {
		candidates, fetchStats, fetchWarnings, err := f.fanOut(ctx, providers, req)
		if err != nil {
			return nil, err
		}
		stats, warnings = fetchStats, fetchWarnings
		return f.EnrichCandidates(ctx, frpei.Deduplicate(candidates), req.Query()), nil
	}

	var candidates []frpei.Candidate
	cached := false
	if f.cache != nil && !req.NoCache() {
		candidates, cached, err = f.cache.GetOrFetch(ctx, req.CacheKey(), fetch)
		if cached {
			f.cacheHits.Inc()
		}
	} else {
		candidates, err = fetch(ctx)
	}
	if err != nil {
		return RetrieveResult{}, err
	}

	ranked := f.Rank(candidates, req.Explain())
	if len(ranked) > req.Limit() {
		ranked = ranked[:req.Limit()]
	}

	if req.Explain() && f.rankLogs != nil {
		for _, r := range ranked {
			if err := f.rankLogs.Save(ctx, req.Query(), r); err != nil {
				f.logger.Warn("rank log write failed", slog.String("error", err.Error()))
				break
			}
		}
	}
	return RetrieveResult{Ranked: ranked, Cached: cached, Stats: stats, Warnings: warnings}, nil
}

// fanOut queries every provider concurrently. Individual failures are
// tolerated and reported as warnings; the request fails only when no
// provider returns.
func (f *Federation) fanOut(ctx context.Context, providers []frpei.Provider, req frpei.Request) ([]frpei.Candidate, []ProviderStat, []string, error) {
	var (
		mu         sync.Mutex
		candidates []frpei.Candidate
		stats      []ProviderStat
		warnings   []string
		succeeded  int
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, provider := range providers {
		g.Go(func() error {
			started := time.Now()
			raws, err := provider.Fetch(ctx, req.Query(), req.Limit()*2)
			elapsed := time.Since(started)
			if err != nil {
				f.fetchTotal.WithLabelValues(provider.Name(), "error").Inc()
				f.logger.Warn("provider fetch failed",
					slog.String("provider", provider.Name()),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				stats = append(stats, ProviderStat{Provider: provider.Name(), Failed: true, Elapsed: elapsed})
				warnings = append(warnings, fmt.Sprintf("provider %s failed: %s", provider.Name(), err))
				mu.Unlock()
				return nil
			}
			f.fetchTotal.WithLabelValues(provider.Name(), "ok").Inc()

			batch := make([]frpei.Candidate, 0, len(raws))
			for _, raw := range raws {
				c, err := f.canon.Candidate(provider.Name(), provider.TrustTier(), raw)
				if err != nil {
					continue
				}
				batch = append(batch, f.withBaseSignals(c))
			}

			mu.Lock()
			candidates = append(candidates, batch...)
			stats = append(stats, ProviderStat{Provider: provider.Name(), Count: len(batch), Elapsed: elapsed})
			succeeded++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	if succeeded == 0 {
		return nil, nil, nil, fmt.Errorf("%w: %d providers", ErrAllProvidersFailed, len(providers))
	}
	return candidates, stats, warnings, nil
}

// withBaseSignals fills the signals derivable without the query: provider
// trust (tier scaled to [0,1]) and freshness.
func (f *Federation) withBaseSignals(c frpei.Candidate) frpei.Candidate {
	s := c.Signals()
	s.ProviderTrust = float64(c.TrustTier()) / maxProviderTier
	if s.ProviderTrust > 1 {
		s.ProviderTrust = 1
	}
	s.Freshness = frpei.Freshness(c.PublishedAt(), f.now())
	return c.WithSignals(s)
}

// EnrichCandidates attaches entities and topics to each candidate and
// derives the entity-match signal from query token overlap. Enrichment is
// persisted per candidate; write failures are logged and skipped.
func (f *Federation) EnrichCandidates(ctx context.Context, candidates []frpei.Candidate, query string) []frpei.Candidate {
	if f.annotator == nil {
		return candidates
	}
	tokens := ontology.Tokenize(query)

	out := make([]frpei.Candidate, 0, len(candidates))
	for _, c := range candidates {
		entities, topics := f.annotator.Annotate(c.Title() + "\n" + c.Snippet())
		c = c.WithEnrichment(entities, topics)

		s := c.Signals()
		s.EntityMatch = entityMatch(tokens, entities, topics)
		c = c.WithSignals(s)

		if f.enrichments != nil {
			if err := f.enrichments.Save(ctx, c.ID(), entities, topics); err != nil {
				f.logger.Warn("candidate enrichment write failed",
					slog.String("candidate_id", c.ID()),
					slog.String("error", err.Error()),
				)
			}
		}
		out = append(out, c)
	}
	return out
}

// Rank scores candidates with the configured weights.
func (f *Federation) Rank(candidates []frpei.Candidate, explain bool) []frpei.Ranked {
	return f.ranker.Rank(candidates, explain)
}

// RecordFeedback stores one relevance judgement.
func (f *Federation) RecordFeedback(ctx context.Context, query, candidateID string, label frpei.FeedbackLabel) error {
	switch label {
	case frpei.FeedbackRelevant, frpei.FeedbackIrrelevant, frpei.FeedbackSpam:
	default:
		return fmt.Errorf("%w: unknown feedback label %q", ErrInvalidInput, label)
	}
	if query == "" || candidateID == "" {
		return fmt.Errorf("%w: query and candidate_id are required", ErrInvalidInput)
	}
	if err := f.feedback.Save(ctx, frpei.NewFeedback(query, candidateID, label)); err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}

// ProviderStates reports each provider's name, tier, and breaker state.
func (f *Federation) ProviderStates() []ProviderState {
	out := make([]ProviderState, 0, len(f.providers))
	for _, p := range f.providers {
		state := "closed"
		if r, ok := p.(stateReporter); ok {
			state = r.State()
		}
		out = append(out, ProviderState{Name: p.Name(), TrustTier: p.TrustTier(), State: state})
	}
	return out
}

// selectProviders resolves requested provider names, defaulting to all.
func (f *Federation) selectProviders(names []string) ([]frpei.Provider, error) {
	if len(f.providers) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", ErrAllProvidersFailed)
	}
	if len(names) == 0 {
		return f.providers, nil
	}
	byName := make(map[string]frpei.Provider, len(f.providers))
	for _, p := range f.providers {
		byName[p.Name()] = p
	}
	out := make([]frpei.Provider, 0, len(names))
	for _, name := range names {
		p, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidInput, name)
		}
		out = append(out, p)
	}
	return out, nil
}

// entityMatch is the share of query tokens found among the candidate's
// entities and topics.
func entityMatch(tokens, entities, topics []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	vocabulary := map[string]struct{}{}
	for _, e := range entities {
		for _, w := range strings.Fields(strings.ToLower(e)) {
			vocabulary[w] = struct{}{}
		}
	}
	for _, t := range topics {
		vocabulary[strings.ToLower(t)] = struct{}{}
	}

	matched := 0
	for _, token := range tokens {
		if _, ok := vocabulary[token]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}
