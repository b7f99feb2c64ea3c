package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiansearch/meridian/domain/frpei"
	infrafrpei "github.com/meridiansearch/meridian/infrastructure/frpei"
)

type fakeProvider struct {
	name  string
	tier  int
	raws  []frpei.RawCandidate
	err   error
	calls atomic.Int32
}

func (p *fakeProvider) Name() string   { return p.name }
func (p *fakeProvider) TrustTier() int { return p.tier }

func (p *fakeProvider) Fetch(context.Context, string, int) ([]frpei.RawCandidate, error) {
	p.calls.Add(1)
	return p.raws, p.err
}

type fakeAnnotator struct {
	entities []string
	topics   []string
}

func (f *fakeAnnotator) Annotate(string) (entities, topics []string) {
	return f.entities, f.topics
}

type memoryCandidateEnrichments struct {
	mu    sync.Mutex
	saved map[string][]string
}

func (s *memoryCandidateEnrichments) Save(_ context.Context, candidateID string, entities, _ []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = map[string][]string{}
	}
	s.saved[candidateID] = entities
	return nil
}

func (s *memoryCandidateEnrichments) ByCandidateID(_ context.Context, candidateID string) ([]string, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved[candidateID], nil, nil
}

type memoryRankLogs struct {
	mu     sync.Mutex
	logged []frpei.Ranked
}

func (s *memoryRankLogs) Save(_ context.Context, _ string, r frpei.Ranked) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logged = append(s.logged, r)
	return nil
}

type memoryFeedbackStore struct {
	mu    sync.Mutex
	saved []frpei.Feedback
}

func (s *memoryFeedbackStore) Save(_ context.Context, f frpei.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, f)
	return nil
}

func (s *memoryFeedbackStore) ByQuery(context.Context, string) ([]frpei.Feedback, error) {
	return nil, nil
}

func rawCandidate(url string, relevance float64) frpei.RawCandidate {
	return frpei.RawCandidate{
		URL:       url,
		Title:     "Result at " + url,
		Snippet:   "snippet",
		Relevance: relevance,
	}
}

func newFederation(t *testing.T, cache CandidateCache, providers ...frpei.Provider) (*Federation, *memoryRankLogs, *memoryFeedbackStore) {
	t.Helper()
	rankLogs := &memoryRankLogs{}
	feedback := &memoryFeedbackStore{}
	f := NewFederation(
		providers,
		frpei.NewRanker(frpei.DefaultWeights()),
		cache,
		&fakeAnnotator{entities: []string{"Nostr Relay"}, topics: []string{"federation"}},
		&memoryCandidateEnrichments{},
		rankLogs,
		feedback,
		prometheus.NewRegistry(),
		nil,
	)
	return f, rankLogs, feedback
}

func TestFederationToleratesPartialProviderFailure(t *testing.T) {
	healthy := &fakeProvider{name: "alpha", tier: 3, raws: []frpei.RawCandidate{
		rawCandidate("https://example.com/a", 0.9),
	}}
	broken := &fakeProvider{name: "beta", tier: 2, err: assert.AnError}
	f, _, _ := newFederation(t, nil, healthy, broken)

	result, err := f.Retrieve(context.Background(), frpei.NewRequest("nostr relay"))
	require.NoError(t, err)
	require.Len(t, result.Ranked, 1)
	assert.Equal(t, "alpha", result.Ranked[0].Candidate.Provider())
	assert.False(t, result.Cached)

	// The failed provider shows up in stats and warnings.
	require.Len(t, result.Stats, 2)
	byName := map[string]ProviderStat{}
	for _, s := range result.Stats {
		byName[s.Provider] = s
	}
	assert.Equal(t, 1, byName["alpha"].Count)
	assert.True(t, byName["beta"].Failed)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "beta")
}

func TestFederationAllProvidersFailed(t *testing.T) {
	a := &fakeProvider{name: "alpha", tier: 3, err: assert.AnError}
	b := &fakeProvider{name: "beta", tier: 2, err: assert.AnError}
	f, _, _ := newFederation(t, nil, a, b)

	_, err := f.Retrieve(context.Background(), frpei.NewRequest("nostr relay"))
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
}

func TestFederationDeduplicatesAcrossProviders(t *testing.T) {
	// Same page behind tracking params; the higher tier keeps identity.
	a := &fakeProvider{name: "alpha", tier: 3, raws: []frpei.RawCandidate{
		rawCandidate("https://example.com/page", 0.9),
	}}
	b := &fakeProvider{name: "beta", tier: 1, raws: []frpei.RawCandidate{
		rawCandidate("https://example.com/page?utm_source=feed", 0.4),
	}}
	f, _, _ := newFederation(t, nil, a, b)

	result, err := f.Retrieve(context.Background(), frpei.NewRequest("nostr relay"))
	require.NoError(t, err)
	require.Len(t, result.Ranked, 1)
	assert.Equal(t, "alpha", result.Ranked[0].Candidate.Provider())
}

func TestFederationRanksByRelevance(t *testing.T) {
	p := &fakeProvider{name: "alpha", tier: 3, raws: []frpei.RawCandidate{
		rawCandidate("https://example.com/weak", 0.1),
		rawCandidate("https://example.com/strong", 0.9),
	}}
	f, rankLogs, _ := newFederation(t, nil, p)

	result, err := f.Retrieve(context.Background(), frpei.NewRequest("nostr relay", frpei.WithExplain(true)))
	require.NoError(t, err)
	require.Len(t, result.Ranked, 2)
	assert.Equal(t, "https://example.com/strong", result.Ranked[0].Candidate.CanonicalURL())
	assert.Greater(t, result.Ranked[0].Score, result.Ranked[1].Score)

	// Explained requests carry contributions and land in the rank log.
	assert.NotEmpty(t, result.Ranked[0].Why)
	assert.Len(t, rankLogs.logged, 2)
}

func TestFederationEntityMatchSignal(t *testing.T) {
	p := &fakeProvider{name: "alpha", tier: 3, raws: []frpei.RawCandidate{
		rawCandidate("https://example.com/a", 0.5),
	}}
	f, _, _ := newFederation(t, nil, p)

	// Both query tokens appear in the annotator's entity vocabulary.
	result, err := f.Retrieve(context.Background(), frpei.NewRequest("nostr relay"))
	require.NoError(t, err)
	require.Len(t, result.Ranked, 1)
	assert.InDelta(t, 1.0, result.Ranked[0].Candidate.Signals().EntityMatch, 1e-9)
	assert.Equal(t, []string{"Nostr Relay"}, result.Ranked[0].Candidate.Entities())
}

func TestFederationServesSecondRequestFromCache(t *testing.T) {
	p := &fakeProvider{name: "alpha", tier: 3, raws: []frpei.RawCandidate{
		rawCandidate("https://example.com/a", 0.9),
	}}
	f, _, _ := newFederation(t, infrafrpei.NewResultCache(time.Minute), p)

	first, err := f.Retrieve(context.Background(), frpei.NewRequest("nostr relay"))
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := f.Retrieve(context.Background(), frpei.NewRequest("nostr relay"))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, int32(1), p.calls.Load())

	// NoCache forces a fresh fan-out.
	third, err := f.Retrieve(context.Background(), frpei.NewRequest("nostr relay", frpei.WithNoCache(true)))
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestFederationRequestValidation(t *testing.T) {
	p := &fakeProvider{name: "alpha", tier: 3}
	f, _, _ := newFederation(t, nil, p)

	_, err := f.Retrieve(context.Background(), frpei.NewRequest("   "))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.Retrieve(context.Background(), frpei.NewRequest("q", frpei.WithProviders("unknown")))
	assert.ErrorIs(t, err, ErrInvalidInput)

	empty, _, _ := newFederation(t, nil)
	_, err = empty.Retrieve(context.Background(), frpei.NewRequest("q"))
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
}

func TestFederationRecordFeedback(t *testing.T) {
	f, _, feedback := newFederation(t, nil, &fakeProvider{name: "alpha", tier: 3})

	err := f.RecordFeedback(context.Background(), "nostr relay", "cand-1", frpei.FeedbackRelevant)
	require.NoError(t, err)
	require.Len(t, feedback.saved, 1)
	assert.Equal(t, frpei.FeedbackRelevant, feedback.saved[0].Label())

	err = f.RecordFeedback(context.Background(), "nostr relay", "cand-1", frpei.FeedbackLabel("great"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = f.RecordFeedback(context.Background(), "", "cand-1", frpei.FeedbackSpam)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFederationProviderStates(t *testing.T) {
	plain := &fakeProvider{name: "alpha", tier: 3}
	wrapped := infrafrpei.NewBreakerProvider(&fakeProvider{name: "beta", tier: 2})
	f, _, _ := newFederation(t, nil, plain, wrapped)

	states := f.ProviderStates()
	require.Len(t, states, 2)
	assert.Equal(t, ProviderState{Name: "alpha", TrustTier: 3, State: "closed"}, states[0])
	assert.Equal(t, ProviderState{Name: "beta", TrustTier: 2, State: "closed"}, states[1])
}
