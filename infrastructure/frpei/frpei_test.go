package frpei

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiansearch/meridian/domain/frpei"
)

// flakyProvider fails until succeedAfter calls have been made.
type flakyProvider struct {
	calls        int
	succeedAfter int
}

func (p *flakyProvider) Name() string   { return "flaky" }
func (p *flakyProvider) TrustTier() int { return 1 }

func (p *flakyProvider) Fetch(context.Context, string, int) ([]frpei.RawCandidate, error) {
	p.calls++
	if p.calls <= p.succeedAfter {
		return nil, errors.New("upstream down")
	}
	return []frpei.RawCandidate{{URL: "https://example.com/a"}}, nil
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyProvider{succeedAfter: 100}
	b := NewBreakerProvider(inner)

	for i := 0; i < breakerFailureThreshold; i++ {
		_, err := b.Fetch(context.Background(), "q", 5)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrProviderOpen)
	}

	assert.Equal(t, "open", b.State())
	_, err := b.Fetch(context.Background(), "q", 5)
	assert.ErrorIs(t, err, ErrProviderOpen)
	assert.Equal(t, breakerFailureThreshold, inner.calls, "open circuit skips the provider")
}

func TestBreakerHalfOpenProbeCloses(t *testing.T) {
	inner := &flakyProvider{succeedAfter: breakerFailureThreshold}
	b := NewBreakerProvider(inner)

	for i := 0; i < breakerFailureThreshold; i++ {
		_, _ = b.Fetch(context.Background(), "q", 5)
	}
	require.Equal(t, "open", b.State())

	// Force the cooldown to elapse.
	b.mu.Lock()
	b.openedAt = b.openedAt.Add(-2 * breakerCooldown)
	b.mu.Unlock()

	candidates, err := b.Fetch(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
	assert.Equal(t, "closed", b.State())
}

func TestBreakerHalfOpenProbeReopens(t *testing.T) {
	inner := &flakyProvider{succeedAfter: 100}
	b := NewBreakerProvider(inner)

	for i := 0; i < breakerFailureThreshold; i++ {
		_, _ = b.Fetch(context.Background(), "q", 5)
	}
	b.mu.Lock()
	b.openedAt = b.openedAt.Add(-2 * breakerCooldown)
	b.mu.Unlock()

	_, err := b.Fetch(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Equal(t, "open", b.State())
}

func TestResultCacheReadThrough(t *testing.T) {
	cache := NewResultCache(0)
	var fetches atomic.Int32

	fetch := func(context.Context) ([]frpei.Candidate, error) {
		fetches.Add(1)
		cz := frpei.NewCanonicalizer()
		c, err := cz.Candidate("local", 2, frpei.RawCandidate{URL: "https://example.com/doc"})
		if err != nil {
			return nil, err
		}
		return []frpei.Candidate{c}, nil
	}

	first, hit, err := cache.GetOrFetch(context.Background(), "key", fetch)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, first, 1)

	second, hit, err := cache.GetOrFetch(context.Background(), "key", fetch)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first[0].ID(), second[0].ID())
	assert.Equal(t, int32(1), fetches.Load())
}

func TestResultCacheCoalescesConcurrentMisses(t *testing.T) {
	cache := NewResultCache(0)
	var fetches atomic.Int32
	gate := make(chan struct{})

	fetch := func(context.Context) ([]frpei.Candidate, error) {
		fetches.Add(1)
		<-gate
		return nil, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := cache.GetOrFetch(context.Background(), "key", fetch)
			assert.NoError(t, err)
		}()
	}
	close(gate)
	wg.Wait()

	assert.LessOrEqual(t, fetches.Load(), int32(2), "concurrent misses share a flight")
}

func TestResultCacheDoesNotCacheErrors(t *testing.T) {
	cache := NewResultCache(0)
	var fetches atomic.Int32

	failing := func(context.Context) ([]frpei.Candidate, error) {
		fetches.Add(1)
		return nil, errors.New("boom")
	}

	_, _, err := cache.GetOrFetch(context.Background(), "key", failing)
	require.Error(t, err)
	_, _, err = cache.GetOrFetch(context.Background(), "key", failing)
	require.Error(t, err)
	assert.Equal(t, int32(2), fetches.Load())
}

func TestMetaSearchProviderFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "relay pool", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(`{"results":[
			{"url":"https://a.example/post","title":"First","content":"snippet a","publishedDate":"2024-06-01","score":12.5},
			{"url":"https://b.example/doc","title":"Second","content":"snippet b"},
			{"url":"","title":"no url"},
			{"url":"https://c.example","title":"Third"}
		]}`))
	}))
	defer server.Close()

	p := NewMetaSearchProvider("searx", server.URL, 1, nil)
	assert.Equal(t, "searx", p.Name())
	assert.Equal(t, 1, p.TrustTier())

	candidates, err := p.Fetch(context.Background(), "relay pool", 10)
	require.NoError(t, err)
	require.Len(t, candidates, 3, "empty URLs dropped")

	assert.Equal(t, "First", candidates[0].Title)
	assert.Equal(t, 1.0, candidates[0].Relevance)
	assert.Greater(t, candidates[0].Relevance, candidates[1].Relevance, "relevance decays by rank")
	assert.Equal(t, 2024, candidates[0].PublishedAt.Year())
}

func TestMetaSearchProviderLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[
			{"url":"https://a.example/1"},{"url":"https://a.example/2"},{"url":"https://a.example/3"}
		]}`))
	}))
	defer server.Close()

	p := NewMetaSearchProvider("", server.URL, 1, nil)
	candidates, err := p.Fetch(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}
