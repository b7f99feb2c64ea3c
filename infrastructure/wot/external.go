// Package wot provides trust score providers: an external HTTP service
// client and a local follow-graph walker over ingested contact lists.
package wot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/meridiansearch/meridian/domain/wot"
)

const (
	// externalBatchMax caps targets per batch call to the trust service.
	externalBatchMax = 100

	// externalTimeout bounds each trust service request. Trust scoring
	// sits on the search hot path, so slow answers are worth less than
	// no answer.
	externalTimeout = time.Second

	scoreCacheSize = 10000
)

// ExternalProvider queries a remote trust service. Scores are cached in
// an LRU keyed by (viewer, target) with a TTL.
type ExternalProvider struct {
	baseURL string
	client  *http.Client
	cache   *expirable.LRU[string, float64]
	logger  *slog.Logger
}

// NewExternalProvider creates an ExternalProvider against baseURL. A zero
// cacheTTL defaults to one hour.
func NewExternalProvider(baseURL string, cacheTTL time.Duration, logger *slog.Logger) *ExternalProvider {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExternalProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: externalTimeout},
		cache:   expirable.NewLRU[string, float64](scoreCacheSize, nil, cacheTTL),
		logger:  logger,
	}
}

// Score returns the trust score of target as seen by viewer.
func (p *ExternalProvider) Score(ctx context.Context, viewer, target string) (float64, error) {
	if viewer == "" {
		return 0, wot.ErrNoViewer
	}
	if cached, ok := p.cache.Get(cacheKey(viewer, target)); ok {
		return cached, nil
	}

	endpoint := fmt.Sprintf("%s/wot/score?viewer=%s&target=%s",
		p.baseURL, url.QueryEscape(viewer), url.QueryEscape(target))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build score request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("trust service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("trust service: status %d", resp.StatusCode)
	}

	var body struct {
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode score response: %w", err)
	}

	score := clampScore(body.Score)
	p.cache.Add(cacheKey(viewer, target), score)
	return score, nil
}

// BatchScores returns scores for many targets, batching uncached targets
// into calls of at most externalBatchMax.
func (p *ExternalProvider) BatchScores(ctx context.Context, viewer string, targets []string) (map[string]float64, error) {
	if viewer == "" {
		return nil, wot.ErrNoViewer
	}

	out := make(map[string]float64, len(targets))
	var misses []string
	for _, target := range targets {
		if cached, ok := p.cache.Get(cacheKey(viewer, target)); ok {
			out[target] = cached
		} else {
			misses = append(misses, target)
		}
	}

	for start := 0; start < len(misses); start += externalBatchMax {
		end := start + externalBatchMax
		if end > len(misses) {
			end = len(misses)
		}
		scores, err := p.fetchBatch(ctx, viewer, misses[start:end])
		if err != nil {
			return nil, err
		}
		for target, score := range scores {
			score = clampScore(score)
			out[target] = score
			p.cache.Add(cacheKey(viewer, target), score)
		}
	}
	return out, nil
}

func (p *ExternalProvider) fetchBatch(ctx context.Context, viewer string, targets []string) (map[string]float64, error) {
	payload, err := json.Marshal(map[string]any{"viewer": viewer, "targets": targets})
	if err != nil {
		return nil, fmt.Errorf("marshal batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/wot/scores", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trust service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trust service: status %d", resp.StatusCode)
	}

	var body struct {
		Scores map[string]float64 `json:"scores"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	return body.Scores, nil
}

func cacheKey(viewer, target string) string {
	return viewer + "\x00" + target
}

func clampScore(score float64) float64 {
	if score < wot.MinScore {
		return wot.MinScore
	}
	if score > wot.MaxScore {
		return wot.MaxScore
	}
	return score
}
