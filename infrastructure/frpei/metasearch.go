package frpei

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/meridiansearch/meridian/domain/frpei"
)

// MetaSearchProvider queries an external meta-search engine (SearxNG-style
// JSON API) as a federated retrieval source.
type MetaSearchProvider struct {
	name      string
	baseURL   string
	trustTier int
	client    *http.Client
}

// NewMetaSearchProvider creates a provider against the engine's base URL.
func NewMetaSearchProvider(name, baseURL string, trustTier int, client *http.Client) *MetaSearchProvider {
	if name == "" {
		name = "metasearch"
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &MetaSearchProvider{
		name:      name,
		baseURL:   baseURL,
		trustTier: trustTier,
		client:    client,
	}
}

// Name identifies the provider in requests and rank logs.
func (p *MetaSearchProvider) Name() string { return p.name }

// TrustTier orders the provider for dedup conflict resolution.
func (p *MetaSearchProvider) TrustTier() int { return p.trustTier }

// metaSearchResult is the engine's per-result JSON shape.
type metaSearchResult struct {
	URL           string  `json:"url"`
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	PublishedDate string  `json:"publishedDate"`
	Score         float64 `json:"score"`
	Category      string  `json:"category"`
}

// Fetch retrieves candidates from the engine's JSON search endpoint.
func (p *MetaSearchProvider) Fetch(ctx context.Context, query string, limit int) ([]frpei.RawCandidate, error) {
	endpoint := fmt.Sprintf("%s/search?format=json&q=%s", p.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("meta search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("meta search: status %d", resp.StatusCode)
	}

	var body struct {
		Results []metaSearchResult `json:"results"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := body.Results
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	// Engine scores are rank-relative, not [0,1]; position carries more
	// signal than magnitude, so relevance decays linearly by rank.
	candidates := make([]frpei.RawCandidate, 0, len(results))
	for i, r := range results {
		if r.URL == "" {
			continue
		}
		relevance := 1 - float64(i)/float64(len(results))
		candidates = append(candidates, frpei.RawCandidate{
			URL:         r.URL,
			Title:       r.Title,
			Snippet:     r.Content,
			PublishedAt: parsePublished(r.PublishedDate),
			Relevance:   relevance,
			Metadata:    map[string]any{"category": r.Category, "engine_score": strconv.FormatFloat(r.Score, 'f', -1, 64)},
		})
	}
	return candidates, nil
}

func parsePublished(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
