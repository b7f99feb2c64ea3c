// Package frpei implements the federated retrieval domain model: raw
// provider candidates, canonicalization, deduplication, and signal-based
// ranking.
package frpei

import (
	"context"
	"time"
)

// RawCandidate is what a provider returns before canonicalization.
type RawCandidate struct {
	URL         string
	Title       string
	Snippet     string
	ContentType string
	PublishedAt time.Time
	Relevance   float64
	Popularity  float64
	Metadata    map[string]any
}

// Provider fetches raw candidates for a query. Providers are wrapped in
// circuit breakers by the orchestrator; they only implement retrieval.
type Provider interface {
	// Name identifies the provider in requests and rank logs.
	Name() string

	// TrustTier orders providers for dedup conflict resolution; higher
	// wins.
	TrustTier() int

	// Fetch retrieves candidates within the context deadline.
	Fetch(ctx context.Context, query string, limit int) ([]RawCandidate, error)
}

// Candidate is a canonicalized, deduplicated retrieval result.
type Candidate struct {
	id              string
	canonicalURL    string
	canonicalDomain string
	title           string
	snippet         string
	contentType     string
	provider        string
	trustTier       int
	publishedAt     time.Time
	signals         Signals
	entities        []string
	topics          []string
}

// ID returns the candidate's stable identifier (derived from the
// canonical URL).
func (c Candidate) ID() string { return c.id }

// CanonicalURL returns the normalized URL.
func (c Candidate) CanonicalURL() string { return c.canonicalURL }

// CanonicalDomain returns the normalized host without a www prefix.
func (c Candidate) CanonicalDomain() string { return c.canonicalDomain }

// Title returns the normalized title.
func (c Candidate) Title() string { return c.title }

// Snippet returns the provider snippet.
func (c Candidate) Snippet() string { return c.snippet }

// ContentType returns the detected content type.
func (c Candidate) ContentType() string { return c.contentType }

// Provider returns the contributing provider's name.
func (c Candidate) Provider() string { return c.provider }

// TrustTier returns the contributing provider's trust tier.
func (c Candidate) TrustTier() int { return c.trustTier }

// PublishedAt returns the publication time (zero when unknown).
func (c Candidate) PublishedAt() time.Time { return c.publishedAt }

// Signals returns the ranking signals.
func (c Candidate) Signals() Signals { return c.signals }

// Entities returns ontology entities attached during enrichment.
func (c Candidate) Entities() []string {
	cp := make([]string, len(c.entities))
	copy(cp, c.entities)
	return cp
}

// Topics returns topics attached during enrichment.
func (c Candidate) Topics() []string {
	cp := make([]string, len(c.topics))
	copy(cp, c.topics)
	return cp
}

// WithEnrichment returns a copy carrying ontology entities and topics.
func (c Candidate) WithEnrichment(entities, topics []string) Candidate {
	entCp := make([]string, len(entities))
	copy(entCp, entities)
	topCp := make([]string, len(topics))
	copy(topCp, topics)
	c.entities = entCp
	c.topics = topCp
	return c
}

// WithSignals returns a copy with replaced signals.
func (c Candidate) WithSignals(s Signals) Candidate {
	c.signals = s
	return c
}

// merge resolves a canonical-URL collision: the higher trust tier keeps
// its identity fields and the signals are unioned.
func (c Candidate) merge(other Candidate) Candidate {
	winner, loser := c, other
	if other.trustTier > c.trustTier {
		winner, loser = other, c
	}
	winner.signals = winner.signals.Union(loser.signals)
	if winner.snippet == "" {
		winner.snippet = loser.snippet
	}
	if winner.publishedAt.IsZero() {
		winner.publishedAt = loser.publishedAt
	}
	return winner
}

// Deduplicate collapses candidates sharing a canonical URL. Input order is
// preserved for the surviving entries.
func Deduplicate(candidates []Candidate) []Candidate {
	byURL := make(map[string]int, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if idx, seen := byURL[c.canonicalURL]; seen {
			out[idx] = out[idx].merge(c)
			continue
		}
		byURL[c.canonicalURL] = len(out)
		out = append(out, c)
	}
	return out
}
