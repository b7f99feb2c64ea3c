package frpei

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Default request budget.
const DefaultTimeout = 5 * time.Second

// Request is one federated retrieval invocation.
type Request struct {
	query     string
	providers []string
	filters   map[string]string
	limit     int
	timeout   time.Duration
	explain   bool
	noCache   bool
	viewer    string
}

// RequestOption configures a Request.
type RequestOption func(*Request)

// NewRequest creates a Request with defaults applied.
func NewRequest(query string, options ...RequestOption) Request {
	r := Request{
		query:   strings.TrimSpace(query),
		limit:   10,
		timeout: DefaultTimeout,
	}
	for _, opt := range options {
		opt(&r)
	}
	return r
}

// WithProviders restricts the request to the named providers.
func WithProviders(names ...string) RequestOption {
	return func(r *Request) { r.providers = names }
}

// WithFilter adds a provider-visible filter.
func WithFilter(key, value string) RequestOption {
	return func(r *Request) {
		if r.filters == nil {
			r.filters = map[string]string{}
		}
		r.filters[key] = value
	}
}

// WithLimit sets the result cap.
func WithLimit(n int) RequestOption {
	return func(r *Request) {
		if n > 0 {
			r.limit = n
		}
	}
}

// WithTimeout overrides the global deadline.
func WithTimeout(d time.Duration) RequestOption {
	return func(r *Request) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithExplain attaches per-result contribution breakdowns.
func WithExplain(explain bool) RequestOption {
	return func(r *Request) { r.explain = explain }
}

// WithNoCache bypasses the result cache for this request.
func WithNoCache(noCache bool) RequestOption {
	return func(r *Request) { r.noCache = noCache }
}

// WithViewer attaches the requesting user's pubkey for affinity signals.
func WithViewer(pubkey string) RequestOption {
	return func(r *Request) { r.viewer = pubkey }
}

// Query returns the trimmed query text.
func (r Request) Query() string { return r.query }

// Providers returns the requested provider names (nil = defaults).
func (r Request) Providers() []string {
	cp := make([]string, len(r.providers))
	copy(cp, r.providers)
	return cp
}

// Filters returns the provider-visible filters.
func (r Request) Filters() map[string]string {
	cp := make(map[string]string, len(r.filters))
	for k, v := range r.filters {
		cp[k] = v
	}
	return cp
}

// Limit returns the result cap.
func (r Request) Limit() int { return r.limit }

// Timeout returns the global deadline.
func (r Request) Timeout() time.Duration { return r.timeout }

// Explain reports whether contribution breakdowns were requested.
func (r Request) Explain() bool { return r.explain }

// NoCache reports whether the result cache is bypassed.
func (r Request) NoCache() bool { return r.noCache }

// Viewer returns the requesting user's pubkey ("" when anonymous).
func (r Request) Viewer() string { return r.viewer }

// CacheKey derives the result-cache key from the normalized query, the
// provider set, and the filters. The viewer and explain flag are excluded
// so cached candidate sets are shared; ranking reruns per request.
func (r Request) CacheKey() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(r.query))
	b.WriteByte('\n')

	providers := make([]string, len(r.providers))
	copy(providers, r.providers)
	sort.Strings(providers)
	b.WriteString(strings.Join(providers, ","))
	b.WriteByte('\n')

	keys := make([]string, 0, len(r.filters))
	for k := range r.filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(r.filters[k])
		b.WriteByte(';')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

// FeedbackLabel grades a result's relevance for future weight tuning.
type FeedbackLabel string

// Feedback labels.
const (
	FeedbackRelevant   FeedbackLabel = "relevant"
	FeedbackIrrelevant FeedbackLabel = "irrelevant"
	FeedbackSpam       FeedbackLabel = "spam"
)

// Feedback is one relevance judgement on a returned candidate.
type Feedback struct {
	query       string
	candidateID string
	label       FeedbackLabel
	recordedAt  time.Time
}

// NewFeedback records a relevance judgement.
func NewFeedback(query, candidateID string, label FeedbackLabel) Feedback {
	return Feedback{
		query:       strings.TrimSpace(query),
		candidateID: candidateID,
		label:       label,
		recordedAt:  time.Now().UTC(),
	}
}

// Query returns the judged query.
func (f Feedback) Query() string { return f.query }

// CandidateID returns the judged candidate.
func (f Feedback) CandidateID() string { return f.candidateID }

// Label returns the judgement.
func (f Feedback) Label() FeedbackLabel { return f.label }

// RecordedAt returns when the judgement was made.
func (f Feedback) RecordedAt() time.Time { return f.recordedAt }
