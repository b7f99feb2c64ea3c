// Package dto holds the JSON request and response shapes of the HTTP API.
package dto

import (
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/meridiansearch/meridian/application/service"
	"github.com/meridiansearch/meridian/domain/connector"
	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/frpei"
	"github.com/meridiansearch/meridian/domain/search"
	"github.com/meridiansearch/meridian/domain/webhook"
)

// SearchResult is one search hit.
type SearchResult struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	URL          string         `json:"url,omitempty"`
	Score        float64        `json:"score"`
	QualityScore float64        `json:"quality_score"`
	DocumentType string         `json:"document_type"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	Explain      *SearchExplain `json:"explain,omitempty"`
}

// SearchExplain is the per-result score breakdown.
type SearchExplain struct {
	VectorScore      float64 `json:"vector_score"`
	TextScore        float64 `json:"text_score"`
	Boosts           float64 `json:"boosts"`
	PluginAdjustment float64 `json:"plugin_adjustment"`
}

// SearchFacets are value counts over the candidate pool.
type SearchFacets struct {
	DocumentTypes map[string]int `json:"document_types"`
	Tags          map[string]int `json:"tags"`
	Authors       map[string]int `json:"authors"`
	Sources       map[string]int `json:"sources"`
}

// SearchResponse is the /api/search response.
type SearchResponse struct {
	Query   string         `json:"query"`
	Mode    string         `json:"mode"`
	Count   int            `json:"count"`
	Total   int            `json:"total"`
	Results []SearchResult `json:"results"`
	Facets  *SearchFacets  `json:"facets,omitempty"`
}

// NewSearchResult maps a domain result.
func NewSearchResult(r search.Result) SearchResult {
	doc := r.Document()
	out := SearchResult{
		ID:           doc.ID(),
		Title:        doc.Title(),
		Content:      doc.Content(),
		URL:          doc.URL(),
		Score:        r.Score(),
		QualityScore: doc.QualityScore(),
		DocumentType: string(doc.DocumentType()),
		Attributes:   doc.Attributes().Map(),
	}
	if e := r.Explain(); e != nil {
		out.Explain = &SearchExplain{
			VectorScore:      e.VectorScore(),
			TextScore:        e.TextScore(),
			Boosts:           e.Boosts(),
			PluginAdjustment: e.PluginAdjustment(),
		}
	}
	return out
}

// NewSearchResponse maps a domain response.
func NewSearchResponse(resp search.Response) SearchResponse {
	results := resp.Results()
	out := SearchResponse{
		Query:   resp.Query(),
		Mode:    string(resp.Mode()),
		Count:   resp.Count(),
		Total:   resp.Total(),
		Results: make([]SearchResult, 0, len(results)),
	}
	for _, r := range results {
		out.Results = append(out.Results, NewSearchResult(r))
	}
	if f := resp.Facets(); f != nil {
		out.Facets = &SearchFacets{
			DocumentTypes: f.DocumentTypes(),
			Tags:          f.Tags(),
			Authors:       f.Authors(),
			Sources:       f.Sources(),
		}
	}
	return out
}

// AskRequest is the /api/ask body.
type AskRequest struct {
	Question   string   `json:"question"`
	Limit      int      `json:"limit,omitempty"`
	UserPubkey string   `json:"user_pubkey,omitempty"`
	UserGroups []string `json:"user_groups,omitempty"`
}

// AskResponse is the /api/ask response.
type AskResponse struct {
	Answer  string         `json:"answer"`
	Sources []SearchResult `json:"sources"`
}

// NewAskResponse maps a grounded answer.
func NewAskResponse(a service.Answer) AskResponse {
	out := AskResponse{Answer: a.Text, Sources: make([]SearchResult, 0, len(a.Sources))}
	for _, src := range a.Sources {
		out.Sources = append(out.Sources, NewSearchResult(src))
	}
	return out
}

// Connector is one connector resource.
type Connector struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Config        map[string]any `json:"config"`
	URLTemplates  *URLTemplates  `json:"url_templates,omitempty"`
	IsActive      bool           `json:"is_active"`
	Schedule      string         `json:"schedule,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	LastRunAt     *time.Time     `json:"last_run_at,omitempty"`
	LastRunStatus string         `json:"last_run_status,omitempty"`
}

// URLTemplates are the portal link templates of a connector.
type URLTemplates struct {
	PortalURL         string `json:"portal_url,omitempty"`
	ItemURLTemplate   string `json:"item_url_template,omitempty"`
	ListURLTemplate   string `json:"list_url_template,omitempty"`
	SearchURLTemplate string `json:"search_url_template,omitempty"`
}

// ConnectorRequest is the connector create/update body.
type ConnectorRequest struct {
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	Config       map[string]any `json:"config"`
	URLTemplates *URLTemplates  `json:"url_templates,omitempty"`
	Schedule     *string        `json:"schedule,omitempty"`
	IsActive     *bool          `json:"is_active,omitempty"`
}

// Templates converts the body templates to the domain value.
func (r ConnectorRequest) Templates() connector.URLTemplates {
	if r.URLTemplates == nil {
		return connector.URLTemplates{}
	}
	t := r.URLTemplates
	return connector.NewURLTemplates(t.PortalURL, t.ItemURLTemplate, t.ListURLTemplate, t.SearchURLTemplate)
}

// NewConnector maps a domain connector.
func NewConnector(c connector.Connector) Connector {
	out := Connector{
		ID:            c.ID().String(),
		Name:          c.Name(),
		Type:          string(c.Kind()),
		Config:        ConfigMap(c.Config()),
		IsActive:      c.IsActive(),
		Schedule:      c.Schedule(),
		CreatedAt:     c.CreatedAt(),
		UpdatedAt:     c.UpdatedAt(),
		LastRunStatus: string(c.LastRunStatus()),
	}
	if !c.LastRunAt().IsZero() {
		at := c.LastRunAt()
		out.LastRunAt = &at
	}
	t := c.Templates()
	if t.PortalURL() != "" || t.ItemURLTemplate() != "" || t.ListURLTemplate() != "" || t.SearchURLTemplate() != "" {
		out.URLTemplates = &URLTemplates{
			PortalURL:         t.PortalURL(),
			ItemURLTemplate:   t.ItemURLTemplate(),
			ListURLTemplate:   t.ListURLTemplate(),
			SearchURLTemplate: t.SearchURLTemplate(),
		}
	}
	return out
}

// ConfigMap renders a typed connector config as the untyped map
// connector.ParseConfig accepts.
func ConfigMap(cfg connector.Config) map[string]any {
	if cfg == nil {
		return nil
	}
	var m map[string]any
	_ = mapstructure.Decode(cfg, &m)
	return m
}

// RunCounters are the document counters of a run.
type RunCounters struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

// RunLogEntry is one structured log line of a run.
type RunLogEntry struct {
	At      time.Time      `json:"at"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Run is one connector run.
type Run struct {
	ID          string        `json:"id"`
	ConnectorID string        `json:"connector_id"`
	Status      string        `json:"status"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Counters    RunCounters   `json:"counters"`
	Error       string        `json:"error,omitempty"`
	Log         []RunLogEntry `json:"log,omitempty"`
}

// NewRun maps a domain run.
func NewRun(r connector.Run) Run {
	out := Run{
		ID:          r.ID().String(),
		ConnectorID: r.ConnectorID().String(),
		Status:      string(r.Status()),
		StartedAt:   r.StartedAt(),
		Counters: RunCounters{
			Added:   r.Counters().Added(),
			Updated: r.Counters().Updated(),
			Removed: r.Counters().Removed(),
		},
		Error: r.ErrorMessage(),
	}
	if !r.CompletedAt().IsZero() {
		at := r.CompletedAt()
		out.CompletedAt = &at
	}
	for _, entry := range r.Log() {
		out.Log = append(out.Log, RunLogEntry{
			At:      entry.At(),
			Level:   entry.Level(),
			Message: entry.Message(),
			Fields:  entry.Fields(),
		})
	}
	return out
}

// Document is one document resource.
type Document struct {
	ID               string         `json:"id"`
	SourceID         string         `json:"source_id,omitempty"`
	ExternalID       string         `json:"external_id,omitempty"`
	Title            string         `json:"title"`
	Content          string         `json:"content"`
	URL              string         `json:"url,omitempty"`
	DocumentType     string         `json:"document_type"`
	Attributes       map[string]any `json:"attributes,omitempty"`
	PermissionGroups []string       `json:"permission_groups,omitempty"`
	QualityScore     float64        `json:"quality_score"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	IndexedAt        *time.Time     `json:"indexed_at,omitempty"`
	LastModified     *time.Time     `json:"last_modified,omitempty"`
}

// DocumentRequest is the document create/update body.
type DocumentRequest struct {
	SourceID         string         `json:"source_id,omitempty"`
	ExternalID       string         `json:"external_id,omitempty"`
	Title            string         `json:"title"`
	Content          string         `json:"content"`
	URL              string         `json:"url,omitempty"`
	DocumentType     string         `json:"document_type"`
	Attributes       map[string]any `json:"attributes,omitempty"`
	PermissionGroups []string       `json:"permission_groups,omitempty"`
	QualityScore     *float64       `json:"quality_score,omitempty"`
	LastModified     *time.Time     `json:"last_modified,omitempty"`
}

// NewDocument maps a domain document.
func NewDocument(d document.Document) Document {
	out := Document{
		ID:               d.ID(),
		SourceID:         d.SourceID(),
		ExternalID:       d.ExternalID(),
		Title:            d.Title(),
		Content:          d.Content(),
		URL:              d.URL(),
		DocumentType:     string(d.DocumentType()),
		Attributes:       d.Attributes().Map(),
		PermissionGroups: d.PermissionGroups(),
		QualityScore:     d.QualityScore(),
		CreatedAt:        d.CreatedAt(),
		UpdatedAt:        d.UpdatedAt(),
	}
	if !d.IndexedAt().IsZero() {
		at := d.IndexedAt()
		out.IndexedAt = &at
	}
	if !d.LastModified().IsZero() {
		at := d.LastModified()
		out.LastModified = &at
	}
	return out
}

// Webhook is one webhook resource. The secret never leaves the server.
type Webhook struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WebhookRequest is the webhook create body.
type WebhookRequest struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

// NewWebhook maps a domain webhook.
func NewWebhook(w webhook.Webhook) Webhook {
	return Webhook{
		ID:        w.ID().String(),
		URL:       w.URL(),
		Events:    w.Events(),
		IsActive:  w.IsActive(),
		CreatedAt: w.CreatedAt(),
		UpdatedAt: w.UpdatedAt(),
	}
}

// Delivery is one webhook delivery record.
type Delivery struct {
	ID          string    `json:"id"`
	WebhookID   string    `json:"webhook_id"`
	Event       string    `json:"event"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	NextAttempt time.Time `json:"next_attempt"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewDelivery maps a domain delivery.
func NewDelivery(d webhook.Delivery) Delivery {
	return Delivery{
		ID:          d.ID().String(),
		WebhookID:   d.WebhookID().String(),
		Event:       d.Event(),
		Status:      string(d.Status()),
		Attempts:    d.Attempts(),
		NextAttempt: d.NextAttempt(),
		LastError:   d.LastError(),
		CreatedAt:   d.CreatedAt(),
	}
}

// Term is one ontology term.
type Term struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	ParentID string `json:"parent_id,omitempty"`
	Taxonomy string `json:"taxonomy,omitempty"`
}

// Relation is one ontology relation.
type Relation struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	Type   string `json:"type"`
}

// Alias is one surface-form alias.
type Alias struct {
	Surface string  `json:"surface"`
	TermID  string  `json:"term_id"`
	Weight  float64 `json:"weight"`
}

// DictionaryEntry is one query-expansion dictionary entry.
type DictionaryEntry struct {
	Key        string   `json:"key"`
	Expansions []string `json:"expansions"`
}

// Trigger is one query trigger.
type Trigger struct {
	ID       string   `json:"id"`
	Pattern  string   `json:"pattern"`
	Action   string   `json:"action"`
	DocType  string   `json:"doc_type,omitempty"`
	Boost    float64  `json:"boost,omitempty"`
	Terms    []string `json:"terms,omitempty"`
	Priority int      `json:"priority"`
	Enabled  bool     `json:"enabled"`
}

// TagCount is one tag-cloud entry.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TagPairCount is one co-occurrence entry.
type TagPairCount struct {
	Tag   string `json:"tag"`
	Other string `json:"other"`
	Count int    `json:"count"`
}

// RetrieveRequest is the /api/frpei/retrieve body.
type RetrieveRequest struct {
	Query     string            `json:"query"`
	Limit     int               `json:"limit,omitempty"`
	Providers []string          `json:"providers,omitempty"`
	Filters   map[string]string `json:"filters,omitempty"`
	TimeoutMs int               `json:"timeout_ms,omitempty"`
	Explain   bool              `json:"explain,omitempty"`
	NoCache   bool              `json:"no_cache,omitempty"`
	Viewer    string            `json:"viewer,omitempty"`
}

// Candidate is one federated result.
type Candidate struct {
	ID          string               `json:"id"`
	URL         string               `json:"url"`
	Domain      string               `json:"domain"`
	Title       string               `json:"title"`
	Snippet     string               `json:"snippet,omitempty"`
	ContentType string               `json:"content_type,omitempty"`
	Provider    string               `json:"provider"`
	TrustTier   int                  `json:"trust_tier"`
	PublishedAt *time.Time           `json:"published_at,omitempty"`
	Entities    []string             `json:"entities,omitempty"`
	Topics      []string             `json:"topics,omitempty"`
	Score       float64              `json:"score"`
	Why         []SignalContribution `json:"why,omitempty"`
}

// SignalContribution is one explain line of a ranked candidate.
type SignalContribution struct {
	Signal string  `json:"signal"`
	Value  float64 `json:"value"`
}

// ProviderStat is one provider's contribution to a retrieval.
type ProviderStat struct {
	Provider  string `json:"provider"`
	Count     int    `json:"count"`
	Failed    bool   `json:"failed,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// RetrieveResponse is the /api/frpei/retrieve response. ProviderStats
// and Warnings are absent on cache hits.
type RetrieveResponse struct {
	Query         string         `json:"query"`
	Count         int            `json:"count"`
	Cached        bool           `json:"cached"`
	Results       []Candidate    `json:"results"`
	ProviderStats []ProviderStat `json:"provider_stats,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
}

// NewCandidate maps a ranked candidate.
func NewCandidate(r frpei.Ranked) Candidate {
	c := r.Candidate
	out := Candidate{
		ID:          c.ID(),
		URL:         c.CanonicalURL(),
		Domain:      c.CanonicalDomain(),
		Title:       c.Title(),
		Snippet:     c.Snippet(),
		ContentType: c.ContentType(),
		Provider:    c.Provider(),
		TrustTier:   c.TrustTier(),
		Entities:    c.Entities(),
		Topics:      c.Topics(),
		Score:       r.Score,
	}
	if !c.PublishedAt().IsZero() {
		at := c.PublishedAt()
		out.PublishedAt = &at
	}
	for _, w := range r.Why {
		out.Why = append(out.Why, SignalContribution{Signal: w.Signal, Value: w.Value})
	}
	return out
}

// NewRetrieveResponse maps a retrieval result.
func NewRetrieveResponse(query string, res service.RetrieveResult) RetrieveResponse {
	out := RetrieveResponse{
		Query:   query,
		Count:   len(res.Ranked),
		Cached:  res.Cached,
		Results: make([]Candidate, 0, len(res.Ranked)),
	}
	for _, r := range res.Ranked {
		out.Results = append(out.Results, NewCandidate(r))
	}
	for _, s := range res.Stats {
		out.ProviderStats = append(out.ProviderStats, ProviderStat{
			Provider:  s.Provider,
			Count:     s.Count,
			Failed:    s.Failed,
			ElapsedMs: s.Elapsed.Milliseconds(),
		})
	}
	out.Warnings = res.Warnings
	return out
}

// CandidateItem is a caller-supplied candidate for the enrich and rank
// endpoints.
type CandidateItem struct {
	URL         string            `json:"url"`
	Title       string            `json:"title,omitempty"`
	Snippet     string            `json:"snippet,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Provider    string            `json:"provider,omitempty"`
	TrustTier   int               `json:"trust_tier,omitempty"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
	Signals     *CandidateSignals `json:"signals,omitempty"`
}

// CandidateSignals are caller-supplied ranking signals.
type CandidateSignals struct {
	ProviderTrust float64 `json:"provider_trust"`
	Relevance     float64 `json:"relevance"`
	Freshness     float64 `json:"freshness"`
	Popularity    float64 `json:"popularity"`
	EntityMatch   float64 `json:"entity_match"`
}

// FeedbackRequest is the /api/frpei/feedback body.
type FeedbackRequest struct {
	Query       string `json:"query"`
	CandidateID string `json:"candidate_id"`
	Label       string `json:"label"`
}

// ProviderState is one provider's health summary.
type ProviderState struct {
	Name      string `json:"name"`
	TrustTier int    `json:"trust_tier"`
	State     string `json:"state"`
}

// HealthCheck is one dependency probe.
type HealthCheck struct {
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latency"`
	Error     string `json:"error,omitempty"`
}

// HealthResponse is the /health response.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]HealthCheck `json:"checks"`
}
