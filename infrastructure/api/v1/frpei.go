package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meridiansearch/meridian"
	"github.com/meridiansearch/meridian/application/service"
	"github.com/meridiansearch/meridian/domain/frpei"
	"github.com/meridiansearch/meridian/infrastructure/api/middleware"
	"github.com/meridiansearch/meridian/infrastructure/api/v1/dto"
)

// callerTrustTier is the tier assigned to caller-supplied candidates on
// the enrich and rank endpoints.
const callerTrustTier = 1

// FederationRouter handles federated retrieval endpoints.
type FederationRouter struct {
	client *meridian.Client
	logger *slog.Logger
}

// NewFederationRouter creates a FederationRouter.
func NewFederationRouter(client *meridian.Client) *FederationRouter {
	return &FederationRouter{client: client, logger: client.Logger()}
}

// Routes returns the chi router for federation endpoints.
func (r *FederationRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/retrieve", r.Retrieve)
	router.Post("/enrich", r.Enrich)
	router.Post("/rank", r.Rank)
	router.Post("/explain", r.Explain)
	router.Post("/feedback", r.Feedback)
	router.Get("/status", r.Status)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(r.client.Registry(), promhttp.HandlerOpts{}))

	return router
}

// Retrieve handles POST /api/frpei/retrieve.
func (r *FederationRouter) Retrieve(w http.ResponseWriter, req *http.Request) {
	r.retrieve(w, req, false)
}

// Explain handles POST /api/frpei/explain: a retrieval with signal
// contributions forced on.
func (r *FederationRouter) Explain(w http.ResponseWriter, req *http.Request) {
	r.retrieve(w, req, true)
}

func (r *FederationRouter) retrieve(w http.ResponseWriter, req *http.Request, forceExplain bool) {
	var body dto.RetrieveRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}

	options := []frpei.RequestOption{
		frpei.WithLimit(body.Limit),
		frpei.WithExplain(body.Explain || forceExplain),
		frpei.WithNoCache(body.NoCache),
		frpei.WithViewer(body.Viewer),
	}
	if len(body.Providers) > 0 {
		options = append(options, frpei.WithProviders(body.Providers...))
	}
	for k, v := range body.Filters {
		options = append(options, frpei.WithFilter(k, v))
	}
	if body.TimeoutMs > 0 {
		options = append(options, frpei.WithTimeout(time.Duration(body.TimeoutMs)*time.Millisecond))
	}

	result, err := r.client.Federation.Retrieve(req.Context(), frpei.NewRequest(body.Query, options...))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.NewRetrieveResponse(body.Query, result))
}

// Enrich handles POST /api/frpei/enrich: entity and topic annotation of
// caller-supplied candidates.
func (r *FederationRouter) Enrich(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Query string              `json:"query"`
		Items []dto.CandidateItem `json:"items"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}

	candidates, err := buildCandidates(body.Items)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	enriched := r.client.Federation.EnrichCandidates(req.Context(), candidates, body.Query)
	out := make([]dto.Candidate, 0, len(enriched))
	for _, c := range enriched {
		out = append(out, dto.NewCandidate(frpei.Ranked{Candidate: c}))
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// Rank handles POST /api/frpei/rank: scoring of caller-supplied
// candidates with caller-supplied signals.
func (r *FederationRouter) Rank(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Items   []dto.CandidateItem `json:"items"`
		Explain bool                `json:"explain,omitempty"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}

	candidates, err := buildCandidates(body.Items)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	ranked := r.client.Federation.Rank(candidates, body.Explain)
	out := make([]dto.Candidate, 0, len(ranked))
	for _, rc := range ranked {
		out = append(out, dto.NewCandidate(rc))
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// Feedback handles POST /api/frpei/feedback.
func (r *FederationRouter) Feedback(w http.ResponseWriter, req *http.Request) {
	var body dto.FeedbackRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}

	err := r.client.Federation.RecordFeedback(req.Context(), body.Query, body.CandidateID, frpei.FeedbackLabel(body.Label))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /api/frpei/status.
func (r *FederationRouter) Status(w http.ResponseWriter, req *http.Request) {
	states := r.client.Federation.ProviderStates()
	out := make([]dto.ProviderState, 0, len(states))
	for _, s := range states {
		out = append(out, dto.ProviderState{Name: s.Name, TrustTier: s.TrustTier, State: s.State})
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"providers": out})
}

// buildCandidates canonicalizes caller-supplied items.
func buildCandidates(items []dto.CandidateItem) ([]frpei.Candidate, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items are required", service.ErrInvalidInput)
	}

	canon := frpei.NewCanonicalizer()
	out := make([]frpei.Candidate, 0, len(items))
	for _, item := range items {
		provider := item.Provider
		if provider == "" {
			provider = "caller"
		}
		tier := item.TrustTier
		if tier <= 0 {
			tier = callerTrustTier
		}
		raw := frpei.RawCandidate{
			URL:         item.URL,
			Title:       item.Title,
			Snippet:     item.Snippet,
			ContentType: item.ContentType,
		}
		if item.PublishedAt != nil {
			raw.PublishedAt = *item.PublishedAt
		}
		c, err := canon.Candidate(provider, tier, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid candidate url %q", service.ErrInvalidInput, item.URL)
		}
		if item.Signals != nil {
			c = c.WithSignals(frpei.Signals{
				ProviderTrust: item.Signals.ProviderTrust,
				Relevance:     item.Signals.Relevance,
				Freshness:     item.Signals.Freshness,
				Popularity:    item.Signals.Popularity,
				EntityMatch:   item.Signals.EntityMatch,
			})
		}
		out = append(out, c)
	}
	return out, nil
}
