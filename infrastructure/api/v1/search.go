// Package v1 implements the HTTP API routers.
package v1

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridiansearch/meridian"
	"github.com/meridiansearch/meridian/domain/search"
	"github.com/meridiansearch/meridian/infrastructure/api/middleware"
	"github.com/meridiansearch/meridian/infrastructure/api/v1/dto"
)

// SearchRouter handles search endpoints.
type SearchRouter struct {
	client *meridian.Client
	logger *slog.Logger
}

// NewSearchRouter creates a SearchRouter.
func NewSearchRouter(client *meridian.Client) *SearchRouter {
	return &SearchRouter{client: client, logger: client.Logger()}
}

// Routes returns the chi router for search endpoints.
func (r *SearchRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.Search)
	router.Get("/facets", r.Facets)

	return router
}

// Search handles GET /api/search.
func (r *SearchRouter) Search(w http.ResponseWriter, req *http.Request) {
	searchReq, err := buildSearchRequest(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	resp, err := r.client.Search.Search(req.Context(), searchReq)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dto.NewSearchResponse(resp))
}

// Facets handles GET /api/search/facets: the facet counts of a query
// without the result page.
func (r *SearchRouter) Facets(w http.ResponseWriter, req *http.Request) {
	searchReq, err := buildSearchRequest(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	resp, err := r.client.Search.Search(req.Context(), searchReq)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	facets := &dto.SearchFacets{}
	if f := resp.Facets(); f != nil {
		facets.DocumentTypes = f.DocumentTypes()
		facets.Tags = f.Tags()
		facets.Authors = f.Authors()
		facets.Sources = f.Sources()
	}
	middleware.WriteJSON(w, http.StatusOK, facets)
}

// buildSearchRequest parses the shared search query parameters.
func buildSearchRequest(req *http.Request) (search.Request, error) {
	q := req.URL.Query()

	limit := intParam(q.Get("limit"), 10)
	searchReq := search.NewRequest(q.Get("q"), search.ParseMode(q.Get("mode")), limit).
		WithOffset(intParam(q.Get("offset"), 0)).
		WithExpand(boolParam(q.Get("expand"))).
		WithExplain(boolParam(q.Get("explain")))

	var opts []search.FiltersOption
	if types := csvParam(q.Get("type")); len(types) > 0 {
		opts = append(opts, search.WithDocumentTypes(types...))
	}
	if sources := csvParam(q.Get("source")); len(sources) > 0 {
		opts = append(opts, search.WithSources(sources...))
	}
	if tags := csvParam(q.Get("tags")); len(tags) > 0 {
		opts = append(opts, search.WithTagsAny(tags...))
	}
	if tags := csvParam(q.Get("tags_all")); len(tags) > 0 {
		opts = append(opts, search.WithTagsAll(tags...))
	}
	if raw := q.Get("minQuality"); raw != "" {
		minQuality, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return search.Request{}, middleware.NewAPIError(http.StatusBadRequest, "invalid minQuality", err)
		}
		opts = append(opts, search.WithMinQuality(minQuality))
	}
	since, err := timeParam(q.Get("since"))
	if err != nil {
		return search.Request{}, middleware.NewAPIError(http.StatusBadRequest, "invalid since", err)
	}
	until, err := timeParam(q.Get("until"))
	if err != nil {
		return search.Request{}, middleware.NewAPIError(http.StatusBadRequest, "invalid until", err)
	}
	if !since.IsZero() || !until.IsZero() {
		opts = append(opts, search.WithDateRange(since, until))
	}
	if len(opts) > 0 {
		searchReq = searchReq.WithFilters(search.NewFilters(opts...))
	}

	groups := csvParam(q.Get("user_groups"))
	pubkey := q.Get("user_pubkey")
	if len(groups) > 0 || pubkey != "" {
		searchReq = searchReq.WithUser(search.NewUserContext(groups, pubkey))
	}

	return searchReq, nil
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func boolParam(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}

func csvParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func timeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
