package v1

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridiansearch/meridian"
	"github.com/meridiansearch/meridian/application/service"
	"github.com/meridiansearch/meridian/infrastructure/api/middleware"
	"github.com/meridiansearch/meridian/infrastructure/api/v1/dto"
)

// defaultTagLimit bounds tag cloud and co-occurrence responses.
const defaultTagLimit = 50

// TagsRouter handles tag analytics endpoints.
type TagsRouter struct {
	client *meridian.Client
	logger *slog.Logger
}

// NewTagsRouter creates a TagsRouter.
func NewTagsRouter(client *meridian.Client) *TagsRouter {
	return &TagsRouter{client: client, logger: client.Logger()}
}

// Routes returns the chi router for tag endpoints.
func (r *TagsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/cloud", r.Cloud)
	router.Get("/cooccurrence", r.Cooccurrence)

	return router
}

// Cloud handles GET /api/tags/cloud.
func (r *TagsRouter) Cloud(w http.ResponseWriter, req *http.Request) {
	limit := intParam(req.URL.Query().Get("limit"), defaultTagLimit)
	counts, err := r.client.Tags().Cloud(req.Context(), limit)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	out := make([]dto.TagCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, dto.TagCount{Tag: c.Tag, Count: c.Count})
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// Cooccurrence handles GET /api/tags/cooccurrence?tag=<t>.
func (r *TagsRouter) Cooccurrence(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	tag := q.Get("tag")
	if tag == "" {
		middleware.WriteError(w, req, fmt.Errorf("%w: tag parameter is required", service.ErrInvalidInput), r.logger)
		return
	}

	counts, err := r.client.Tags().Cooccurring(req.Context(), tag, intParam(q.Get("limit"), defaultTagLimit))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	out := make([]dto.TagPairCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, dto.TagPairCount{Tag: c.Tag, Other: c.Other, Count: c.Count})
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}
