package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridiansearch/meridian"
	"github.com/meridiansearch/meridian/domain/connector"
	"github.com/meridiansearch/meridian/infrastructure/api/middleware"
	"github.com/meridiansearch/meridian/infrastructure/api/v1/dto"
)

// defaultRunHistory bounds GET /api/connectors/{id}/runs.
const defaultRunHistory = 20

// ConnectorsRouter handles connector management endpoints.
type ConnectorsRouter struct {
	client *meridian.Client
	logger *slog.Logger
}

// NewConnectorsRouter creates a ConnectorsRouter.
func NewConnectorsRouter(client *meridian.Client) *ConnectorsRouter {
	return &ConnectorsRouter{client: client, logger: client.Logger()}
}

// Routes returns the chi router for connector endpoints.
func (r *ConnectorsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Post("/", r.Create)
	router.Get("/{id}", r.Get)
	router.Put("/{id}", r.Update)
	router.Delete("/{id}", r.Delete)
	router.Post("/{id}/run", r.Run)
	router.Post("/{id}/stop", r.Stop)
	router.Get("/{id}/status", r.Status)
	router.Get("/{id}/runs", r.Runs)

	return router
}

// List handles GET /api/connectors.
func (r *ConnectorsRouter) List(w http.ResponseWriter, req *http.Request) {
	connectors, err := r.client.Connectors.List(req.Context())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	out := make([]dto.Connector, 0, len(connectors))
	for _, c := range connectors {
		out = append(out, dto.NewConnector(c))
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// Create handles POST /api/connectors.
func (r *ConnectorsRouter) Create(w http.ResponseWriter, req *http.Request) {
	var body dto.ConnectorRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}

	kind, cfg, err := parseConnectorConfig(body)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	c, err := r.client.Connectors.Create(req.Context(), body.Name, kind, cfg, body.Templates())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	if body.Schedule != nil || body.IsActive != nil {
		if body.Schedule != nil {
			c = c.WithSchedule(*body.Schedule)
		}
		if body.IsActive != nil {
			c = c.WithActive(*body.IsActive)
		}
		if err := r.client.Connectors.Update(req.Context(), c); err != nil {
			middleware.WriteError(w, req, err, r.logger)
			return
		}
	}

	middleware.WriteJSON(w, http.StatusCreated, dto.NewConnector(c))
}

// Get handles GET /api/connectors/{id}.
func (r *ConnectorsRouter) Get(w http.ResponseWriter, req *http.Request) {
	c, err := r.client.Connectors.Get(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.NewConnector(c))
}

// Update handles PUT /api/connectors/{id}.
func (r *ConnectorsRouter) Update(w http.ResponseWriter, req *http.Request) {
	c, err := r.client.Connectors.Get(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	var body dto.ConnectorRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}

	if body.Name != "" {
		c = c.WithName(body.Name)
	}
	if body.Config != nil {
		cfg, err := connector.ParseConfig(c.Kind(), body.Config)
		if err != nil {
			middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid config", err), r.logger)
			return
		}
		if c, err = c.WithConfig(cfg); err != nil {
			middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid config", err), r.logger)
			return
		}
	}
	if body.URLTemplates != nil {
		if c, err = c.WithTemplates(body.Templates()); err != nil {
			middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid url templates", err), r.logger)
			return
		}
	}
	if body.Schedule != nil {
		c = c.WithSchedule(*body.Schedule)
	}
	if body.IsActive != nil {
		c = c.WithActive(*body.IsActive)
	}

	if err := r.client.Connectors.Update(req.Context(), c); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.NewConnector(c))
}

// Delete handles DELETE /api/connectors/{id}.
func (r *ConnectorsRouter) Delete(w http.ResponseWriter, req *http.Request) {
	if err := r.client.Connectors.Delete(req.Context(), chi.URLParam(req, "id")); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Run handles POST /api/connectors/{id}/run.
func (r *ConnectorsRouter) Run(w http.ResponseWriter, req *http.Request) {
	run, err := r.client.Connectors.Trigger(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, dto.NewRun(run))
}

// Stop handles POST /api/connectors/{id}/stop.
func (r *ConnectorsRouter) Stop(w http.ResponseWriter, req *http.Request) {
	if err := r.client.Connectors.Stop(req.Context(), chi.URLParam(req, "id")); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status handles GET /api/connectors/{id}/status.
func (r *ConnectorsRouter) Status(w http.ResponseWriter, req *http.Request) {
	run, err := r.client.Connectors.Status(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.NewRun(run))
}

// Runs handles GET /api/connectors/{id}/runs.
func (r *ConnectorsRouter) Runs(w http.ResponseWriter, req *http.Request) {
	limit := intParam(req.URL.Query().Get("limit"), defaultRunHistory)
	runs, err := r.client.Connectors.Runs(req.Context(), chi.URLParam(req, "id"), limit)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	out := make([]dto.Run, 0, len(runs))
	for _, run := range runs {
		out = append(out, dto.NewRun(run))
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// parseConnectorConfig decodes the kind and kind-specific config from a
// connector body.
func parseConnectorConfig(body dto.ConnectorRequest) (connector.Type, connector.Config, error) {
	kind, err := connector.ParseType(body.Type)
	if err != nil {
		return "", nil, middleware.NewAPIError(http.StatusBadRequest, "unknown connector type", err)
	}
	cfg, err := connector.ParseConfig(kind, body.Config)
	if err != nil {
		return "", nil, middleware.NewAPIError(http.StatusBadRequest, "invalid config", err)
	}
	return kind, cfg, nil
}
