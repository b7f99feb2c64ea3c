package v1

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridiansearch/meridian"
	"github.com/meridiansearch/meridian/application/service"
	"github.com/meridiansearch/meridian/infrastructure/api/middleware"
	"github.com/meridiansearch/meridian/infrastructure/api/v1/dto"
)

// HealthRouter handles the health endpoint.
type HealthRouter struct {
	client *meridian.Client
	logger *slog.Logger
}

// NewHealthRouter creates a HealthRouter.
func NewHealthRouter(client *meridian.Client) *HealthRouter {
	return &HealthRouter{client: client, logger: client.Logger()}
}

// Routes returns the chi router for the health endpoint.
func (r *HealthRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.Health)

	return router
}

// Health handles GET /health. Down reports 503 so load balancers drop
// the instance.
func (r *HealthRouter) Health(w http.ResponseWriter, req *http.Request) {
	report := r.client.Health.Check(req.Context())

	out := dto.HealthResponse{
		Status: report.Status,
		Checks: make(map[string]dto.HealthCheck, len(report.Checks)),
	}
	for name, check := range report.Checks {
		out.Checks[name] = dto.HealthCheck{
			OK:        check.OK,
			LatencyMs: check.Latency.Milliseconds(),
			Error:     check.Error,
		}
	}

	status := http.StatusOK
	if report.Status == service.StatusDown {
		status = http.StatusServiceUnavailable
	}
	middleware.WriteJSON(w, status, out)
}
