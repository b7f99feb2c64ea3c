package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridiansearch/meridian"
	"github.com/meridiansearch/meridian/application/service"
	"github.com/meridiansearch/meridian/domain/storage"
	"github.com/meridiansearch/meridian/infrastructure/api/middleware"
	"github.com/meridiansearch/meridian/infrastructure/api/v1/dto"
)

// defaultDeliveryPage bounds GET /api/webhooks/{id}/deliveries.
const defaultDeliveryPage = 50

// WebhooksRouter handles webhook subscription endpoints.
type WebhooksRouter struct {
	client *meridian.Client
	logger *slog.Logger
}

// NewWebhooksRouter creates a WebhooksRouter.
func NewWebhooksRouter(client *meridian.Client) *WebhooksRouter {
	return &WebhooksRouter{client: client, logger: client.Logger()}
}

// Routes returns the chi router for webhook endpoints.
func (r *WebhooksRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Post("/", r.Create)
	router.Get("/{id}", r.Get)
	router.Put("/{id}", r.Update)
	router.Delete("/{id}", r.Delete)
	router.Get("/{id}/deliveries", r.Deliveries)

	return router
}

// List handles GET /api/webhooks.
func (r *WebhooksRouter) List(w http.ResponseWriter, req *http.Request) {
	hooks, err := r.client.WebhookStore().Find(req.Context(), storage.WithOrderAsc("created_at"))
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	out := make([]dto.Webhook, 0, len(hooks))
	for _, h := range hooks {
		out = append(out, dto.NewWebhook(h))
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// Create handles POST /api/webhooks.
func (r *WebhooksRouter) Create(w http.ResponseWriter, req *http.Request) {
	var body dto.WebhookRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}

	hook, err := r.client.Webhooks.Register(req.Context(), body.URL, body.Secret, body.Events)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, dto.NewWebhook(hook))
}

// Get handles GET /api/webhooks/{id}.
func (r *WebhooksRouter) Get(w http.ResponseWriter, req *http.Request) {
	hook, err := r.client.WebhookStore().ByID(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		middleware.WriteError(w, req, fmt.Errorf("%w: webhook", service.ErrNotFound), r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.NewWebhook(hook))
}

// Update handles PUT /api/webhooks/{id}: event list and active flag only;
// URL and secret are immutable.
func (r *WebhooksRouter) Update(w http.ResponseWriter, req *http.Request) {
	hook, err := r.client.WebhookStore().ByID(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		middleware.WriteError(w, req, fmt.Errorf("%w: webhook", service.ErrNotFound), r.logger)
		return
	}

	var body struct {
		Events   []string `json:"events,omitempty"`
		IsActive *bool    `json:"is_active,omitempty"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}

	if body.Events != nil {
		if hook, err = hook.WithEvents(body.Events); err != nil {
			middleware.WriteError(w, req, fmt.Errorf("%w: %s", service.ErrInvalidInput, err), r.logger)
			return
		}
	}
	if body.IsActive != nil {
		hook = hook.WithActive(*body.IsActive)
	}

	if err := r.client.WebhookStore().Save(req.Context(), hook); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.NewWebhook(hook))
}

// Delete handles DELETE /api/webhooks/{id}.
func (r *WebhooksRouter) Delete(w http.ResponseWriter, req *http.Request) {
	if err := r.client.WebhookStore().Delete(req.Context(), chi.URLParam(req, "id")); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Deliveries handles GET /api/webhooks/{id}/deliveries.
func (r *WebhooksRouter) Deliveries(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	deliveries, err := r.client.Deliveries().ByWebhookID(
		req.Context(),
		chi.URLParam(req, "id"),
		storage.WithLimit(intParam(q.Get("limit"), defaultDeliveryPage)),
		storage.WithOrderDesc("created_at"),
	)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	out := make([]dto.Delivery, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, dto.NewDelivery(d))
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}
