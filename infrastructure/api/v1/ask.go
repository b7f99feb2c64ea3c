package v1

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridiansearch/meridian"
	"github.com/meridiansearch/meridian/domain/search"
	"github.com/meridiansearch/meridian/infrastructure/api/middleware"
	"github.com/meridiansearch/meridian/infrastructure/api/v1/dto"
)

// AskRouter handles the RAG endpoint.
type AskRouter struct {
	client *meridian.Client
	logger *slog.Logger
}

// NewAskRouter creates an AskRouter.
func NewAskRouter(client *meridian.Client) *AskRouter {
	return &AskRouter{client: client, logger: client.Logger()}
}

// Routes returns the chi router for the ask endpoint.
func (r *AskRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", r.Ask)

	return router
}

// Ask handles POST /api/ask.
func (r *AskRouter) Ask(w http.ResponseWriter, req *http.Request) {
	var body dto.AskRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}

	user := search.NewUserContext(body.UserGroups, body.UserPubkey)
	answer, err := r.client.Ask.Answer(req.Context(), body.Question, body.Limit, user)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dto.NewAskResponse(answer))
}
