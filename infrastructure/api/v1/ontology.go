package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridiansearch/meridian"
	"github.com/meridiansearch/meridian/application/service"
	"github.com/meridiansearch/meridian/domain/ontology"
	"github.com/meridiansearch/meridian/infrastructure/api/middleware"
	"github.com/meridiansearch/meridian/infrastructure/api/v1/dto"
)

// OntologyRouter handles ontology term, relation, and alias endpoints.
type OntologyRouter struct {
	client *meridian.Client
	logger *slog.Logger
}

// NewOntologyRouter creates an OntologyRouter.
func NewOntologyRouter(client *meridian.Client) *OntologyRouter {
	return &OntologyRouter{client: client, logger: client.Logger()}
}

// Routes returns the chi router for ontology endpoints.
func (r *OntologyRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.Terms)
	router.Post("/", r.SaveTerm)
	router.Delete("/{id}", r.DeleteTerm)
	router.Post("/relations", r.SaveRelation)
	router.Post("/aliases", r.SaveAlias)

	return router
}

// Terms handles GET /api/ontology.
func (r *OntologyRouter) Terms(w http.ResponseWriter, req *http.Request) {
	terms, err := r.client.Ontology().Terms(req.Context())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	out := make([]dto.Term, 0, len(terms))
	for _, t := range terms {
		out = append(out, dto.Term{
			ID:       t.ID(),
			Label:    t.Label(),
			ParentID: t.ParentID(),
			Taxonomy: t.Taxonomy(),
		})
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// SaveTerm handles POST /api/ontology.
func (r *OntologyRouter) SaveTerm(w http.ResponseWriter, req *http.Request) {
	var body dto.Term
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}
	if body.Label == "" {
		middleware.WriteError(w, req, fmt.Errorf("%w: label is required", service.ErrInvalidInput), r.logger)
		return
	}
	if body.ID == "" {
		body.ID = uuid.NewString()
	}

	term := ontology.NewTerm(body.ID, body.Label, body.ParentID, body.Taxonomy)
	if err := r.client.Ontology().SaveTerm(req.Context(), term); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, body)
}

// DeleteTerm handles DELETE /api/ontology/{id}.
func (r *OntologyRouter) DeleteTerm(w http.ResponseWriter, req *http.Request) {
	if err := r.client.Ontology().DeleteTerm(req.Context(), chi.URLParam(req, "id")); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveRelation handles POST /api/ontology/relations.
func (r *OntologyRouter) SaveRelation(w http.ResponseWriter, req *http.Request) {
	var body dto.Relation
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}
	relationType := ontology.RelationType(body.Type)
	if relationType.Weight() == 0 {
		middleware.WriteError(w, req, fmt.Errorf("%w: unknown relation type %q", service.ErrInvalidInput, body.Type), r.logger)
		return
	}
	if body.FromID == "" || body.ToID == "" {
		middleware.WriteError(w, req, fmt.Errorf("%w: from_id and to_id are required", service.ErrInvalidInput), r.logger)
		return
	}

	relation := ontology.NewRelation(body.FromID, body.ToID, relationType)
	if err := r.client.Ontology().SaveRelation(req.Context(), relation); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, body)
}

// SaveAlias handles POST /api/ontology/aliases.
func (r *OntologyRouter) SaveAlias(w http.ResponseWriter, req *http.Request) {
	var body dto.Alias
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}
	if body.Surface == "" || body.TermID == "" {
		middleware.WriteError(w, req, fmt.Errorf("%w: surface and term_id are required", service.ErrInvalidInput), r.logger)
		return
	}
	if body.Weight <= 0 || body.Weight > 1 {
		body.Weight = 1
	}

	alias := ontology.NewAlias(body.Surface, body.TermID, body.Weight)
	if err := r.client.Ontology().SaveAlias(req.Context(), alias); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, body)
}

// DictionaryRouter handles query-expansion dictionary endpoints.
type DictionaryRouter struct {
	client *meridian.Client
	logger *slog.Logger
}

// NewDictionaryRouter creates a DictionaryRouter.
func NewDictionaryRouter(client *meridian.Client) *DictionaryRouter {
	return &DictionaryRouter{client: client, logger: client.Logger()}
}

// Routes returns the chi router for dictionary endpoints.
func (r *DictionaryRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Post("/", r.Save)

	return router
}

// List handles GET /api/dictionary.
func (r *DictionaryRouter) List(w http.ResponseWriter, req *http.Request) {
	entries, err := r.client.Ontology().DictionaryEntries(req.Context())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	out := make([]dto.DictionaryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.DictionaryEntry{Key: e.Key(), Expansions: e.Expansions()})
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// Save handles POST /api/dictionary.
func (r *DictionaryRouter) Save(w http.ResponseWriter, req *http.Request) {
	var body dto.DictionaryEntry
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}
	if body.Key == "" || len(body.Expansions) == 0 {
		middleware.WriteError(w, req, fmt.Errorf("%w: key and expansions are required", service.ErrInvalidInput), r.logger)
		return
	}

	entry := ontology.NewDictionaryEntry(body.Key, body.Expansions)
	if err := r.client.Ontology().SaveDictionaryEntry(req.Context(), entry); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, body)
}

// TriggersRouter handles query trigger endpoints.
type TriggersRouter struct {
	client *meridian.Client
	logger *slog.Logger
}

// NewTriggersRouter creates a TriggersRouter.
func NewTriggersRouter(client *meridian.Client) *TriggersRouter {
	return &TriggersRouter{client: client, logger: client.Logger()}
}

// Routes returns the chi router for trigger endpoints.
func (r *TriggersRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Post("/", r.Save)
	router.Delete("/{id}", r.Delete)

	return router
}

// List handles GET /api/triggers.
func (r *TriggersRouter) List(w http.ResponseWriter, req *http.Request) {
	triggers, err := r.client.Triggers().All(req.Context())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	out := make([]dto.Trigger, 0, len(triggers))
	for _, t := range triggers {
		out = append(out, dto.Trigger{
			ID:       t.ID(),
			Pattern:  t.Pattern(),
			Action:   string(t.Action()),
			DocType:  t.DocType(),
			Boost:    t.Boost(),
			Terms:    t.Terms(),
			Priority: t.Priority(),
			Enabled:  t.Enabled(),
		})
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// Save handles POST /api/triggers.
func (r *TriggersRouter) Save(w http.ResponseWriter, req *http.Request) {
	var body dto.Trigger
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}
	if body.ID == "" {
		body.ID = uuid.NewString()
	}

	trigger, err := buildTrigger(body)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	if err := r.client.Triggers().Save(req.Context(), trigger); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, body)
}

// Delete handles DELETE /api/triggers/{id}.
func (r *TriggersRouter) Delete(w http.ResponseWriter, req *http.Request) {
	if err := r.client.Triggers().Delete(req.Context(), chi.URLParam(req, "id")); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// buildTrigger validates and converts a trigger body.
func buildTrigger(body dto.Trigger) (ontology.Trigger, error) {
	action := ontology.TriggerAction(body.Action)
	trigger, err := ontology.NewTrigger(body.ID, body.Pattern, action, body.Priority)
	if err != nil {
		return ontology.Trigger{}, fmt.Errorf("%w: invalid pattern: %s", service.ErrInvalidInput, err)
	}

	switch action {
	case ontology.ActionBoostDocType:
		if body.DocType == "" || body.Boost == 0 {
			return ontology.Trigger{}, fmt.Errorf("%w: doc_type and boost are required for %s", service.ErrInvalidInput, action)
		}
		trigger = trigger.WithDocTypeBoost(body.DocType, body.Boost)
	case ontology.ActionInjectTerms:
		if len(body.Terms) == 0 {
			return ontology.Trigger{}, fmt.Errorf("%w: terms are required for %s", service.ErrInvalidInput, action)
		}
		trigger = trigger.WithInjectedTerms(body.Terms...)
	default:
		return ontology.Trigger{}, fmt.Errorf("%w: unknown trigger action %q", service.ErrInvalidInput, body.Action)
	}

	return trigger.WithEnabled(body.Enabled), nil
}
