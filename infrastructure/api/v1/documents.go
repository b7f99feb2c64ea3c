package v1

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridiansearch/meridian"
	"github.com/meridiansearch/meridian/application/service"
	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/storage"
	"github.com/meridiansearch/meridian/infrastructure/api/middleware"
	"github.com/meridiansearch/meridian/infrastructure/api/v1/dto"
)

// defaultDocumentPage bounds GET /api/documents.
const defaultDocumentPage = 50

// DocumentsRouter handles document endpoints.
type DocumentsRouter struct {
	client *meridian.Client
	logger *slog.Logger
}

// NewDocumentsRouter creates a DocumentsRouter.
func NewDocumentsRouter(client *meridian.Client) *DocumentsRouter {
	return &DocumentsRouter{client: client, logger: client.Logger()}
}

// Routes returns the chi router for document endpoints.
func (r *DocumentsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Post("/", r.Upsert)
	router.Get("/{id}", r.Get)
	router.Delete("/{id}", r.Delete)
	router.Post("/{id}/reprocess", r.Reprocess)

	return router
}

// List handles GET /api/documents.
func (r *DocumentsRouter) List(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	options := []storage.Option{
		storage.WithLimit(intParam(q.Get("limit"), defaultDocumentPage)),
		storage.WithOffset(intParam(q.Get("offset"), 0)),
		storage.WithOrderDesc("updated_at"),
	}
	if docType := q.Get("type"); docType != "" {
		options = append(options, storage.WithCondition("document_type", docType))
	}
	if source := q.Get("source"); source != "" {
		options = append(options, storage.WithSourceID(source))
	}

	docs, err := r.client.Documents().Find(req.Context(), options...)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	out := make([]dto.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, dto.NewDocument(d))
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// Upsert handles POST /api/documents. Identity is (source_id,
// external_id) when both are set, so re-posting the same external
// document updates it in place.
func (r *DocumentsRouter) Upsert(w http.ResponseWriter, req *http.Request) {
	var body dto.DocumentRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}
	if body.Title == "" || body.Content == "" || body.DocumentType == "" {
		err := fmt.Errorf("%w: title, content, and document_type are required", service.ErrInvalidInput)
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	doc := document.New(body.SourceID, body.ExternalID, body.Title, body.Content, document.Type(body.DocumentType))
	if body.URL != "" {
		doc = doc.WithURL(body.URL)
	}
	if body.Attributes != nil {
		doc = doc.WithAttributes(document.NewAttributes(body.Attributes))
	}
	if body.PermissionGroups != nil {
		doc = doc.WithPermissionGroups(body.PermissionGroups)
	}
	if body.QualityScore != nil {
		doc = doc.WithQualityScore(*body.QualityScore)
	}
	if body.LastModified != nil {
		doc = doc.WithLastModified(*body.LastModified)
	}

	saved, outcome, err := r.client.Documents().Upsert(req.Context(), doc)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	status := http.StatusCreated
	if outcome == document.OutcomeUpdated {
		status = http.StatusOK
	}
	middleware.WriteJSON(w, status, dto.NewDocument(saved))
}

// Get handles GET /api/documents/{id}.
func (r *DocumentsRouter) Get(w http.ResponseWriter, req *http.Request) {
	doc, err := r.client.Documents().ByID(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		middleware.WriteError(w, req, fmt.Errorf("%w: document", service.ErrNotFound), r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.NewDocument(doc))
}

// Delete handles DELETE /api/documents/{id}.
func (r *DocumentsRouter) Delete(w http.ResponseWriter, req *http.Request) {
	if err := r.client.Documents().Delete(req.Context(), chi.URLParam(req, "id")); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reprocess handles POST /api/documents/{id}/reprocess: drop the derived
// artifacts and run the enrichment pipeline again.
func (r *DocumentsRouter) Reprocess(w http.ResponseWriter, req *http.Request) {
	if err := r.client.Enrichment.Reprocess(req.Context(), chi.URLParam(req, "id")); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
