package api

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/meridiansearch/meridian"
	apimiddleware "github.com/meridiansearch/meridian/infrastructure/api/middleware"
	v1 "github.com/meridiansearch/meridian/infrastructure/api/v1"
)

// apiTimeout bounds every request under /api.
const apiTimeout = 60 * time.Second

// APIServer provides an HTTP API backed by a meridian Client.
//
// Write protection follows the client's API keys: mutating methods on
// connectors, documents, webhooks, ontology, dictionary, and triggers
// require a valid X-API-KEY. Search, ask, tags, health, and the
// federated retrieval endpoints remain open.
type APIServer struct {
	client       *meridian.Client
	server       *Server
	router       chi.Router
	routerCalled bool
	logger       *slog.Logger
}

// NewAPIServer creates an APIServer wired to the given meridian Client.
func NewAPIServer(client *meridian.Client) *APIServer {
	return &APIServer{
		client: client,
		logger: client.Logger(),
	}
}

// Router returns the chi router for customization before starting.
// Call this first, add custom middleware with router.Use(), then call
// MountRoutes(). If not called, ListenAndServe creates a default router
// with all standard routes.
func (a *APIServer) Router() chi.Router {
	if a.router != nil {
		return a.router
	}

	a.router = chi.NewRouter()
	a.routerCalled = true
	return a.router
}

// MountRoutes wires up all API routes on the router. Call this after
// adding any custom middleware via Router().Use().
func (a *APIServer) MountRoutes() {
	if a.router == nil {
		a.Router()
	}
	a.mountRoutes(a.router)
}

// mountRoutes wires up all API routes on the given router.
func (a *APIServer) mountRoutes(router chi.Router) {
	c := a.client

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-KEY"},
		MaxAge:         300,
	}))
	router.Use(apimiddleware.RequestLogger(a.logger))

	healthRouter := v1.NewHealthRouter(c)
	searchRouter := v1.NewSearchRouter(c)
	askRouter := v1.NewAskRouter(c)
	tagsRouter := v1.NewTagsRouter(c)
	federationRouter := v1.NewFederationRouter(c)
	connectorsRouter := v1.NewConnectorsRouter(c)
	documentsRouter := v1.NewDocumentsRouter(c)
	webhooksRouter := v1.NewWebhooksRouter(c)
	ontologyRouter := v1.NewOntologyRouter(c)
	dictionaryRouter := v1.NewDictionaryRouter(c)
	triggersRouter := v1.NewTriggersRouter(c)

	router.Mount("/health", healthRouter.Routes())

	router.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(apiTimeout))

		// Open routes — reads and read-only POSTs.
		r.Mount("/search", searchRouter.Routes())
		r.Mount("/ask", askRouter.Routes())
		r.Mount("/tags", tagsRouter.Routes())
		r.Mount("/frpei", federationRouter.Routes())

		// Write-protected routes — mutating methods require a valid API
		// key when keys are configured.
		r.Group(func(r chi.Router) {
			r.Use(apimiddleware.WriteProtect(apimiddleware.NewAuthConfigWithKeys(c.APIKeys())))
			r.Mount("/connectors", connectorsRouter.Routes())
			r.Mount("/documents", documentsRouter.Routes())
			r.Mount("/webhooks", webhooksRouter.Routes())
			r.Mount("/ontology", ontologyRouter.Routes())
			r.Mount("/dictionary", dictionaryRouter.Routes())
			r.Mount("/triggers", triggersRouter.Routes())
		})
	})
}

// ListenAndServe starts the HTTP server on the given address.
func (a *APIServer) ListenAndServe(addr string) error {
	server := NewServer(addr, a.logger)
	a.server = &server

	if a.routerCalled && a.router != nil {
		server.Router().Mount("/", a.router)
	} else {
		a.mountRoutes(server.Router())
	}

	return server.Start()
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Handler returns the router as an http.Handler for use with custom
// servers and tests.
func (a *APIServer) Handler() http.Handler {
	if a.router == nil {
		a.Router()
		a.MountRoutes()
	}
	return a.router
}
