// Package meridian provides a federated semantic search engine: connector
// ingestion, NLP enrichment, hybrid retrieval (vector + lexical), ontology
// query expansion, web-of-trust ranking, and federated retrieval across
// external providers.
//
// Basic usage:
//
//	cfg, err := config.LoadConfig("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := meridian.New(meridian.WithConfig(cfg))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	resp, err := client.Search.Search(ctx, search.NewRequest("relay federation", search.ModeHybrid, 10))
package meridian

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	openai "github.com/sashabaranov/go-openai"

	"github.com/meridiansearch/meridian/application/service"
	"github.com/meridiansearch/meridian/domain/connector"
	domfrpei "github.com/meridiansearch/meridian/domain/frpei"
	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/nostr"
	"github.com/meridiansearch/meridian/domain/ontology"
	"github.com/meridiansearch/meridian/domain/search"
	"github.com/meridiansearch/meridian/domain/webhook"
	"github.com/meridiansearch/meridian/infrastructure/connector/folder"
	"github.com/meridiansearch/meridian/infrastructure/connector/nostrsync"
	"github.com/meridiansearch/meridian/infrastructure/connector/podcast"
	"github.com/meridiansearch/meridian/infrastructure/connector/sqlconn"
	"github.com/meridiansearch/meridian/infrastructure/connector/webspider"
	"github.com/meridiansearch/meridian/infrastructure/embedding"
	infrafrpei "github.com/meridiansearch/meridian/infrastructure/frpei"
	"github.com/meridiansearch/meridian/infrastructure/nlp"
	"github.com/meridiansearch/meridian/infrastructure/persistence"
	"github.com/meridiansearch/meridian/infrastructure/relay"
	infrasearch "github.com/meridiansearch/meridian/infrastructure/search"
	infrawot "github.com/meridiansearch/meridian/infrastructure/wot"
	"github.com/meridiansearch/meridian/internal/config"
	"github.com/meridiansearch/meridian/internal/database"
	"github.com/meridiansearch/meridian/internal/log"
)

// ErrNoDatabase is returned when no DATABASE_URL is configured.
var ErrNoDatabase = errors.New("meridian: no database configured")

// Client is the main entry point for the meridian library. Background
// loops (scheduler, enrichment) start automatically on creation.
//
// Access services via struct fields:
//
//	client.Search.Search(ctx, req)
//	client.Connectors.Trigger(ctx, id)
//	client.Federation.Retrieve(ctx, req)
type Client struct {
	// Public service fields (direct access).
	Search     *service.Search
	Ask        *service.Ask
	Connectors *service.ConnectorManager
	Scheduler  *service.Scheduler
	Enrichment *service.Enrichment
	Federation *service.Federation
	Webhooks   *service.WebhookSink
	Health     *service.Health

	db  database.Database
	cfg config.AppConfig

	documents  persistence.DocumentStore
	webhooks   persistence.WebhookStore
	deliveries persistence.DeliveryStore
	ontology   persistence.OntologyStore
	triggers   persistence.TriggerStore
	tags       persistence.TagStore

	relayPool *relay.Pool
	registry  *prometheus.Registry
	apiKeys   []string
	closers   []io.Closer

	logger *slog.Logger
	closed atomic.Bool
}

// New creates a Client with the given options. Schema migration runs
// before any service is constructed; the scheduler and the enrichment
// loop are started before New returns.
func New(opts ...Option) (*Client, error) {
	cc := newClientConfig()
	for _, opt := range opts {
		opt(cc)
	}
	cfg := cc.app

	logger := cc.logger
	if logger == nil {
		logger = log.NewLogger(cfg).Slog()
	}

	if cfg.DatabaseURL() == "" {
		return nil, ErrNoDatabase
	}
	if err := os.MkdirAll(cfg.DataDir(), 0o755); err != nil {
		return nil, fmt.Errorf("prepare data dir: %w", err)
	}

	// Optional kind registry extension for custom Nostr kinds.
	if data, err := os.ReadFile(filepath.Join(cfg.DataDir(), "kinds.yaml")); err == nil {
		overrides, err := nostr.ParseKindOverrides(data)
		if err != nil {
			return nil, err
		}
		nostr.RegisterKinds(overrides)
		logger.Info("loaded kind registry overrides", "kinds", len(overrides))
	}

	ctx := context.Background()
	db, err := database.NewDatabase(ctx, cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := persistence.AutoMigrate(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
	}
	if err := persistence.ValidateSchema(db); err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("validate schema: %w", err), errClose)
	}

	// Stores.
	documents := persistence.NewDocumentStore(db)
	connectors := persistence.NewConnectorStore(db)
	runs := persistence.NewRunStore(db)
	contacts := persistence.NewContactStore(db)
	results := persistence.NewEnrichmentResultStore(db)
	relationships := persistence.NewRelationshipStore(db)
	tags := persistence.NewTagStore(db)
	ontologyStore := persistence.NewOntologyStore(db)
	triggers := persistence.NewTriggerStore(db)
	webhooks := persistence.NewWebhookStore(db)
	deliveries := persistence.NewDeliveryStore(db)
	candidates := persistence.NewCandidateEnrichmentStore(db)
	rankLogs := persistence.NewRankLogStore(db)
	feedback := persistence.NewFeedbackStore(db)

	// Embedding backend per EMBEDDING_MODEL, unless injected.
	embedder := cc.embedder
	if embedder == nil {
		embedder, err = buildEmbedder(cfg, logger)
		if err != nil {
			errClose := db.Close()
			return nil, errors.Join(err, errClose)
		}
	}

	dimension := cfg.Embedding().Dimension()
	embeddings, err := persistence.NewEmbeddingStore(ctx, db, dimension, logger)
	if err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("embedding store: %w", err), errClose)
	}

	// Retrieval stores by dialect: pgvector + websearch tsquery on
	// Postgres, JSON vectors + FTS5 on SQLite.
	var vectors search.VectorStore
	var lexical search.LexicalStore
	if db.IsPostgres() {
		vectors = infrasearch.NewPgvectorStore(db, logger)
		lexical, err = infrasearch.NewPostgresLexicalStore(db, logger)
	} else {
		vectors = infrasearch.NewSQLiteVectorStore(db, embeddings, logger)
		lexical, err = infrasearch.NewSQLiteLexicalStore(db, logger)
	}
	if err != nil {
		errClose := db.Close()
		return nil, errors.Join(fmt.Errorf("lexical store: %w", err), errClose)
	}

	// Ranking plugins.
	var plugins []service.Plugin
	wotProvider := cc.wotProvider
	if wotProvider == nil && cfg.WOT().Enabled() {
		if cfg.WOT().Provider() == "external" && cfg.WOT().ServiceURL() != "" {
			wotProvider = infrawot.NewExternalProvider(cfg.WOT().ServiceURL(), cfg.WOT().CacheTTL(), logger)
		} else {
			wotProvider = infrawot.NewLocalProvider(contacts, cfg.WOT().CacheTTL())
		}
	}
	if wotProvider != nil {
		plugins = append(plugins, service.NewWoTPlugin(wotProvider, cfg.WOT().Weight(), cc.wotFilterMode, 0))
	}
	pipeline := service.NewPluginPipeline(logger, plugins...)

	fusion := search.NewFusionWithWeights(cfg.VectorWeight(), cfg.LexicalWeight())
	searchSvc := service.NewSearch(
		documents, vectors, lexical, embedder,
		ontologyStore, triggers, fusion, pipeline,
		cfg.SearchTimeout(), logger,
	)

	// RAG completion endpoint.
	chat := cc.chat
	if chat == nil && cfg.LLM().IsConfigured() {
		chat = newChatClient(cfg.LLM())
	}
	askSvc := service.NewAsk(searchSvc, chat, cfg.LLM().Model(), logger)

	// Connector runners. Injected runners win over the defaults.
	sink := service.NewWebhookSink(webhooks, deliveries, logger)
	pool := relay.NewPool(logger)
	for _, url := range cfg.Relays() {
		pool.Add(url)
	}
	spam := nostr.NewSpamFilter(
		nostr.WithFailThreshold(cfg.Spam().FailThreshold()),
		nostr.WithLinkRatio(cfg.Spam().LinkRatio()),
	)
	var extractor *folder.ExtractorClient
	if cfg.TextExtractorURL() != "" {
		extractor = folder.NewExtractorClient(cfg.TextExtractorURL(), nil)
	}
	var transcriber podcast.Transcriber
	if cfg.LLM().APIKey() != "" {
		transcriber = podcast.NewOpenAITranscriber(podcast.OpenAITranscriberConfig{
			APIKey:  cfg.LLM().APIKey(),
			BaseURL: cfg.LLM().BaseURL(),
		})
	}
	runners := map[connector.Type]connector.Runner{
		connector.TypeWeb:    webspider.NewRunner(documents, nil),
		connector.TypeFolder: folder.NewRunner(documents, extractor),
		connector.TypeSQL:    sqlconn.NewRunner(documents),
		connector.TypeNostr:  nostrsync.NewRunner(documents, contacts, pool, spam),
		connector.TypeRSS:    podcast.NewRunner(documents, transcriber, nil),
	}
	for kind, runner := range cc.runners {
		runners[kind] = runner
	}
	manager := service.NewConnectorManager(connectors, runs, runners, sink, logger)
	scheduler := service.NewScheduler(connectors, manager, runs, logger)

	// Enrichment pipeline.
	enricher := nlp.NewEnricher(nlp.NewKeywordExtractor(documents, logger))
	enrichment := service.NewEnrichment(
		documents, results, relationships, tags,
		lexical, embedder, embeddings, enricher, logger,
	)

	// Federated retrieval.
	registry := cc.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	providers := []domfrpei.Provider{infrafrpei.NewLocalProvider(searchSvc, 3)}
	if cfg.FRPEI().MetaSearchURL() != "" {
		providers = append(providers, infrafrpei.NewMetaSearchProvider("metasearch", cfg.FRPEI().MetaSearchURL(), 2, nil))
	}
	providers = append(providers, cc.providers...)
	wrapped := make([]domfrpei.Provider, len(providers))
	for i, p := range providers {
		wrapped[i] = infrafrpei.NewBreakerProvider(p)
	}
	federation := service.NewFederation(
		wrapped,
		domfrpei.NewRanker(domfrpei.DefaultWeights()),
		infrafrpei.NewResultCache(cfg.FRPEI().CacheTTL()),
		nlp.NewAnnotator(),
		candidates, rankLogs, feedback,
		registry, logger,
	)

	client := &Client{
		Search:     searchSvc,
		Ask:        askSvc,
		Connectors: manager,
		Scheduler:  scheduler,
		Enrichment: enrichment,
		Federation: federation,
		Webhooks:   sink,
		Health:     service.NewHealth(documents, embedder),

		db:         db,
		cfg:        cfg,
		documents:  documents,
		webhooks:   webhooks,
		deliveries: deliveries,
		ontology:   ontologyStore,
		triggers:   triggers,
		tags:       tags,
		relayPool:  pool,
		registry:   registry,
		apiKeys:    cc.apiKeys,
		closers:    cc.closers,
		logger:     logger,
	}

	scheduler.Start(ctx)
	enrichment.Start(ctx)

	return client, nil
}

// buildEmbedder selects the embedding backend from EMBEDDING_MODEL:
// "local" loads the bundled model, "hash" uses the deterministic hash
// embedder, anything else goes to an OpenAI-compatible endpoint.
func buildEmbedder(cfg config.AppConfig, logger *slog.Logger) (search.Embedder, error) {
	ec := cfg.Embedding()
	switch {
	case ec.Model() == "hash":
		return embedding.NewHashEmbedder(ec.Dimension()), nil
	case ec.IsLocal():
		modelDir := ec.ModelPath()
		if modelDir == "" {
			modelDir = filepath.Join(cfg.DataDir(), "models")
		}
		local := embedding.NewLocalEmbedder(modelDir, ec.Dimension())
		if !local.Available() {
			return nil, fmt.Errorf("no model found in %s: %w", modelDir, search.ErrModelUnavailable)
		}
		logger.Info("local embedding model enabled", slog.String("model_dir", modelDir))
		return local, nil
	default:
		return embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:    ec.APIKey(),
			BaseURL:   ec.BaseURL(),
			Model:     ec.Model(),
			Dimension: ec.Dimension(),
		}), nil
	}
}

// newChatClient builds the completion client for /api/ask.
func newChatClient(llm config.LLMConfig) service.ChatCompleter {
	cfg := openai.DefaultConfig(llm.APIKey())
	if llm.BaseURL() != "" {
		cfg.BaseURL = llm.BaseURL()
	}
	return openai.NewClientWithConfig(cfg)
}

// Documents returns the document store.
func (c *Client) Documents() document.Store { return c.documents }

// WebhookStore returns the webhook store.
func (c *Client) WebhookStore() webhook.Store { return c.webhooks }

// Deliveries returns the webhook delivery store.
func (c *Client) Deliveries() webhook.DeliveryStore { return c.deliveries }

// Ontology returns the ontology store.
func (c *Client) Ontology() ontology.Store { return c.ontology }

// Triggers returns the trigger store.
func (c *Client) Triggers() ontology.TriggerStore { return c.triggers }

// Tags returns the tag store.
func (c *Client) Tags() persistence.TagStore { return c.tags }

// RelayPool returns the Nostr relay pool.
func (c *Client) RelayPool() *relay.Pool { return c.relayPool }

// Registry returns the metrics registry.
func (c *Client) Registry() *prometheus.Registry { return c.registry }

// APIKeys returns the configured write-protection keys.
func (c *Client) APIKeys() []string { return c.apiKeys }

// Config returns the application configuration.
func (c *Client) Config() config.AppConfig { return c.cfg }

// Logger returns the client logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Close stops the background loops, cancels active connector runs, and
// releases the database.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return service.ErrClientClosed
	}

	c.Scheduler.Stop()
	c.Enrichment.Stop()
	c.Connectors.Close()

	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
