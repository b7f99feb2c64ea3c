package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/enrichment"
	"github.com/meridiansearch/meridian/domain/search"
)

// Enrichment poll defaults.
const (
	defaultEnrichInterval = 5 * time.Second
	defaultEnrichBatch    = 50
)

// Enricher produces the enrichment result for one document version.
type Enricher interface {
	Enrich(ctx context.Context, documentID string, version int, title, content string) enrichment.Result
}

// TagWriter replaces a document's tag set.
type TagWriter interface {
	SetTags(ctx context.Context, documentID string, tags []string) error
}

// Enrichment drains the pending queue in the background: each newly
// written or re-synced document gets tags, entities, metadata, a lexical
// index entry, and an embedding.
type Enrichment struct {
	documents     document.Store
	results       enrichment.Store
	relationships enrichment.RelationshipStore
	tags          TagWriter
	lexical       search.LexicalStore
	embedder      search.Embedder
	embeddings    document.EmbeddingStore
	enricher      Enricher
	interval      time.Duration
	batch         int
	logger        *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEnrichment creates an Enrichment service.
func NewEnrichment(
	documents document.Store,
	results enrichment.Store,
	relationships enrichment.RelationshipStore,
	tags TagWriter,
	lexical search.LexicalStore,
	embedder search.Embedder,
	embeddings document.EmbeddingStore,
	enricher Enricher,
	logger *slog.Logger,
) *Enrichment {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enrichment{
		documents:     documents,
		results:       results,
		relationships: relationships,
		tags:          tags,
		lexical:       lexical,
		embedder:      embedder,
		embeddings:    embeddings,
		enricher:      enricher,
		interval:      defaultEnrichInterval,
		batch:         defaultEnrichBatch,
		logger:        logger,
	}
}

// Start begins the background enrichment loop.
func (e *Enrichment) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Go(func() {
		e.run(ctx)
	})
	e.logger.Info("enrichment started", slog.Duration("interval", e.interval))
}

// Stop halts the loop and waits for the in-flight batch.
func (e *Enrichment) Stop() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()
	e.wg.Wait()
	e.logger.Info("enrichment stopped")
}

func (e *Enrichment) run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.ProcessPending(ctx); err != nil && ctx.Err() == nil {
				e.logger.Error("enrichment batch failed", slog.String("error", err.Error()))
			}
		}
	}
}

// ProcessPending enriches one batch of pending documents and returns how
// many were processed. Per-document failures are recorded as failed
// results and do not stop the batch.
func (e *Enrichment) ProcessPending(ctx context.Context) (int, error) {
	ids, err := e.results.Pending(ctx, e.batch)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	processed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if err := e.Process(ctx, id); err != nil {
			e.logger.Warn("document enrichment failed", slog.String("document_id", id), slog.String("error", err.Error()))
			continue
		}
		processed++
	}
	return processed, nil
}

// Process enriches a single document end to end.
func (e *Enrichment) Process(ctx context.Context, documentID string) error {
	doc, err := e.documents.ByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("%w: document %s", ErrNotFound, documentID)
	}

	// A re-synced document with unchanged content keeps its tags, index
	// entry, and embedding; only the staleness marker moves so the
	// pending scan stops returning it.
	hash := enrichment.HashContent(doc.Title(), doc.Content())
	if prev, err := e.results.ByDocumentID(ctx, doc.ID()); err == nil &&
		prev.Status() == enrichment.StatusCompleted && prev.ContentHash() == hash {
		if err := e.results.Save(ctx, prev.Refreshed()); err != nil {
			return fmt.Errorf("refresh enrichment: %w", err)
		}
		return nil
	}

	result := e.enricher.Enrich(ctx, doc.ID(), 1, doc.Title(), doc.Content()).WithContentHash(hash)
	if err := e.results.Save(ctx, result); err != nil {
		return fmt.Errorf("save enrichment: %w", err)
	}

	if err := e.tags.SetTags(ctx, doc.ID(), result.Tags()); err != nil {
		return fmt.Errorf("set tags: %w", err)
	}
	for _, entity := range result.Entities() {
		if err := e.relationships.Union(ctx, entity.Type(), entity.Normalized(), doc.ID()); err != nil {
			return fmt.Errorf("union relationship: %w", err)
		}
	}

	if err := e.lexical.Index(ctx, doc.ID(), doc.Title(), doc.Content()); err != nil {
		return fmt.Errorf("lexical index: %w", err)
	}

	// Embedding failure leaves the document lexically searchable; it will
	// be retried when the document changes.
	vector, err := e.embedder.Embed(ctx, doc.Title()+"\n"+doc.Content())
	if err != nil {
		e.logger.Warn("embedding failed", slog.String("document_id", doc.ID()), slog.String("error", err.Error()))
		return nil
	}
	if err := e.embeddings.Save(ctx, doc.ID(), vector); err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

// Reprocess drops derived rows for a document and enriches it afresh.
func (e *Enrichment) Reprocess(ctx context.Context, documentID string) error {
	if err := e.results.DeleteByDocumentIDs(ctx, []string{documentID}); err != nil {
		return fmt.Errorf("drop enrichment: %w", err)
	}
	if err := e.relationships.RemoveDocument(ctx, documentID); err != nil {
		return fmt.Errorf("drop relationships: %w", err)
	}
	return e.Process(ctx, documentID)
}
