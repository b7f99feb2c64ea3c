// Package service provides application layer services that orchestrate
// domain operations.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/ontology"
	"github.com/meridiansearch/meridian/domain/search"
	"github.com/meridiansearch/meridian/domain/storage"
)

// maxCandidateDepth caps how far the candidate window may widen while
// compensating for permission-hidden documents.
const maxCandidateDepth = 1000

// Search executes hybrid retrieval: ontology expansion, vector and lexical
// candidate generation, weighted fusion, trigger boosts, the plugin
// pipeline, and facet computation over the pre-truncation pool.
type Search struct {
	documents document.Store
	vectors   search.VectorStore
	lexical   search.LexicalStore
	embedder  search.Embedder
	ontology  ontology.Store
	triggers  ontology.TriggerStore
	fusion    search.Fusion
	plugins   *PluginPipeline
	timeout   time.Duration
	logger    *slog.Logger
}

// NewSearch creates a Search service. A nil plugins pipeline runs no
// plugins; a zero timeout leaves request deadlines to the caller.
func NewSearch(
	documents document.Store,
	vectors search.VectorStore,
	lexical search.LexicalStore,
	embedder search.Embedder,
	ontologyStore ontology.Store,
	triggers ontology.TriggerStore,
	fusion search.Fusion,
	plugins *PluginPipeline,
	timeout time.Duration,
	logger *slog.Logger,
) *Search {
	if plugins == nil {
		plugins = NewPluginPipeline(logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Search{
		documents: documents,
		vectors:   vectors,
		lexical:   lexical,
		embedder:  embedder,
		ontology:  ontologyStore,
		triggers:  triggers,
		fusion:    fusion,
		plugins:   plugins,
		timeout:   timeout,
		logger:    logger,
	}
}

// Search runs one retrieval request.
func (s *Search) Search(ctx context.Context, req search.Request) (search.Response, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	query := strings.TrimSpace(req.Query())
	if query == "" {
		if req.Filters().IsZero() {
			return search.NewResponse("", req.Mode(), nil, 0, search.NewFacets()), nil
		}
		return s.recent(ctx, req)
	}

	plan := s.plan(ctx, req, query)
	filters := withCallerGroups(req.Filters(), req.User().UserGroups())

	// Restricted documents only drop out after hydration, so a window
	// that looked deep enough can underfill the requested page. Widen
	// and retry until the page fills, the indexes run dry, or the cap
	// is reached.
	depth := req.CandidateDepth()
	want := req.Offset() + req.Limit()
	for {
		vectorHits, lexicalHits, err := s.candidates(ctx, req, query, plan, depth, filters)
		if err != nil {
			return search.Response{}, err
		}

		var fused []search.Fused
		switch req.Mode() {
		case search.ModeVector:
			fused = s.fusion.FuseSingle(vectorHits, true)
		case search.ModeText:
			fused = s.fusion.FuseSingle(lexicalHits, false)
		default:
			fused = s.fusion.Fuse(vectorHits, lexicalHits)
		}

		resp, hidden, err := s.rank(ctx, req, query, plan, fused)
		if err != nil {
			return search.Response{}, err
		}
		exhausted := len(vectorHits) < depth && len(lexicalHits) < depth
		if hidden == 0 || resp.Total() >= want || exhausted || depth >= maxCandidateDepth {
			return resp, nil
		}
		depth *= 2
		if depth > maxCandidateDepth {
			depth = maxCandidateDepth
		}
	}
}

// candidates generates per-index hit lists for one window depth.
func (s *Search) candidates(ctx context.Context, req search.Request, query string, plan ontology.QueryPlan, depth int, filters search.Filters) (vectorHits, lexicalHits []search.Hit, err error) {
	if req.Mode() == search.ModeHybrid || req.Mode() == search.ModeVector {
		vectorHits, err = s.vectorCandidates(ctx, query, depth, filters, req.Mode())
		if err != nil {
			return nil, nil, err
		}
	}
	if req.Mode() == search.ModeHybrid || req.Mode() == search.ModeText {
		lexicalHits, err = s.lexical.Search(ctx, planTermQuery(plan), depth, filters)
		if err != nil {
			return nil, nil, fmt.Errorf("lexical search: %w", err)
		}
	}
	return vectorHits, lexicalHits, nil
}

// plan expands the query through the ontology snapshot and applies
// matching triggers. Snapshot and trigger failures degrade to identity
// expansion rather than failing the request.
func (s *Search) plan(ctx context.Context, req search.Request, query string) ontology.QueryPlan {
	snapshot := ontology.EmptySnapshot()
	if req.Expand() && s.ontology != nil {
		snap, err := s.ontology.Snapshot(ctx)
		if err != nil {
			s.logger.Warn("ontology snapshot unavailable", slog.String("error", err.Error()))
		} else {
			snapshot = snap
		}
	}
	plan := ontology.NewExpander(snapshot).Expand(query)

	if s.triggers != nil {
		active, err := s.triggers.Active(ctx)
		if err != nil {
			s.logger.Warn("triggers unavailable", slog.String("error", err.Error()))
		} else {
			plan = ontology.ApplyTriggers(plan, query, active)
		}
	}
	return plan
}

// vectorCandidates embeds the query and searches the vector index. In
// hybrid mode an embedding failure degrades to lexical-only retrieval; in
// vector mode it fails the request.
func (s *Search) vectorCandidates(ctx context.Context, query string, depth int, filters search.Filters, mode search.Mode) ([]search.Hit, error) {
	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		if mode == search.ModeVector {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		s.logger.Warn("query embedding failed, degrading to lexical", slog.String("error", err.Error()))
		return nil, nil
	}
	hits, err := s.vectors.Search(ctx, qvec, depth, filters)
	if err != nil {
		if mode == search.ModeVector {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		s.logger.Warn("vector search failed, degrading to lexical", slog.String("error", err.Error()))
		return nil, nil
	}
	return hits, nil
}

// rank hydrates the fused pool, applies trigger boosts and plugins, sorts,
// facets, and pages. The second return value is how many candidates the
// caller's permission groups hid, so Search can widen the window.
func (s *Search) rank(ctx context.Context, req search.Request, query string, plan ontology.QueryPlan, fused []search.Fused) (search.Response, int, error) {
	ids := make([]string, len(fused))
	byFused := make(map[string]search.Fused, len(fused))
	for i, f := range fused {
		ids[i] = f.ID()
		byFused[f.ID()] = f
	}

	docs, err := s.documents.ByIDs(ctx, ids)
	if err != nil {
		return search.Response{}, 0, fmt.Errorf("hydrate candidates: %w", err)
	}

	boosts := plan.DocTypeBoosts()
	groups := req.User().UserGroups()

	hidden := 0
	pool := make([]document.Document, 0, len(docs))
	scores := make(map[string]float64, len(docs))
	boostDelta := make(map[string]float64, len(boosts))
	for _, doc := range docs {
		if !doc.VisibleTo(groups) {
			hidden++
			continue
		}
		f, ok := byFused[doc.ID()]
		if !ok {
			continue
		}
		score := f.Score()
		if boost, ok := boosts[string(doc.DocumentType())]; ok && boost != 0 {
			adjusted := score * (1 + boost)
			boostDelta[doc.ID()] = adjusted - score
			score = adjusted
		}
		pool = append(pool, doc)
		scores[doc.ID()] = score
	}

	preplugin := make(map[string]float64, len(scores))
	for id, score := range scores {
		preplugin[id] = score
	}
	s.plugins.Apply(ctx, pool, req.User(), scores)

	// Plugins may drop candidates; shrink the pool to the survivors before
	// faceting so facet counts reflect what the caller could page through.
	survivors := pool[:0]
	for _, doc := range pool {
		if _, ok := scores[doc.ID()]; ok {
			survivors = append(survivors, doc)
		}
	}
	pool = survivors

	sort.SliceStable(pool, func(i, j int) bool {
		si, sj := scores[pool[i].ID()], scores[pool[j].ID()]
		if si != sj {
			return si > sj
		}
		if !pool[i].IndexedAt().Equal(pool[j].IndexedAt()) {
			return pool[i].IndexedAt().After(pool[j].IndexedAt())
		}
		return pool[i].ID() < pool[j].ID()
	})

	facets := search.NewFacets()
	for _, doc := range pool {
		facets.Add(doc)
	}

	page := paginate(pool, req.Offset(), req.Limit())
	results := make([]search.Result, 0, len(page))
	for _, doc := range page {
		result := search.NewResult(doc, scores[doc.ID()])
		if req.Explain() {
			f := byFused[doc.ID()]
			result = result.WithExplain(search.NewExplain(
				f.VectorScore(),
				f.LexicalScore(),
				boostDelta[doc.ID()],
				scores[doc.ID()]-preplugin[doc.ID()],
			))
		}
		results = append(results, result)
	}

	return search.NewResponse(query, req.Mode(), results, len(pool), facets), hidden, nil
}

// recent serves the empty-query-with-filters edge: the most recently
// indexed documents matching the filters, unranked.
func (s *Search) recent(ctx context.Context, req search.Request) (search.Response, error) {
	f := req.Filters()
	options := []storage.Option{
		storage.WithOrderDesc("indexed_at"),
		storage.WithOrderAsc("id"),
		// Over-fetch to survive the in-process permission check.
		storage.WithLimit((req.Limit() + req.Offset()) * 2),
	}
	if types := f.DocumentTypes(); len(types) > 0 {
		options = append(options, storage.WithConditionIn("document_type", types))
	}
	if sources := f.SourceIDs(); len(sources) > 0 {
		options = append(options, storage.WithConditionIn("source_id", sources))
	}
	if q := f.MinQuality(); q > 0 {
		options = append(options, storage.WithConditionOp("quality_score", ">=", q))
	}
	if since := f.Since(); !since.IsZero() {
		options = append(options, storage.WithConditionOp("last_modified", ">=", since))
	}
	if until := f.Until(); !until.IsZero() {
		options = append(options, storage.WithConditionOp("last_modified", "<=", until))
	}

	docs, err := s.documents.Find(ctx, options...)
	if err != nil {
		return search.Response{}, fmt.Errorf("recent documents: %w", err)
	}

	groups := req.User().UserGroups()
	visible := make([]document.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.VisibleTo(groups) {
			visible = append(visible, doc)
		}
	}

	facets := search.NewFacets()
	for _, doc := range visible {
		facets.Add(doc)
	}

	page := paginate(visible, req.Offset(), req.Limit())
	results := make([]search.Result, 0, len(page))
	for _, doc := range page {
		results = append(results, search.NewResult(doc, 0))
	}
	return search.NewResponse("", req.Mode(), results, len(visible), facets), nil
}

// planTermQuery converts a query plan into the lexical store's weighted
// term query. Trigger-injected terms form an extra weight-1 group.
func planTermQuery(plan ontology.QueryPlan) search.TermQuery {
	groups := make([]search.TermGroup, 0, len(plan.Groups())+1)
	for _, g := range plan.Groups() {
		terms := make([]search.WeightedTerm, 0, len(g.Terms()))
		for _, t := range g.Terms() {
			terms = append(terms, search.NewWeightedTerm(t.Term(), t.Weight()))
		}
		groups = append(groups, search.NewTermGroup(terms...))
	}
	if injected := plan.TermInjections(); len(injected) > 0 {
		terms := make([]search.WeightedTerm, 0, len(injected))
		for _, t := range injected {
			terms = append(terms, search.NewWeightedTerm(t, 1.0))
		}
		groups = append(groups, search.NewTermGroup(terms...))
	}
	return search.NewTermQuery(groups...)
}

// withCallerGroups rebuilds filters carrying the caller's permission
// groups so the stores can apply the permission predicate.
func withCallerGroups(f search.Filters, groups []string) search.Filters {
	return search.NewFilters(
		search.WithDocumentTypes(f.DocumentTypes()...),
		search.WithSources(f.SourceIDs()...),
		search.WithTagsAny(f.TagsAny()...),
		search.WithTagsAll(f.TagsAll()...),
		search.WithMinQuality(f.MinQuality()),
		search.WithDateRange(f.Since(), f.Until()),
		search.WithUserGroups(groups...),
	)
}

func paginate(docs []document.Document, offset, limit int) []document.Document {
	if offset >= len(docs) {
		return nil
	}
	end := offset + limit
	if end > len(docs) {
		end = len(docs)
	}
	return docs[offset:end]
}
