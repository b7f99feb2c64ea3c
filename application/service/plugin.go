package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/search"
	"github.com/meridiansearch/meridian/domain/wot"
)

// Adjuster rewrites one candidate's score. Returning drop removes the
// candidate from the result set entirely.
type Adjuster func(doc document.Document, base float64) (score float64, drop bool)

// Plugin adjusts candidate scores for one search request. Evaluate is the
// batch-prefetch hook: it sees the whole candidate pool once and returns
// the per-candidate adjuster. A nil adjuster means the plugin does not
// apply to this request.
type Plugin interface {
	Name() string
	Evaluate(ctx context.Context, docs []document.Document, user search.UserContext) (Adjuster, error)
}

// PluginPipeline applies plugins in registration order. Plugin errors are
// non-fatal: the plugin is skipped and candidates keep their base scores.
type PluginPipeline struct {
	plugins []Plugin
	logger  *slog.Logger
}

// NewPluginPipeline creates a PluginPipeline.
func NewPluginPipeline(logger *slog.Logger, plugins ...Plugin) *PluginPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &PluginPipeline{plugins: plugins, logger: logger}
}

// Apply runs every plugin over the candidate pool, mutating scores in
// place. Candidates dropped by a plugin are removed from the map.
func (p *PluginPipeline) Apply(ctx context.Context, docs []document.Document, user search.UserContext, scores map[string]float64) {
	for _, plugin := range p.plugins {
		adjust, err := plugin.Evaluate(ctx, docs, user)
		if err != nil {
			p.logger.Warn("plugin skipped", slog.String("plugin", plugin.Name()), slog.String("error", err.Error()))
			continue
		}
		if adjust == nil {
			continue
		}
		for _, doc := range docs {
			base, ok := scores[doc.ID()]
			if !ok {
				continue
			}
			score, drop := adjust(doc, base)
			if drop {
				delete(scores, doc.ID())
				continue
			}
			scores[doc.ID()] = score
		}
	}
}

// WoTPlugin reranks candidates by the social proximity between the viewer
// and each author: base x (1 + weight x trust), amplification capped at
// 2x. In strict and moderate filter modes, authors below the mode's trust
// threshold are dropped.
type WoTPlugin struct {
	provider wot.Provider
	weight   float64
	mode     wot.FilterMode
	timeout  time.Duration
}

// NewWoTPlugin creates a WoTPlugin. A zero timeout defaults to one second;
// the trust lookup must never dominate search latency.
func NewWoTPlugin(provider wot.Provider, weight float64, mode wot.FilterMode, timeout time.Duration) *WoTPlugin {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &WoTPlugin{provider: provider, weight: weight, mode: mode, timeout: timeout}
}

// Name identifies the plugin in logs.
func (p *WoTPlugin) Name() string { return "wot" }

// Evaluate batch-fetches trust scores for every distinct author in the
// pool. Anonymous requests and pools without authors are no-ops.
func (p *WoTPlugin) Evaluate(ctx context.Context, docs []document.Document, user search.UserContext) (Adjuster, error) {
	viewer := user.UserPubkey()
	if viewer == "" || p.provider == nil {
		return nil, nil
	}

	seen := map[string]struct{}{}
	targets := make([]string, 0, len(docs))
	for _, doc := range docs {
		author := doc.Attributes().GetString(document.AttrPubkey)
		if author == "" {
			continue
		}
		if _, dup := seen[author]; dup {
			continue
		}
		seen[author] = struct{}{}
		targets = append(targets, author)
	}
	if len(targets) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	scores, err := p.provider.BatchScores(ctx, viewer, targets)
	if err != nil {
		return nil, err
	}

	return func(doc document.Document, base float64) (float64, bool) {
		author := doc.Attributes().GetString(document.AttrPubkey)
		if author == "" {
			return base, false
		}
		trust, ok := scores[author]
		if !ok {
			trust = wot.UnreachedScore
		}
		if !p.mode.Admits(trust) {
			return 0, true
		}
		return wot.Adjust(base, trust, p.weight), false
	}, nil
}
