package wot

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/meridiansearch/meridian/domain/wot"
)

// BFS tunables: hop scores decay by half per hop, three hops deep.
const (
	maxHops  = 3
	hopDecay = 0.5

	reachCacheSize = 1024
)

// LocalProvider walks the follow graph built from ingested kind-3 contact
// lists: a direct follow scores 1.0, two hops 0.5, three hops 0.25, and
// anything unreached wot.UnreachedScore. The viewer's full reachability
// map is computed once per BFS and memoized, so batch scoring a result
// page costs one graph walk.
type LocalProvider struct {
	graph wot.GraphStore
	cache *expirable.LRU[string, map[string]float64]
}

// NewLocalProvider creates a LocalProvider over the graph store. A zero
// cacheTTL defaults to five minutes; the cache bounds how long a viewer
// sees a stale graph snapshot.
func NewLocalProvider(graph wot.GraphStore, cacheTTL time.Duration) *LocalProvider {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &LocalProvider{
		graph: graph,
		cache: expirable.NewLRU[string, map[string]float64](reachCacheSize, nil, cacheTTL),
	}
}

// Score returns the trust score of target as seen by viewer.
func (p *LocalProvider) Score(ctx context.Context, viewer, target string) (float64, error) {
	scores, err := p.BatchScores(ctx, viewer, []string{target})
	if err != nil {
		return 0, err
	}
	return scores[target], nil
}

// BatchScores returns scores for many targets from one reachability map.
func (p *LocalProvider) BatchScores(ctx context.Context, viewer string, targets []string) (map[string]float64, error) {
	if viewer == "" {
		return nil, wot.ErrNoViewer
	}

	reach, err := p.reachability(ctx, viewer)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(targets))
	for _, target := range targets {
		if score, ok := reach[target]; ok {
			out[target] = score
		} else {
			out[target] = wot.UnreachedScore
		}
	}
	return out, nil
}

// reachability BFS-walks the follow graph from viewer up to maxHops,
// keeping the best (closest-hop) score per reached pubkey.
func (p *LocalProvider) reachability(ctx context.Context, viewer string) (map[string]float64, error) {
	if cached, ok := p.cache.Get(viewer); ok {
		return cached, nil
	}

	reach := map[string]float64{viewer: wot.MaxScore}
	frontier := []string{viewer}
	hopScore := wot.MaxScore

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		follows, err := p.graph.FollowsBatch(ctx, frontier)
		if err != nil {
			return nil, err
		}

		var next []string
		for _, pubkey := range frontier {
			for _, followed := range follows[pubkey] {
				if _, seen := reach[followed]; seen {
					continue
				}
				reach[followed] = hopScore
				next = append(next, followed)
			}
		}
		frontier = next
		hopScore *= hopDecay
	}

	delete(reach, viewer)
	p.cache.Add(viewer, reach)
	return reach, nil
}
