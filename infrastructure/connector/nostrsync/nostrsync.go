// Package nostrsync implements the Nostr connector: an ingestion strategy
// compiled to relay filters, fanned out over the relay pool, with every
// returned event run through the classifier, extractor, and spam filter
// before it reaches the index.
package nostrsync

import (
	"context"
	"fmt"
	"time"

	"github.com/meridiansearch/meridian/domain/connector"
	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/nostr"
	"github.com/meridiansearch/meridian/domain/wot"
)

const (
	defaultMaxEvents = 1000
	filterLimit      = 500
	maxQueryRelays   = 5

	recentWindow  = 24 * time.Hour
	popularWindow = 7 * 24 * time.Hour
)

// EventSource is the slice of the relay pool the connector drives.
type EventSource interface {
	Add(url string)
	Query(ctx context.Context, filter nostr.Filter, maxRelays int) ([]nostr.Event, error)
}

// ContactSink receives kind-3 follow lists for the local trust graph.
type ContactSink interface {
	SaveContactList(ctx context.Context, list wot.ContactList) error
}

// Runner executes Nostr connector syncs.
type Runner struct {
	documents document.Store
	contacts  ContactSink
	source    EventSource
	spam      *nostr.SpamFilter
	now       func() time.Time
}

// NewRunner creates a Runner. A nil spam filter uses the default
// thresholds.
func NewRunner(documents document.Store, contacts ContactSink, source EventSource, spam *nostr.SpamFilter) *Runner {
	if spam == nil {
		spam = nostr.NewSpamFilter()
	}
	return &Runner{
		documents: documents,
		contacts:  contacts,
		source:    source,
		spam:      spam,
		now:       time.Now,
	}
}

// Run performs one ingestion pass.
func (r *Runner) Run(ctx context.Context, c connector.Connector, sink connector.ProgressSink) (connector.Counters, error) {
	cfg, ok := c.Config().(connector.NostrConfig)
	if !ok {
		return connector.Counters{}, fmt.Errorf("connector %s: config is not a nostr config", c.ID())
	}

	for _, url := range cfg.Relays {
		r.source.Add(url)
	}

	maxEvents := cfg.MaxEvents
	if maxEvents == 0 {
		maxEvents = defaultMaxEvents
	}

	filters := r.compileStrategy(cfg)
	sink.Log("info", "strategy compiled", map[string]any{
		"strategy": cfg.Strategy,
		"filters":  len(filters),
	})

	stats := ingestStats{perKind: map[int]int{}}
	var counters connector.Counters

	for _, filter := range filters {
		if err := ctx.Err(); err != nil {
			return counters, err
		}
		remaining := maxEvents - stats.seen
		if remaining <= 0 {
			break
		}
		filter = filter.WithLimitCapped(min(filterLimit, remaining))

		events, err := r.source.Query(ctx, filter, maxQueryRelays)
		if err != nil {
			sink.Log("warn", "relay query failed", map[string]any{"error": err.Error()})
			continue
		}

		for _, event := range events {
			if stats.seen >= maxEvents {
				break
			}
			stats.seen++
			stats.perKind[event.Kind()]++

			outcome, err := r.ingest(ctx, c, event, &stats)
			if err != nil {
				return counters, err
			}
			switch outcome {
			case document.OutcomeCreated:
				counters = counters.Add(connector.NewCounters(1, 0, 0))
			case document.OutcomeUpdated:
				counters = counters.Add(connector.NewCounters(0, 1, 0))
			}
		}
		sink.SetCounters(counters)
	}

	sink.Log("info", "ingestion finished", map[string]any{
		"events":   stats.seen,
		"spam":     stats.spam,
		"skipped":  stats.skipped,
		"contacts": stats.contacts,
		"by_kind":  kindCounts(stats.perKind),
	})
	return counters, nil
}

// ingestStats tracks the pipeline funnel for the run log.
type ingestStats struct {
	seen     int
	spam     int
	skipped  int
	contacts int
	perKind  map[int]int
}

// ingest runs one event through the pipeline. A returned empty outcome
// means the event did not produce a document.
func (r *Runner) ingest(ctx context.Context, c connector.Connector, event nostr.Event, stats *ingestStats) (document.UpsertOutcome, error) {
	// Contact lists feed the trust graph, never the index.
	if event.Kind() == nostr.KindContacts {
		stats.contacts++
		list := wot.NewContactList(event.Pubkey(), event.TagValues("p"), event.ID(), event.CreatedAt())
		if err := r.contacts.SaveContactList(ctx, list); err != nil {
			return "", fmt.Errorf("save contact list: %w", err)
		}
		return "", nil
	}

	if !nostr.Classify(event.Kind()).ShouldIndex() {
		stats.skipped++
		return "", nil
	}

	extraction := nostr.Extract(event)
	if r.spam.Check(event, extraction).Spam() {
		stats.spam++
		return "", nil
	}

	// Addressable events replace earlier versions of the same address;
	// plain events are keyed by event ID.
	externalID := event.ID()
	if event.IsAddressable() {
		externalID = event.Address()
	}

	doc := document.New(c.ID().String(), externalID, extraction.Title(), extraction.Content(), extraction.DocumentType()).
		WithQualityScore(extraction.QualityScore()).
		WithLastModified(event.CreatedAt()).
		WithAttributes(document.NewAttributes(map[string]any{
			document.AttrEventID:     event.ID(),
			document.AttrPubkey:      event.Pubkey(),
			document.AttrKind:        event.Kind(),
			document.AttrTags:        extraction.Tags(),
			document.AttrMetadata:    extraction.Metadata(),
			document.AttrAddressable: event.IsAddressable(),
		}))

	_, outcome, err := r.documents.Upsert(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("upsert event %s: %w", event.ID(), err)
	}
	return outcome, nil
}

// compileStrategy turns the configured strategy into relay filters.
// Explicit kinds/authors in the config narrow every strategy.
func (r *Runner) compileStrategy(cfg connector.NostrConfig) []nostr.Filter {
	now := r.now().UTC()

	var authorOpt []nostr.FilterOption
	if len(cfg.Authors) > 0 {
		authorOpt = append(authorOpt, nostr.WithAuthors(cfg.Authors...))
	}

	build := func(kinds []int, extra ...nostr.FilterOption) nostr.Filter {
		options := []nostr.FilterOption{nostr.WithKinds(kinds...)}
		options = append(options, authorOpt...)
		options = append(options, extra...)
		return nostr.NewFilter(options...)
	}

	switch cfg.Strategy {
	case connector.StrategyRecentQuality:
		// Fresh high-priority content plus contact lists to keep the trust
		// graph current.
		return []nostr.Filter{
			build(r.kindsOr(cfg, nostr.KindNote, nostr.KindLongForm, nostr.KindQuestion, nostr.KindAnswer),
				nostr.WithSince(now.Add(-recentWindow))),
			build([]int{nostr.KindContacts}, nostr.WithSince(now.Add(-recentWindow))),
		}
	case connector.StrategyPopularContent:
		// Durable content kinds over a wider window.
		return []nostr.Filter{
			build(r.kindsOr(cfg, nostr.KindLongForm, nostr.KindClassified, nostr.KindPodcastShow, nostr.KindPodcastEpisode, nostr.KindBounty),
				nostr.WithSince(now.Add(-popularWindow))),
		}
	default: // comprehensive_crawl
		kinds := cfg.Kinds
		if len(kinds) == 0 {
			kinds = append(nostr.SearchableKinds(), nostr.KindContacts)
		}
		return []nostr.Filter{build(kinds)}
	}
}

// kindsOr returns the configured kinds, or the strategy defaults when the
// config does not name any.
func (r *Runner) kindsOr(cfg connector.NostrConfig, defaults ...int) []int {
	if len(cfg.Kinds) > 0 {
		return cfg.Kinds
	}
	return defaults
}

func kindCounts(perKind map[int]int) map[string]int {
	out := make(map[string]int, len(perKind))
	for kind, n := range perKind {
		out[fmt.Sprintf("%d", kind)] = n
	}
	return out
}
