// Package podcast implements the RSS podcast connector: feed resolution,
// episode discovery, optional transcription of audio enclosures, and
// overlapping transcript chunking for retrieval.
package podcast

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/meridiansearch/meridian/domain/connector"
	"github.com/meridiansearch/meridian/domain/document"
)

// Runner executes podcast connector syncs.
type Runner struct {
	documents   document.Store
	transcriber Transcriber
	client      *http.Client
}

// NewRunner creates a Runner. A nil transcriber disables transcription
// regardless of config; a nil client uses a default with a 30 second
// timeout.
func NewRunner(documents document.Store, transcriber Transcriber, client *http.Client) *Runner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Runner{documents: documents, transcriber: transcriber, client: client}
}

// Run performs one feed sync.
func (r *Runner) Run(ctx context.Context, c connector.Connector, sink connector.ProgressSink) (connector.Counters, error) {
	cfg, ok := c.Config().(connector.RSSConfig)
	if !ok {
		return connector.Counters{}, fmt.Errorf("connector %s: config is not an rss config", c.ID())
	}

	feed, err := fetchFeed(ctx, r.client, cfg.FeedURL)
	if err != nil {
		return connector.Counters{}, err
	}
	sink.Log("info", "feed resolved", map[string]any{
		"show":     feed.Channel.Title,
		"episodes": len(feed.Channel.Items),
	})

	var counters connector.Counters
	tally := func(outcome document.UpsertOutcome) {
		switch outcome {
		case document.OutcomeCreated:
			counters = counters.Add(connector.NewCounters(1, 0, 0))
		case document.OutcomeUpdated:
			counters = counters.Add(connector.NewCounters(0, 1, 0))
		}
	}

	outcome, err := r.upsertShow(ctx, c, cfg, feed.Channel)
	if err != nil {
		return counters, err
	}
	tally(outcome)

	for _, item := range feed.Channel.Items {
		if err := ctx.Err(); err != nil {
			return counters, err
		}
		outcomes, err := r.syncEpisode(ctx, c, cfg, feed.Channel, item, sink)
		if err != nil {
			return counters, err
		}
		for _, o := range outcomes {
			tally(o)
		}
		sink.SetCounters(counters)
	}
	return counters, nil
}

func (r *Runner) upsertShow(ctx context.Context, c connector.Connector, cfg connector.RSSConfig, channel rssChannel) (document.UpsertOutcome, error) {
	doc := document.New(c.ID().String(), cfg.FeedURL, channel.Title, channel.Description, "podcast:show").
		WithAttributes(document.NewAttributes(map[string]any{
			"feed_url": cfg.FeedURL,
			"author":   channel.Author,
		}))
	if channel.Link != "" {
		doc = doc.WithURL(channel.Link)
	}

	_, outcome, err := r.documents.Upsert(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("upsert show: %w", err)
	}
	return outcome, nil
}

// syncEpisode indexes one episode and, when transcription applies, its
// transcript chunks. Episodes already indexed at the same publication time
// are skipped so transcripts are paid for once.
func (r *Runner) syncEpisode(
	ctx context.Context,
	c connector.Connector,
	cfg connector.RSSConfig,
	channel rssChannel,
	item rssItem,
	sink connector.ProgressSink,
) ([]document.UpsertOutcome, error) {
	externalID := item.externalID()
	if externalID == "" {
		sink.Log("warn", "episode skipped", map[string]any{"title": item.Title, "error": "no guid, enclosure, or link"})
		return nil, nil
	}

	published := item.published()
	if existing, err := r.documents.BySourceExternalID(ctx, c.ID().String(), externalID); err == nil {
		if !published.IsZero() && existing.LastModified().Equal(published) {
			return nil, nil
		}
	}

	transcript := ""
	if cfg.Transcribe && r.transcriber != nil && item.Enclosure.isAudio() {
		text, err := r.transcriber.Transcribe(ctx, item.Enclosure.URL)
		if err != nil {
			// A failed transcription still leaves the episode searchable by
			// its description.
			sink.Log("warn", "transcription failed", map[string]any{"episode": item.Title, "error": err.Error()})
		} else {
			transcript = text
		}
	}

	attrs := map[string]any{
		"feed_url": cfg.FeedURL,
		"show":     channel.Title,
	}
	if item.Enclosure.URL != "" {
		attrs["audio_url"] = item.Enclosure.URL
	}
	if item.Duration != "" {
		attrs["duration"] = item.Duration
	}

	doc := document.New(c.ID().String(), externalID, item.Title, item.Description, "podcast:episode").
		WithAttributes(document.NewAttributes(attrs))
	if item.Link != "" {
		doc = doc.WithURL(item.Link)
	}
	if !published.IsZero() {
		doc = doc.WithLastModified(published)
	}

	_, outcome, err := r.documents.Upsert(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("upsert episode %s: %w", externalID, err)
	}
	outcomes := []document.UpsertOutcome{outcome}

	chunkOutcomes, err := r.upsertChunks(ctx, c, cfg, item, externalID, transcript, published)
	if err != nil {
		return outcomes, err
	}
	return append(outcomes, chunkOutcomes...), nil
}

// upsertChunks stores the transcript as overlapping chunk documents keyed
// under the episode.
func (r *Runner) upsertChunks(
	ctx context.Context,
	c connector.Connector,
	cfg connector.RSSConfig,
	item rssItem,
	episodeID string,
	transcript string,
	published time.Time,
) ([]document.UpsertOutcome, error) {
	if transcript == "" {
		return nil, nil
	}

	size := cfg.ChunkSize
	if size == 0 {
		size = DefaultChunkSize
	}
	overlap := cfg.ChunkOverlap
	if overlap == 0 {
		overlap = DefaultChunkOverlap
	}

	var outcomes []document.UpsertOutcome
	for i, chunk := range Chunks(transcript, size, overlap) {
		title := fmt.Sprintf("%s (part %d)", item.Title, i+1)
		doc := document.New(c.ID().String(), fmt.Sprintf("%s#chunk-%d", episodeID, i), title, chunk, "podcast:chunk").
			WithAttributes(document.NewAttributes(map[string]any{
				"episode": episodeID,
				"chunk":   i,
			}))
		if item.Link != "" {
			doc = doc.WithURL(item.Link)
		}
		if !published.IsZero() {
			doc = doc.WithLastModified(published)
		}

		_, outcome, err := r.documents.Upsert(ctx, doc)
		if err != nil {
			return outcomes, fmt.Errorf("upsert transcript chunk: %w", err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}
