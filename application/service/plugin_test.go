package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/search"
	"github.com/meridiansearch/meridian/domain/wot"
)

type fakeTrustProvider struct {
	scores map[string]float64
	err    error
	calls  int
}

func (f *fakeTrustProvider) Score(_ context.Context, _, target string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.scores[target], nil
}

func (f *fakeTrustProvider) BatchScores(_ context.Context, _ string, _ []string) (map[string]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

func authoredDoc(id, pubkey string) document.Document {
	now := time.Now().UTC()
	attrs := document.NewAttributes(nil).Set(document.AttrPubkey, pubkey)
	return document.Reconstruct(
		id, "src-1", "ext-"+id, "Note by "+pubkey, "body", "",
		document.TypeNostrNote, attrs, nil, 0.5,
		now, now, now, now,
	)
}

func TestWoTPluginAmplifiesTrustedAuthors(t *testing.T) {
	provider := &fakeTrustProvider{scores: map[string]float64{"alice": 1.0}}
	plugin := NewWoTPlugin(provider, 1.0, wot.ModeOpen, 0)

	docs := []document.Document{authoredDoc("doc-a", "alice"), authoredDoc("doc-b", "stranger")}
	user := search.NewUserContext(nil, "viewer")

	adjust, err := plugin.Evaluate(context.Background(), docs, user)
	require.NoError(t, err)
	require.NotNil(t, adjust)

	// Direct follow: 0.5 x (1 + 1.0 x 1.0) = 1.0.
	score, drop := adjust(docs[0], 0.5)
	assert.False(t, drop)
	assert.InDelta(t, 1.0, score, 1e-9)

	// Unreached author falls back to the floor: 0.5 x 1.1 = 0.55.
	score, drop = adjust(docs[1], 0.5)
	assert.False(t, drop)
	assert.InDelta(t, 0.55, score, 1e-9)

	assert.Equal(t, 1, provider.calls)
}

func TestWoTPluginStrictModeDropsLowTrust(t *testing.T) {
	provider := &fakeTrustProvider{scores: map[string]float64{"alice": 0.9, "bob": 0.4}}
	plugin := NewWoTPlugin(provider, 0.5, wot.ModeStrict, 0)

	docs := []document.Document{authoredDoc("doc-a", "alice"), authoredDoc("doc-b", "bob")}
	adjust, err := plugin.Evaluate(context.Background(), docs, search.NewUserContext(nil, "viewer"))
	require.NoError(t, err)
	require.NotNil(t, adjust)

	_, drop := adjust(docs[0], 0.5)
	assert.False(t, drop)

	_, drop = adjust(docs[1], 0.5)
	assert.True(t, drop)
}

func TestWoTPluginSkipsAnonymousRequests(t *testing.T) {
	provider := &fakeTrustProvider{scores: map[string]float64{"alice": 1.0}}
	plugin := NewWoTPlugin(provider, 1.0, wot.ModeOpen, 0)

	adjust, err := plugin.Evaluate(context.Background(), []document.Document{authoredDoc("doc-a", "alice")}, search.UserContext{})
	require.NoError(t, err)
	assert.Nil(t, adjust)
	assert.Zero(t, provider.calls)
}

func TestPluginPipelineKeepsBaseScoresOnError(t *testing.T) {
	provider := &fakeTrustProvider{err: errors.New("graph service unavailable")}
	pipeline := NewPluginPipeline(slog.Default(), NewWoTPlugin(provider, 1.0, wot.ModeStrict, 0))

	docs := []document.Document{authoredDoc("doc-a", "alice")}
	scores := map[string]float64{"doc-a": 0.5}
	pipeline.Apply(context.Background(), docs, search.NewUserContext(nil, "viewer"), scores)

	assert.Equal(t, map[string]float64{"doc-a": 0.5}, scores)
}

func TestPluginPipelineDropsCandidates(t *testing.T) {
	provider := &fakeTrustProvider{scores: map[string]float64{"alice": 1.0, "bob": 0.1}}
	pipeline := NewPluginPipeline(slog.Default(), NewWoTPlugin(provider, 1.0, wot.ModeModerate, 0))

	docs := []document.Document{authoredDoc("doc-a", "alice"), authoredDoc("doc-b", "bob")}
	scores := map[string]float64{"doc-a": 0.5, "doc-b": 0.5}
	pipeline.Apply(context.Background(), docs, search.NewUserContext(nil, "viewer"), scores)

	require.Contains(t, scores, "doc-a")
	assert.InDelta(t, 1.0, scores["doc-a"], 1e-9)
	assert.NotContains(t, scores, "doc-b")
}
