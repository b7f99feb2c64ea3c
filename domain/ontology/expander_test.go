package ontology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *Snapshot {
	terms := []Term{
		NewTerm("t1", "bitcoin", "", "crypto"),
		NewTerm("t2", "lightning", "t1", "crypto"),
		NewTerm("t3", "cryptocurrency", "", "crypto"),
	}
	relations := []Relation{
		NewRelation("t1", "t3", RelationBroader),
		NewRelation("t1", "t2", RelationNarrower),
	}
	aliases := []Alias{
		NewAlias("btc", "t1", 0.9),
	}
	dictionary := []DictionaryEntry{
		NewDictionaryEntry("ln", []string{"lightning network"}),
	}
	return NewSnapshot(terms, relations, aliases, dictionary)
}

func TestExpand_EmptyOntologyIsIdentity(t *testing.T) {
	plan := NewExpander(EmptySnapshot()).Expand("bitcoin privacy")

	require.Len(t, plan.Groups(), 2)
	assert.True(t, plan.IsIdentity())
	for _, g := range plan.Groups() {
		require.Len(t, g.Terms(), 1)
		assert.Equal(t, 1.0, g.Terms()[0].Weight())
	}
}

func TestExpand_AliasAndRelations(t *testing.T) {
	plan := NewExpander(testSnapshot()).Expand("btc")

	require.Len(t, plan.Groups(), 1)
	terms := plan.Groups()[0].Terms()

	byTerm := map[string]float64{}
	for _, pt := range terms {
		byTerm[pt.Term()] = pt.Weight()
	}

	// Original token always first at weight 1.
	assert.Equal(t, "btc", terms[0].Term())
	assert.Equal(t, 1.0, terms[0].Weight())

	// Alias maps btc -> bitcoin at alias weight.
	assert.InDelta(t, 0.9, byTerm["bitcoin"], 1e-9)

	// Depth-1 relations weighted by alias weight x relation weight.
	assert.InDelta(t, 0.9*RelationBroader.Weight(), byTerm["cryptocurrency"], 1e-9)
	assert.InDelta(t, 0.9*RelationNarrower.Weight(), byTerm["lightning"], 1e-9)
}

func TestExpand_DirectLabelMatch(t *testing.T) {
	plan := NewExpander(testSnapshot()).Expand("bitcoin")

	byTerm := map[string]float64{}
	for _, pt := range plan.Groups()[0].Terms() {
		byTerm[pt.Term()] = pt.Weight()
	}

	assert.InDelta(t, RelationBroader.Weight(), byTerm["cryptocurrency"], 1e-9)
}

func TestExpand_Dictionary(t *testing.T) {
	plan := NewExpander(testSnapshot()).Expand("LN")

	byTerm := map[string]float64{}
	for _, pt := range plan.Groups()[0].Terms() {
		byTerm[pt.Term()] = pt.Weight()
	}

	assert.InDelta(t, 0.9, byTerm["lightning network"], 1e-9)
}

func TestExpand_Deterministic(t *testing.T) {
	e := NewExpander(testSnapshot())
	a := e.Expand("btc lightning payments")
	b := e.Expand("btc lightning payments")
	assert.Equal(t, a, b)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"bitcoin", "privacy"}, Tokenize("The Bitcoin, privacy!"))
	assert.Empty(t, Tokenize("the and of"))
	assert.Empty(t, Tokenize(""))
}

func TestTokenize_NonASCII(t *testing.T) {
	assert.Equal(t, []string{"café", "crème"}, Tokenize("Café, crème!"))
	assert.Equal(t, []string{"日本語", "relays"}, Tokenize("日本語 relays"))
	assert.Equal(t, []string{"münchen", "2024"}, Tokenize("München 2024"))
}

func TestTrigger_Matching(t *testing.T) {
	trig, err := NewTrigger("tr1", `\bpodcast\b`, ActionBoostDocType, 5)
	require.NoError(t, err)
	trig = trig.WithDocTypeBoost("rss:episode", 0.2)

	assert.True(t, trig.Matches("best podcast episodes"))
	assert.True(t, trig.Matches("Podcast"))
	assert.False(t, trig.Matches("podcasting"))
	assert.False(t, trig.WithEnabled(false).Matches("podcast"))
}

func TestNewTrigger_InvalidPattern(t *testing.T) {
	_, err := NewTrigger("bad", `([`, ActionInjectTerms, 1)
	assert.Error(t, err)
}

func TestApplyTriggers_PriorityOrder(t *testing.T) {
	boost, err := NewTrigger("a", "bitcoin", ActionBoostDocType, 10)
	require.NoError(t, err)
	boost = boost.WithDocTypeBoost("nostr:article", 0.3)

	inject, err := NewTrigger("b", "bitcoin", ActionInjectTerms, 5)
	require.NoError(t, err)
	inject = inject.WithInjectedTerms("btc", "satoshi")

	nomatch, err := NewTrigger("c", "ethereum", ActionInjectTerms, 99)
	require.NoError(t, err)
	nomatch = nomatch.WithInjectedTerms("eth")

	plan := NewExpander(EmptySnapshot()).Expand("bitcoin news")
	plan = ApplyTriggers(plan, "bitcoin news", []Trigger{inject, boost, nomatch})

	assert.InDelta(t, 0.3, plan.DocTypeBoosts()["nostr:article"], 1e-9)
	assert.Equal(t, []string{"btc", "satoshi"}, plan.TermInjections())
	assert.False(t, plan.IsIdentity())
}
