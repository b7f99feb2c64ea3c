package nlp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiansearch/meridian/domain/enrichment"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t,
		[]string{"don't", "panic", "it's", "only", "version", "2"},
		tokenize("Don't panic! It's only version 2."))
	assert.Empty(t, tokenize("  ...  "))
}

func TestKeywordsRankByFrequencyWithoutCorpus(t *testing.T) {
	e := NewKeywordExtractor(nil, nil)
	text := "relay relay relay pool health score health pool relay"
	keywords := e.Keywords(context.Background(), text, 3)
	require.Len(t, keywords, 3)
	assert.Equal(t, "relay", keywords[0])
	assert.ElementsMatch(t, []string{"health", "pool"}, keywords[1:])
}

type staticCorpus struct{ contents []string }

func (c staticCorpus) SampleContents(context.Context, int) ([]string, error) {
	return c.contents, nil
}

func TestKeywordsIDFDemotesCommonTerms(t *testing.T) {
	// "server" appears in every corpus document, "ontology" in none.
	corpus := staticCorpus{contents: []string{
		"the server handles requests",
		"server configuration notes",
		"restarting the server",
	}}
	e := NewKeywordExtractor(corpus, nil)

	keywords := e.Keywords(context.Background(), "server ontology server ontology", 2)
	require.Len(t, keywords, 2)
	assert.Equal(t, "ontology", keywords[0], "rare term outranks ubiquitous term despite equal frequency")
}

func TestPhrases(t *testing.T) {
	text := "Web of trust scoring uses the social graph. Web of trust scoring is transitive."
	phrases := Phrases(text, 3)
	require.NotEmpty(t, phrases)
	assert.Contains(t, phrases[0], "trust scoring")
}

func TestEntities(t *testing.T) {
	text := "Contact Dr. Alice Carter at alice@example.com or +1 415 555 0199. " +
		"Acme Labs raised $2,500,000 on 2024-03-15. Details at https://acme.example/raise. " +
		"She lives in Lisbon."

	entities := Entities(text)
	byType := map[enrichment.EntityType][]string{}
	for _, e := range entities {
		byType[e.Type()] = append(byType[e.Type()], e.Value())
	}

	assert.Contains(t, byType[enrichment.EntityEmail], "alice@example.com")
	assert.Contains(t, byType[enrichment.EntityURL], "https://acme.example/raise")
	assert.Contains(t, byType[enrichment.EntityMoney], "$2,500,000")
	assert.Contains(t, byType[enrichment.EntityDate], "2024-03-15")
	assert.NotEmpty(t, byType[enrichment.EntityPhone])
	assert.NotEmpty(t, byType[enrichment.EntityOrg])
	assert.NotEmpty(t, byType[enrichment.EntityPerson])
	assert.Contains(t, byType[enrichment.EntityLocation], "Lisbon")
}

func TestEntitiesSpansAreRuneOffsets(t *testing.T) {
	text := "héllo wörld contact bob@example.com now"
	entities := Entities(text)
	require.Len(t, entities, 1)

	e := entities[0]
	runes := []rune(text)
	assert.Equal(t, "bob@example.com", string(runes[e.Start():e.End()]))
}

func TestSentiment(t *testing.T) {
	t.Run("positive", func(t *testing.T) {
		s := Sentiment("This release is excellent, fantastic work, I love it")
		assert.Equal(t, enrichment.SentimentPositive, s.Label())
		assert.Greater(t, s.Confidence(), 0.5)
	})

	t.Run("negative", func(t *testing.T) {
		s := Sentiment("Terrible bug, the crash made everything worse")
		assert.Equal(t, enrichment.SentimentNegative, s.Label())
	})

	t.Run("negation flips polarity", func(t *testing.T) {
		s := Sentiment("this is not good, not good at all")
		assert.Equal(t, enrichment.SentimentNegative, s.Label())
	})

	t.Run("neutral", func(t *testing.T) {
		s := Sentiment("The meeting is scheduled for Tuesday afternoon")
		assert.Equal(t, enrichment.SentimentNeutral, s.Label())
		assert.InDelta(t, 0.5, s.Confidence(), 0.001)
	})
}

func TestFeatures(t *testing.T) {
	t.Run("code fence", func(t *testing.T) {
		f := Features("Example:\n```go\nfmt.Println(1)\n```\n")
		assert.True(t, f.HasCode())
	})

	t.Run("markdown table", func(t *testing.T) {
		f := Features("| a | b |\n|---|---|\n| 1 | 2 |\n")
		assert.True(t, f.HasTable())
	})

	t.Run("list", func(t *testing.T) {
		f := Features("Steps:\n- first\n- second\n")
		assert.True(t, f.HasList())
	})

	t.Run("plain prose", func(t *testing.T) {
		f := Features("Just a paragraph of ordinary text without structure.")
		assert.False(t, f.HasCode())
		assert.False(t, f.HasTable())
		assert.False(t, f.HasList())
	})
}

func TestReadingTime(t *testing.T) {
	assert.Equal(t, time.Duration(0), ReadingTime(0))
	assert.Equal(t, time.Minute, ReadingTime(1))
	assert.Equal(t, time.Minute, ReadingTime(200))
	assert.Equal(t, 2*time.Minute, ReadingTime(201))
}

func TestAuthor(t *testing.T) {
	assert.Equal(t, "Jane Doe", Author("Great piece.\nBy Jane Doe\n"))
	assert.Equal(t, "John Q. Public", Author("Author: John Q. Public\nBody follows."))
	assert.Empty(t, Author("No byline anywhere in this text."))
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "en", DetectLanguage("The relay pool manages the connections and the health of each relay."))
	assert.Equal(t, "es", DetectLanguage("El protocolo es muy simple y los mensajes son para todos."))
	assert.Equal(t, "de", DetectLanguage("Das Relais ist sehr schnell und die Nachrichten werden nicht verloren."))
	assert.Empty(t, DetectLanguage("x9k qq zz"), "insufficient evidence stays unknown")
}

func TestTopics(t *testing.T) {
	topics := Topics("The lightning wallet handles bitcoin payments and mining fees.")
	assert.Contains(t, topics, "bitcoin")
	assert.Empty(t, Topics("Nothing domain specific here at all."))
}

func TestEnrich(t *testing.T) {
	e := NewEnricher(nil)
	result := e.Enrich(context.Background(), "doc-1", 2,
		"Relay pool design",
		"The relay pool tracks relay health.\n\n- circuit breaking\n- weighted selection\n\nBy Sam Smith")

	assert.Equal(t, "doc-1", result.DocumentID())
	assert.Equal(t, 2, result.Version())
	assert.Equal(t, enrichment.StatusCompleted, result.Status())
	assert.NotEmpty(t, result.Tags())
	assert.True(t, result.Features().HasList())
	assert.Equal(t, "Sam Smith", result.Author())
	assert.Equal(t, "en", result.Language())
	assert.Positive(t, result.WordCount())
	assert.Equal(t, time.Minute, result.ReadingTime())
}
