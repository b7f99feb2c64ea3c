package nostr_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/nostr"
)

func noteEvent(content string, tags ...[]string) nostr.Event {
	return nostr.NewEvent("id1", "pk1", nostr.KindNote, time.Now(), content, tags, "sig")
}

func TestExtractNote(t *testing.T) {
	e := noteEvent("Learning #golang today\nsecond line", []string{"t", "programming"})
	x := nostr.Extract(e)

	assert.Equal(t, document.TypeNostrNote, x.DocumentType())
	assert.Equal(t, "Learning #golang today", x.Title())
	assert.ElementsMatch(t, []string{"programming", "golang"}, x.Tags())
}

func TestExtractLongForm(t *testing.T) {
	e := nostr.NewEvent("id1", "pk1", nostr.KindLongForm, time.Now(),
		strings.Repeat("body text ", 60),
		[][]string{{"title", "My Article"}, {"summary", "a summary"}, {"d", "my-article"}}, "sig")
	x := nostr.Extract(e)

	assert.Equal(t, document.TypeNostrArticle, x.DocumentType())
	assert.Equal(t, "My Article", x.Title())
	assert.Equal(t, "a summary", x.Metadata()["summary"])
	assert.Equal(t, true, x.Metadata()["long_form"])
}

func TestExtractProfile(t *testing.T) {
	e := nostr.NewEvent("id1", "pk1", nostr.KindProfile, time.Now(),
		`{"name":"alice","display_name":"Alice","about":"building relays"}`, nil, "sig")
	x := nostr.Extract(e)

	assert.Equal(t, document.TypeNostrProfile, x.DocumentType())
	assert.Equal(t, "Alice", x.Title())
	assert.Equal(t, "building relays", x.Content())
}

func TestExtractProfileInvalidJSON(t *testing.T) {
	e := nostr.NewEvent("id1", "aabbccddeeff00112233", nostr.KindProfile, time.Now(),
		"not json", nil, "sig")
	x := nostr.Extract(e)

	assert.Equal(t, "aabbccddeeff", x.Title())
	assert.Equal(t, "not json", x.Content())
}

func TestExtractMentionsAndURLs(t *testing.T) {
	e := noteEvent("see https://example.com/a and nostr:nevent1qqs", []string{"p", "pk2"})
	x := nostr.Extract(e)

	assert.Equal(t, []string{"https://example.com/a"}, x.URLs())
	assert.Contains(t, x.Mentions(), "pk2")
	assert.Contains(t, x.Mentions(), "nostr:nevent1qqs")
}

func TestQualityScoreLengthTiers(t *testing.T) {
	short := nostr.Extract(noteEvent("hi"))
	medium := nostr.Extract(noteEvent(strings.Repeat("word ", 30)))
	long := nostr.Extract(noteEvent(strings.Repeat("word ", 500)))

	assert.InDelta(t, 0.5, short.QualityScore(), 0.01)
	assert.Greater(t, medium.QualityScore(), short.QualityScore())
	assert.Greater(t, long.QualityScore(), medium.QualityScore())
}

func TestQualityScorePenalizesLinkFarms(t *testing.T) {
	clean := nostr.Extract(noteEvent(strings.Repeat("useful text ", 20)))
	spammy := nostr.Extract(noteEvent(strings.Repeat("useful text ", 20) +
		"https://a.com https://b.com https://c.com https://d.com"))

	assert.Less(t, spammy.QualityScore(), clean.QualityScore())
}

func TestExtractTitleTruncation(t *testing.T) {
	x := nostr.Extract(noteEvent(strings.Repeat("longword ", 40)))
	assert.LessOrEqual(t, len([]rune(x.Title())), 120)
}
