package frpei_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiansearch/meridian/domain/frpei"
)

func TestCanonicalURL(t *testing.T) {
	canonical, domain, err := frpei.CanonicalURL(
		"HTTPS://WWW.Example.COM/Articles/Go/?utm_source=x&utm_medium=y&b=2&a=1&fbclid=abc#section")
	require.NoError(t, err)

	assert.Equal(t, "https://www.example.com/Articles/Go?a=1&b=2", canonical)
	assert.Equal(t, "example.com", domain)
}

func TestCanonicalURLIdempotent(t *testing.T) {
	once, _, err := frpei.CanonicalURL("https://Example.com/path/?utm_campaign=c&x=1#frag")
	require.NoError(t, err)

	twice, _, err := frpei.CanonicalURL(once)
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestCanonicalURLRejectsRelative(t *testing.T) {
	_, _, err := frpei.CanonicalURL("/just/a/path")
	assert.Error(t, err)
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "Understanding Relays",
		frpei.NormalizeTitle("  Understanding   Relays | Example News "))
	assert.Equal(t, "Understanding Relays",
		frpei.NormalizeTitle("Understanding Relays"))

	// A long tail after the separator is part of the title, not a suffix.
	long := "Part One | " + "a detailed subtitle that keeps going well past the suffix cutoff length"
	assert.Equal(t, long, frpei.NormalizeTitle(long))
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, frpei.ContentTypePDF, frpei.DetectContentType("https://x.com/paper.pdf", ""))
	assert.Equal(t, frpei.ContentTypeAudio, frpei.DetectContentType("https://x.com/ep1.mp3", ""))
	assert.Equal(t, frpei.ContentTypeArticle, frpei.DetectContentType("https://x.com/blog/post", ""))
	assert.Equal(t, frpei.ContentTypeWebpage, frpei.DetectContentType("https://x.com/about", ""))
	assert.Equal(t, "video", frpei.DetectContentType("https://x.com/paper.pdf", "video"))
}

func TestCanonicalizerIdempotent(t *testing.T) {
	cz := frpei.NewCanonicalizer()

	raw := frpei.RawCandidate{
		URL:       "https://Example.com/blog/post/?utm_source=feed",
		Title:     " A  Post | Example Blog",
		Snippet:   " some text ",
		Relevance: 0.8,
	}
	first, err := cz.Candidate("meta", 2, raw)
	require.NoError(t, err)

	again, err := cz.Candidate("meta", 2, frpei.RawCandidate{
		URL:       first.CanonicalURL(),
		Title:     first.Title(),
		Snippet:   first.Snippet(),
		Relevance: first.Signals().Relevance,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID(), again.ID())
	assert.Equal(t, first.CanonicalURL(), again.CanonicalURL())
	assert.Equal(t, first.Title(), again.Title())
}

func TestFreshness(t *testing.T) {
	now := time.Unix(1700000000, 0)

	assert.Equal(t, 0.0, frpei.Freshness(time.Time{}, now))
	assert.InDelta(t, 1.0, frpei.Freshness(now, now), 0.001)
	assert.InDelta(t, 0.5, frpei.Freshness(now.Add(-365*12*time.Hour), now), 0.01)
	assert.Equal(t, 0.0, frpei.Freshness(now.Add(-2*365*24*time.Hour), now))
}
