package podcast

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxFeedBytes bounds the RSS document size.
const maxFeedBytes = 8 << 20

// rssFeed is the subset of RSS 2.0 the connector reads. Podcast feeds
// carry itunes extensions; the plain channel/item fields are enough here.
type rssFeed struct {
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Author      string    `xml:"author"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string       `xml:"title"`
	Link        string       `xml:"link"`
	GUID        string       `xml:"guid"`
	Description string       `xml:"description"`
	PubDate     string       `xml:"pubDate"`
	Duration    string       `xml:"duration"`
	Enclosure   rssEnclosure `xml:"enclosure"`
}

type rssEnclosure struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

// externalID returns the stable per-episode identity: the GUID when the
// feed sets one, the enclosure URL otherwise.
func (i rssItem) externalID() string {
	if id := strings.TrimSpace(i.GUID); id != "" {
		return id
	}
	if i.Enclosure.URL != "" {
		return i.Enclosure.URL
	}
	return i.Link
}

// published parses the item's pubDate; RSS dates are RFC1123-ish with
// enough variation to need a few layouts.
func (i rssItem) published() time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC3339} {
		if t, err := time.Parse(layout, strings.TrimSpace(i.PubDate)); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// isAudio reports whether the enclosure is a transcribable audio file.
func (e rssEnclosure) isAudio() bool {
	return e.URL != "" && strings.HasPrefix(e.Type, "audio/")
}

// fetchFeed downloads and parses the RSS document.
func fetchFeed(ctx context.Context, client *http.Client, feedURL string) (rssFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return rssFeed{}, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")

	resp, err := client.Do(req)
	if err != nil {
		return rssFeed{}, fmt.Errorf("fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return rssFeed{}, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var feed rssFeed
	decoder := xml.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes))
	// Podcast feeds are frequently not valid UTF-8 XML.
	decoder.Strict = false
	if err := decoder.Decode(&feed); err != nil {
		return rssFeed{}, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}
