package nostr

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/meridiansearch/meridian/domain/document"
)

var (
	urlPattern     = regexp.MustCompile(`https?://[^\s<>"']+`)
	mentionPattern = regexp.MustCompile(`\bnpub1[02-9ac-hj-np-z]{6,}|\bnostr:[a-z0-9]+`)
	hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
)

// Extraction is the normalized output of the extractor stage.
type Extraction struct {
	title        string
	content      string
	tags         []string
	metadata     map[string]any
	mentions     []string
	urls         []string
	qualityScore float64
	documentType document.Type
}

// Title returns the extracted title.
func (x Extraction) Title() string { return x.title }

// Content returns the extracted body text.
func (x Extraction) Content() string { return x.content }

// Tags returns extracted hashtags and t-tags.
func (x Extraction) Tags() []string {
	cp := make([]string, len(x.tags))
	copy(cp, x.tags)
	return cp
}

// Metadata returns kind-specific metadata.
func (x Extraction) Metadata() map[string]any {
	cp := make(map[string]any, len(x.metadata))
	for k, v := range x.metadata {
		cp[k] = v
	}
	return cp
}

// Mentions returns referenced pubkeys and nostr URIs.
func (x Extraction) Mentions() []string {
	cp := make([]string, len(x.mentions))
	copy(cp, x.mentions)
	return cp
}

// URLs returns http(s) links found in the content.
func (x Extraction) URLs() []string {
	cp := make([]string, len(x.urls))
	copy(cp, x.urls)
	return cp
}

// QualityScore returns the heuristic quality score in [0,1].
func (x Extraction) QualityScore() float64 { return x.qualityScore }

// DocumentType returns the taxonomy tag for the produced document.
func (x Extraction) DocumentType() document.Type { return x.documentType }

// Extract normalizes an event with a kind-specific strategy.
func Extract(e Event) Extraction {
	x := Extraction{
		content:  strings.TrimSpace(e.Content()),
		metadata: map[string]any{},
	}

	x.urls = urlPattern.FindAllString(x.content, -1)
	x.mentions = append(e.TagValues("p"), mentionPattern.FindAllString(x.content, -1)...)
	x.tags = extractTags(e, x.content)

	switch e.Kind() {
	case KindLongForm, KindLongFormDraft:
		x.documentType = document.TypeNostrArticle
		x.title = firstNonEmpty(e.TagValue("title"), firstLine(x.content))
		if summary := e.TagValue("summary"); summary != "" {
			x.metadata["summary"] = summary
		}
		if image := e.TagValue("image"); image != "" {
			x.metadata["image"] = image
		}
		x.metadata["long_form"] = true
	case KindProfile:
		x.documentType = document.TypeNostrProfile
		name, about := parseProfile(x.content)
		x.title = firstNonEmpty(name, shortPubkey(e.Pubkey()))
		x.content = about
	case KindPodcastShow:
		x.documentType = document.TypeNostrShow
		x.title = firstNonEmpty(e.TagValue("title"), e.TagValue("d"))
	case KindPodcastEpisode:
		x.documentType = document.TypeNostrEpisode
		x.title = firstNonEmpty(e.TagValue("title"), e.TagValue("d"))
		if audio := e.TagValue("audio"); audio != "" {
			x.metadata["audio"] = audio
		}
	case KindClassified:
		x.documentType = document.Type("nostr:classified")
		x.title = firstNonEmpty(e.TagValue("title"), firstLine(x.content))
		if price := e.TagValue("price"); price != "" {
			x.metadata["price"] = price
		}
	case KindQuestion, KindAnswer:
		x.documentType = document.Type("nostr:qa")
		x.title = firstNonEmpty(e.TagValue("title"), firstLine(x.content))
	case KindBounty:
		x.documentType = document.Type("nostr:bounty")
		x.title = firstNonEmpty(e.TagValue("title"), firstLine(x.content))
		if reward := e.TagValue("reward"); reward != "" {
			x.metadata["reward"] = reward
		}
	default:
		x.documentType = document.TypeNostrNote
		x.title = firstLine(x.content)
	}

	x.qualityScore = qualityScore(x, e)
	return x
}

// qualityScore implements the quality heuristic:
// 0.5 base, +0.1 per length tier (100/500/2000), +0.05-0.10 for moderate
// mentions/hashtags, -0.2 for excessive URLs, +0.1 for long-form.
func qualityScore(x Extraction, e Event) float64 {
	score := 0.5

	length := utf8.RuneCountInString(x.content)
	for _, tier := range []int{100, 500, 2000} {
		if length >= tier {
			score += 0.1
		}
	}

	if n := len(x.mentions); n >= 1 && n <= 5 {
		score += 0.05
	}
	if n := len(x.tags); n >= 1 && n <= 5 {
		score += 0.05
	}

	if len(x.urls) > 3 {
		score -= 0.2
	}

	if e.Kind() == KindLongForm || e.Kind() == KindLongFormDraft {
		score += 0.1
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func extractTags(e Event, content string) []string {
	seen := map[string]struct{}{}
	var tags []string
	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	for _, t := range e.TagValues("t") {
		add(t)
	}
	for _, m := range hashtagPattern.FindAllStringSubmatch(content, -1) {
		add(m[1])
	}
	return tags
}

func parseProfile(content string) (name, about string) {
	var profile struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
		About       string `json:"about"`
	}
	if err := json.Unmarshal([]byte(content), &profile); err != nil {
		return "", content
	}
	return firstNonEmpty(profile.DisplayName, profile.Name), profile.About
}

func firstLine(content string) string {
	line := content
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		line = content[:idx]
	}
	line = strings.TrimSpace(line)
	const maxTitle = 120
	if utf8.RuneCountInString(line) > maxTitle {
		runes := []rune(line)
		line = string(runes[:maxTitle])
		if idx := strings.LastIndexByte(line, ' '); idx > 0 {
			line = line[:idx]
		}
	}
	return line
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func shortPubkey(pubkey string) string {
	if len(pubkey) <= 12 {
		return pubkey
	}
	return pubkey[:12]
}
