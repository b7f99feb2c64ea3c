package nlp

import (
	"context"
	"sort"
	"strings"

	"github.com/meridiansearch/meridian/domain/enrichment"
)

// maxTags caps the merged tag list per document.
const maxTags = 12

// topicLexicon maps indicator terms to static topic tags. A topic fires
// when at least two of its indicators appear.
var topicLexicon = map[string][]string{
	"bitcoin": {"bitcoin", "satoshi", "sats", "lightning", "wallet", "mining", "btc", "halving"},
	"nostr": {"nostr", "relay", "relays", "zap", "zaps", "npub", "nip", "pubkey"},
	"programming": {"code", "function", "api", "library", "compiler", "debugging", "repository", "golang", "rust", "python"},
	"ai": {"model", "training", "neural", "llm", "embedding", "inference", "transformer", "dataset"},
	"security": {"encryption", "vulnerability", "exploit", "authentication", "password", "breach", "malware", "phishing"},
	"finance": {"market", "price", "trading", "inflation", "investment", "stocks", "currency", "economy"},
}

// Enricher runs the full NLP pipeline over one document.
type Enricher struct {
	keywords *KeywordExtractor
}

// NewEnricher creates an Enricher. The corpus trains keyword IDF; nil
// falls back to frequency-ranked keywords.
func NewEnricher(keywords *KeywordExtractor) *Enricher {
	if keywords == nil {
		keywords = NewKeywordExtractor(nil, nil)
	}
	return &Enricher{keywords: keywords}
}

// Enrich produces the complete enrichment result for a document version.
func (e *Enricher) Enrich(ctx context.Context, documentID string, version int, title, content string) enrichment.Result {
	text := strings.TrimSpace(title + "\n" + content)

	tags := mergeTags(
		e.keywords.Keywords(ctx, text, defaultKeywordCount),
		Phrases(text, defaultPhraseCount),
		Topics(text),
	)

	words := WordCount(content)
	return enrichment.NewResult(
		documentID,
		version,
		tags,
		Entities(text),
		words,
		ReadingTime(words),
		Sentiment(text),
		Features(content),
		Author(content),
		DetectLanguage(text),
	)
}

// Topics returns static topic tags whose indicator terms appear at least
// twice in the text.
func Topics(text string) []string {
	tokens := tokenize(text)
	counts := map[string]int{}
	for _, t := range tokens {
		counts[t]++
	}

	var topics []string
	for topic, indicators := range topicLexicon {
		hits := 0
		for _, term := range indicators {
			if counts[term] > 0 {
				hits++
			}
		}
		if hits >= 2 {
			topics = append(topics, topic)
		}
	}
	sort.Strings(topics)
	return topics
}

// mergeTags concatenates tag sources in priority order, deduplicating
// case-insensitively and capping the result at maxTags.
func mergeTags(groups ...[]string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, group := range groups {
		for _, tag := range group {
			key := strings.ToLower(strings.TrimSpace(tag))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, key)
			if len(out) == maxTags {
				return out
			}
		}
	}
	return out
}
