// Package nlp implements the rule-based enrichment pipeline: keyword and
// phrase extraction, pattern NER, lexicon sentiment, structural content
// features, and stopword-profile language detection. Everything here is
// deterministic and runs without network access.
package nlp

import (
	"strings"
	"unicode"
)

// englishStopwords is the tokenizer's stopword set. Also serves as the
// English profile for language detection.
var englishStopwords = toSet([]string{
	"a", "about", "above", "after", "again", "against", "all", "am", "an",
	"and", "any", "are", "as", "at", "be", "because", "been", "before",
	"being", "below", "between", "both", "but", "by", "can", "could", "did",
	"do", "does", "doing", "down", "during", "each", "few", "for", "from",
	"further", "had", "has", "have", "having", "he", "her", "here", "hers",
	"him", "his", "how", "i", "if", "in", "into", "is", "it", "its",
	"itself", "just", "me", "more", "most", "my", "myself", "no", "nor",
	"not", "now", "of", "off", "on", "once", "only", "or", "other", "our",
	"ours", "out", "over", "own", "same", "she", "should", "so", "some",
	"such", "than", "that", "the", "their", "theirs", "them", "then",
	"there", "these", "they", "this", "those", "through", "to", "too",
	"under", "until", "up", "very", "was", "we", "were", "what", "when",
	"where", "which", "while", "who", "whom", "why", "will", "with", "would",
	"you", "your", "yours",
})

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// isStopword reports whether a lowercase token is an English stopword.
func isStopword(token string) bool {
	_, ok := englishStopwords[token]
	return ok
}

// tokenize splits text into lowercase word tokens. Apostrophes inside
// words are kept ("don't"), everything else non-alphanumeric separates.
func tokenize(text string) []string {
	var tokens []string
	var current strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			tokens = append(tokens, strings.Trim(current.String(), "'"))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, strings.Trim(current.String(), "'"))
	}

	out := tokens[:0]
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// contentTokens filters tokens down to keyword candidates: no stopwords,
// no pure numbers, at least three characters.
func contentTokens(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if len(t) < 3 || isStopword(t) || isNumeric(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
