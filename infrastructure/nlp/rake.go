package nlp

import (
	"sort"
	"strings"
	"unicode"
)

const (
	defaultPhraseCount = 5
	maxPhraseWords     = 4
)

// Phrases extracts multi-word key phrases with the RAKE algorithm:
// candidate phrases are maximal runs of content words between stopwords
// and punctuation, words are scored degree/frequency over the phrase
// co-occurrence graph, and a phrase scores the sum of its word scores.
func Phrases(text string, n int) []string {
	if n <= 0 {
		n = defaultPhraseCount
	}

	candidates := candidatePhrases(text)
	if len(candidates) == 0 {
		return nil
	}

	freq := map[string]int{}
	degree := map[string]int{}
	for _, phrase := range candidates {
		for _, word := range phrase {
			freq[word]++
			degree[word] += len(phrase) - 1
		}
	}

	type scored struct {
		phrase string
		score  float64
	}
	best := map[string]float64{}
	for _, phrase := range candidates {
		if len(phrase) < 2 {
			continue
		}
		var score float64
		for _, word := range phrase {
			score += float64(degree[word]+freq[word]) / float64(freq[word])
		}
		joined := strings.Join(phrase, " ")
		if score > best[joined] {
			best[joined] = score
		}
	}

	ranked := make([]scored, 0, len(best))
	for phrase, score := range best {
		ranked = append(ranked, scored{phrase: phrase, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].phrase < ranked[j].phrase
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.phrase
	}
	return out
}

// candidatePhrases splits text into runs of content words. Stopwords,
// sentence punctuation, and numbers break a run.
func candidatePhrases(text string) [][]string {
	var phrases [][]string
	var current []string

	flush := func() {
		if len(current) > 0 && len(current) <= maxPhraseWords {
			phrases = append(phrases, current)
		}
		current = nil
	}

	var word strings.Builder
	endWord := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		word.Reset()
		if isStopword(w) || isNumeric(w) || len(w) < 2 {
			flush()
			return
		}
		current = append(current, w)
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		case r == '\'' || r == '-':
			// Keep intra-word apostrophes and hyphens.
			if word.Len() > 0 {
				word.WriteRune(r)
			}
		case r == ' ' || r == '\t':
			endWord()
		default:
			endWord()
			flush()
		}
	}
	endWord()
	flush()
	return phrases
}
