package nlp

import (
	"github.com/meridiansearch/meridian/domain/enrichment"
)

var positiveWords = toSet([]string{
	"amazing", "awesome", "beautiful", "best", "better", "brilliant",
	"delightful", "excellent", "exciting", "fantastic", "favorite", "fun",
	"good", "great", "happy", "helpful", "impressive", "incredible",
	"love", "loved", "nice", "outstanding", "perfect", "pleasant",
	"positive", "recommend", "reliable", "smooth", "solid", "strong",
	"success", "successful", "superb", "useful", "valuable", "win",
	"wonderful",
})

var negativeWords = toSet([]string{
	"annoying", "awful", "bad", "broken", "bug", "buggy", "confusing",
	"crash", "disappointed", "disappointing", "dreadful", "error", "fail",
	"failed", "failure", "hate", "hated", "horrible", "impossible",
	"inferior", "issue", "lose", "lost", "mediocre", "mess", "negative",
	"poor", "problem", "sad", "slow", "terrible", "ugly", "unreliable",
	"unusable", "useless", "waste", "worse", "worst", "wrong",
})

var negations = toSet([]string{"not", "no", "never", "neither", "nor", "cannot"})

// Sentiment classifies text polarity with a word lexicon. A negation
// token flips the polarity of the following sentiment word. Confidence
// grows with the margin between positive and negative hits.
func Sentiment(text string) enrichment.Sentiment {
	tokens := tokenize(text)

	var positive, negative int
	negated := false
	for _, t := range tokens {
		if _, ok := negations[t]; ok {
			negated = true
			continue
		}

		_, isPos := positiveWords[t]
		_, isNeg := negativeWords[t]
		switch {
		case isPos && negated:
			negative++
		case isPos:
			positive++
		case isNeg && negated:
			positive++
		case isNeg:
			negative++
		}
		negated = false
	}

	total := positive + negative
	if total == 0 {
		return enrichment.NewSentiment(enrichment.SentimentNeutral, 0.5)
	}

	margin := float64(abs(positive-negative)) / float64(total)
	confidence := 0.5 + margin/2

	switch {
	case positive > negative:
		return enrichment.NewSentiment(enrichment.SentimentPositive, confidence)
	case negative > positive:
		return enrichment.NewSentiment(enrichment.SentimentNegative, confidence)
	default:
		return enrichment.NewSentiment(enrichment.SentimentNeutral, 0.5)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
