package nlp

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"
)

const (
	// idfRefreshInterval bounds how stale the global document-frequency
	// statistics may get before the next extraction retrains them.
	idfRefreshInterval = time.Hour

	// idfSampleSize is how many documents one training pass reads.
	idfSampleSize = 1000

	defaultKeywordCount = 8
)

// CorpusSource supplies document texts for IDF training.
type CorpusSource interface {
	SampleContents(ctx context.Context, limit int) ([]string, error)
}

// KeywordExtractor scores document terms by TF-IDF. The global IDF table
// is trained lazily from a CorpusSource sample and refreshed at most once
// per idfRefreshInterval; until the first training pass completes, raw
// term frequency ranks the keywords.
type KeywordExtractor struct {
	corpus CorpusSource
	logger *slog.Logger

	mu        sync.Mutex
	docFreq   map[string]int
	docCount  int
	trainedAt time.Time
}

// NewKeywordExtractor creates a KeywordExtractor. A nil corpus disables
// IDF training and keywords rank by term frequency alone.
func NewKeywordExtractor(corpus CorpusSource, logger *slog.Logger) *KeywordExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeywordExtractor{corpus: corpus, logger: logger}
}

// Keywords returns up to n top-scoring single-word keywords for the text.
func (e *KeywordExtractor) Keywords(ctx context.Context, text string, n int) []string {
	if n <= 0 {
		n = defaultKeywordCount
	}
	e.maybeTrain(ctx)

	tokens := contentTokens(tokenize(text))
	if len(tokens) == 0 {
		return nil
	}

	tf := map[string]int{}
	for _, t := range tokens {
		tf[t]++
	}

	e.mu.Lock()
	docFreq, docCount := e.docFreq, e.docCount
	e.mu.Unlock()

	type scored struct {
		term  string
		score float64
	}
	terms := make([]scored, 0, len(tf))
	for term, count := range tf {
		score := float64(count)
		if docCount > 0 {
			score *= idf(docFreq[term], docCount)
		}
		terms = append(terms, scored{term: term, score: score})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].score != terms[j].score {
			return terms[i].score > terms[j].score
		}
		return terms[i].term < terms[j].term
	})

	if len(terms) > n {
		terms = terms[:n]
	}
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.term
	}
	return out
}

// idf is the smoothed inverse document frequency.
func idf(docFreq, docCount int) float64 {
	return math.Log(float64(docCount+1)/float64(docFreq+1)) + 1
}

// maybeTrain refreshes the document-frequency table when stale. Training
// failures are logged and the previous table stays in effect.
func (e *KeywordExtractor) maybeTrain(ctx context.Context) {
	if e.corpus == nil {
		return
	}

	e.mu.Lock()
	stale := time.Since(e.trainedAt) >= idfRefreshInterval
	if stale {
		// Claim the training slot before releasing the lock so
		// concurrent extractions don't retrain in parallel.
		e.trainedAt = time.Now()
	}
	e.mu.Unlock()
	if !stale {
		return
	}

	contents, err := e.corpus.SampleContents(ctx, idfSampleSize)
	if err != nil {
		e.logger.Warn("idf training sample failed", "error", err)
		return
	}

	docFreq := map[string]int{}
	for _, content := range contents {
		seen := map[string]struct{}{}
		for _, t := range contentTokens(tokenize(content)) {
			seen[t] = struct{}{}
		}
		for t := range seen {
			docFreq[t]++
		}
	}

	e.mu.Lock()
	e.docFreq = docFreq
	e.docCount = len(contents)
	e.mu.Unlock()
	e.logger.Debug("idf table trained", "documents", len(contents), "terms", len(docFreq))
}
