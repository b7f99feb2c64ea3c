package enrichment

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Status tracks the enrichment lifecycle of one document.
type Status string

// Status values.
const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// SentimentLabel is the overall polarity of a document.
type SentimentLabel string

// Sentiment labels.
const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// Sentiment is a polarity judgement with confidence.
type Sentiment struct {
	label      SentimentLabel
	confidence float64
}

// NewSentiment creates a Sentiment.
func NewSentiment(label SentimentLabel, confidence float64) Sentiment {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return Sentiment{label: label, confidence: confidence}
}

// Label returns the polarity label.
func (s Sentiment) Label() SentimentLabel { return s.label }

// Confidence returns the label confidence in [0,1].
func (s Sentiment) Confidence() float64 { return s.confidence }

// ContentFeatures are structural properties detected in the text.
type ContentFeatures struct {
	hasCode  bool
	hasTable bool
	hasList  bool
}

// NewContentFeatures creates ContentFeatures.
func NewContentFeatures(hasCode, hasTable, hasList bool) ContentFeatures {
	return ContentFeatures{hasCode: hasCode, hasTable: hasTable, hasList: hasList}
}

// HasCode reports whether the text contains code blocks.
func (f ContentFeatures) HasCode() bool { return f.hasCode }

// HasTable reports whether the text contains tables.
func (f ContentFeatures) HasTable() bool { return f.hasTable }

// HasList reports whether the text contains list structures.
func (f ContentFeatures) HasList() bool { return f.hasList }

// HashContent returns the content fingerprint a Result is keyed on.
// Re-syncing a document with an unchanged fingerprint must not trigger
// re-enrichment or re-embedding.
func HashContent(title, content string) string {
	sum := sha256.Sum256([]byte(title + "\n" + content))
	return hex.EncodeToString(sum[:])
}

// Result is the full enrichment output for one document version.
type Result struct {
	documentID  string
	version     int
	status      Status
	contentHash string
	tags        []string
	entities    []Entity
	wordCount   int
	readingTime time.Duration
	sentiment   Sentiment
	features    ContentFeatures
	author      string
	language    string
	enrichedAt  time.Time
	errMessage  string
}

// NewResult creates a completed Result.
func NewResult(
	documentID string,
	version int,
	tags []string,
	entities []Entity,
	wordCount int,
	readingTime time.Duration,
	sentiment Sentiment,
	features ContentFeatures,
	author, language string,
) Result {
	tagsCp := make([]string, len(tags))
	copy(tagsCp, tags)
	entCp := make([]Entity, len(entities))
	copy(entCp, entities)
	return Result{
		documentID:  documentID,
		version:     version,
		status:      StatusCompleted,
		tags:        tagsCp,
		entities:    entCp,
		wordCount:   wordCount,
		readingTime: readingTime,
		sentiment:   sentiment,
		features:    features,
		author:      author,
		language:    language,
		enrichedAt:  time.Now().UTC(),
	}
}

// FailedResult records an enrichment failure for a document version.
func FailedResult(documentID string, version int, err error) Result {
	r := Result{
		documentID: documentID,
		version:    version,
		status:     StatusFailed,
		enrichedAt: time.Now().UTC(),
	}
	if err != nil {
		r.errMessage = err.Error()
	}
	return r
}

// WithContentHash returns a copy carrying the content fingerprint the
// result was computed from.
func (r Result) WithContentHash(hash string) Result {
	r.contentHash = hash
	return r
}

// Refreshed returns a copy with a current enrichment time. Used when a
// re-synced document turns out unchanged: the existing result stands,
// only its staleness marker moves.
func (r Result) Refreshed() Result {
	r.enrichedAt = time.Now().UTC()
	return r
}

// DocumentID returns the enriched document.
func (r Result) DocumentID() string { return r.documentID }

// Version returns the document version the result belongs to. A version
// bump makes reprocessing produce a fresh result.
func (r Result) Version() int { return r.version }

// Status returns the enrichment status.
func (r Result) Status() Status { return r.status }

// ContentHash returns the fingerprint of the enriched content ("" for
// failed results).
func (r Result) ContentHash() string { return r.contentHash }

// Tags returns the extracted keywords and phrases.
func (r Result) Tags() []string {
	cp := make([]string, len(r.tags))
	copy(cp, r.tags)
	return cp
}

// Entities returns the extracted entities.
func (r Result) Entities() []Entity {
	cp := make([]Entity, len(r.entities))
	copy(cp, r.entities)
	return cp
}

// WordCount returns the document word count.
func (r Result) WordCount() int { return r.wordCount }

// ReadingTime returns the estimated reading time.
func (r Result) ReadingTime() time.Duration { return r.readingTime }

// Sentiment returns the polarity judgement.
func (r Result) Sentiment() Sentiment { return r.sentiment }

// Features returns detected content features.
func (r Result) Features() ContentFeatures { return r.features }

// Author returns the detected author ("" when none was found).
func (r Result) Author() string { return r.author }

// Language returns the detected ISO language code.
func (r Result) Language() string { return r.language }

// EnrichedAt returns when the result was produced.
func (r Result) EnrichedAt() time.Time { return r.enrichedAt }

// ErrorMessage returns the failure reason for failed results.
func (r Result) ErrorMessage() string { return r.errMessage }
