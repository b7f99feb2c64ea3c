package nostr

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"
)

// Spam check names, reported in filter results.
const (
	CheckDuplicate = "duplicate_content"
	CheckLinkRatio = "link_ratio"
	CheckPatterns  = "suspicious_patterns"
	CheckQuality   = "content_quality"
	CheckMentions  = "mention_count"
)

var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(act now|limited time|don't miss|hurry|last chance)\b`),
	regexp.MustCompile(`(?i)\b(free (money|crypto|btc|sats)|airdrop|giveaway|double your)\b`),
	regexp.MustCompile(`(?i)\b(click here|sign up now|guaranteed profit)\b`),
	regexp.MustCompile(`(.)\1{7,}`),
	regexp.MustCompile(`[\x{1F300}-\x{1FAFF}]{5,}`),
}

// FilterResult reports the outcome of the spam filter for one event.
type FilterResult struct {
	spam         bool
	failedChecks []string
}

// Spam reports whether the event was rejected.
func (r FilterResult) Spam() bool { return r.spam }

// FailedChecks returns the names of checks the event failed.
func (r FilterResult) FailedChecks() []string {
	cp := make([]string, len(r.failedChecks))
	copy(cp, r.failedChecks)
	return cp
}

// SpamFilter gates events on five independent checks. An event is spam when
// at least failThreshold checks fail. Duplicate tracking keeps a rolling
// 24 h window of content hashes per pubkey.
type SpamFilter struct {
	failThreshold int
	linkRatio     float64
	window        time.Duration
	maxDuplicates int
	maxMentions   int

	mu   sync.Mutex
	seen map[string][]time.Time // pubkey+hash -> sighting times
	now  func() time.Time
}

// SpamFilterOption configures a SpamFilter.
type SpamFilterOption func(*SpamFilter)

// WithFailThreshold sets the number of failed checks that marks spam.
func WithFailThreshold(n int) SpamFilterOption {
	return func(f *SpamFilter) {
		if n > 0 {
			f.failThreshold = n
		}
	}
}

// WithLinkRatio sets the maximum tolerated link-to-text ratio.
func WithLinkRatio(r float64) SpamFilterOption {
	return func(f *SpamFilter) {
		if r > 0 {
			f.linkRatio = r
		}
	}
}

// WithClock overrides the filter clock (tests).
func WithClock(now func() time.Time) SpamFilterOption {
	return func(f *SpamFilter) { f.now = now }
}

// NewSpamFilter creates a SpamFilter with the default tunables.
func NewSpamFilter(options ...SpamFilterOption) *SpamFilter {
	f := &SpamFilter{
		failThreshold: 2,
		linkRatio:     0.15,
		window:        24 * time.Hour,
		maxDuplicates: 3,
		maxMentions:   10,
		seen:          map[string][]time.Time{},
		now:           time.Now,
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// Check runs all five checks against an extracted event. Passing events are
// recorded in the duplicate window; the check is idempotent for an event
// that already passed within the window (its own sighting does not push it
// over the duplicate limit).
func (f *SpamFilter) Check(e Event, x Extraction) FilterResult {
	var failed []string

	if f.duplicateCheck(e) {
		failed = append(failed, CheckDuplicate)
	}
	if f.linkRatioCheck(x) {
		failed = append(failed, CheckLinkRatio)
	}
	if patternCheck(x.Content()) {
		failed = append(failed, CheckPatterns)
	}
	if qualityCheck(x) {
		failed = append(failed, CheckQuality)
	}
	if len(x.Mentions()) > f.maxMentions {
		failed = append(failed, CheckMentions)
	}

	return FilterResult{
		spam:         len(failed) >= f.failThreshold,
		failedChecks: failed,
	}
}

// duplicateCheck records the sighting and reports whether this pubkey
// posted the same content more than maxDuplicates times in the window.
func (f *SpamFilter) duplicateCheck(e Event) bool {
	sum := sha256.Sum256([]byte(e.Content()))
	key := e.Pubkey() + ":" + hex.EncodeToString(sum[:8])

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	cutoff := now.Add(-f.window)

	kept := f.seen[key][:0]
	for _, t := range f.seen[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	// Re-running the same event within the window must not change the
	// verdict, so count before recording the new sighting.
	over := len(kept) >= f.maxDuplicates

	f.seen[key] = append(kept, now)
	return over
}

func (f *SpamFilter) linkRatioCheck(x Extraction) bool {
	content := x.Content()
	if content == "" {
		return false
	}
	var linkChars int
	for _, u := range x.URLs() {
		linkChars += len(u)
	}
	return float64(linkChars)/float64(len(content)) >= f.linkRatio
}

func patternCheck(content string) bool {
	var hits int
	for _, p := range suspiciousPatterns {
		if p.MatchString(content) {
			hits++
		}
	}
	return hits >= 2
}

// qualityCheck rejects short content stuffed with links and shouting.
func qualityCheck(x Extraction) bool {
	content := x.Content()
	length := utf8.RuneCountInString(content)

	if length < 50 && len(x.URLs()) >= 2 {
		return true
	}

	var letters, upper int
	for _, r := range content {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters >= 20 && float64(upper)/float64(letters) > 0.5 {
		return true
	}

	return false
}

// Prune drops expired duplicate-window entries. Called periodically by the
// ingestion pipeline to bound memory.
func (f *SpamFilter) Prune() {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := f.now().Add(-f.window)
	for key, times := range f.seen {
		kept := times[:0]
		for _, t := range times {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(f.seen, key)
			continue
		}
		f.seen[key] = kept
	}
}
