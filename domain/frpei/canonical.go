package frpei

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Tracking parameters stripped during URL canonicalization.
var trackingParams = map[string]struct{}{
	"fbclid":   {},
	"gclid":    {},
	"msclkid":  {},
	"mc_cid":   {},
	"mc_eid":   {},
	"ref":      {},
	"ref_src":  {},
	"igshid":   {},
	"spm":      {},
	"yclid":    {},
	"_hsenc":   {},
	"_hsmi":    {},
	"vero_id":  {},
	"wickedid": {},
}

// Title suffixes stripped during normalization, matched after a separator.
var titleSeparators = []string{" | ", " – ", " — ", " :: "}

// Canonicalizer normalizes raw candidates into deduplicatable form. The
// transformation is idempotent: canonicalizing a canonical candidate is a
// no-op.
type Canonicalizer struct{}

// NewCanonicalizer creates a Canonicalizer.
func NewCanonicalizer() Canonicalizer { return Canonicalizer{} }

// Candidate canonicalizes one raw candidate from the named provider.
func (cz Canonicalizer) Candidate(provider string, trustTier int, raw RawCandidate) (Candidate, error) {
	canonical, domain, err := CanonicalURL(raw.URL)
	if err != nil {
		return Candidate{}, err
	}
	sum := sha256.Sum256([]byte(canonical))
	return Candidate{
		id:              hex.EncodeToString(sum[:16]),
		canonicalURL:    canonical,
		canonicalDomain: domain,
		title:           NormalizeTitle(raw.Title),
		snippet:         strings.TrimSpace(raw.Snippet),
		contentType:     DetectContentType(canonical, raw.ContentType),
		provider:        provider,
		trustTier:       trustTier,
		publishedAt:     raw.PublishedAt,
		signals: Signals{
			Relevance:  clamp01(raw.Relevance),
			Popularity: clamp01(raw.Popularity),
		},
	}, nil
}

// CanonicalURL normalizes a URL: lowercase scheme and host, drop the
// fragment, strip known tracking parameters, sort the surviving query,
// and trim a trailing slash on non-root paths. Returns the canonical URL
// and the canonical domain (host without a www prefix).
func CanonicalURL(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("canonicalize url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("canonicalize url: %q is not absolute", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	query := u.Query()
	for param := range query {
		if _, tracked := trackingParams[param]; tracked || strings.HasPrefix(param, "utm_") {
			query.Del(param)
		}
	}
	u.RawQuery = encodeSorted(query)

	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	domain := strings.TrimPrefix(u.Hostname(), "www.")
	return u.String(), domain, nil
}

// NormalizeTitle trims, collapses whitespace, and strips a trailing site
// suffix such as " | Example News".
func NormalizeTitle(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	for _, sep := range titleSeparators {
		if idx := strings.LastIndex(title, sep); idx > 0 {
			// Only strip short suffixes; a long tail is part of the title.
			if len(title)-idx-len(sep) <= 40 {
				title = strings.TrimSpace(title[:idx])
			}
		}
	}
	return title
}

// Content types produced by detection.
const (
	ContentTypeWebpage = "webpage"
	ContentTypeArticle = "article"
	ContentTypeVideo   = "video"
	ContentTypeAudio   = "audio"
	ContentTypeImage   = "image"
	ContentTypePDF     = "pdf"
)

// DetectContentType infers a content type from the URL when the provider
// did not supply one.
func DetectContentType(canonicalURL, declared string) string {
	if declared != "" {
		return declared
	}
	lower := strings.ToLower(canonicalURL)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return ContentTypePDF
	case hasAnySuffix(lower, ".mp3", ".ogg", ".wav", ".m4a"):
		return ContentTypeAudio
	case hasAnySuffix(lower, ".mp4", ".webm", ".mov"):
		return ContentTypeVideo
	case hasAnySuffix(lower, ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg"):
		return ContentTypeImage
	case strings.Contains(lower, "/blog/") || strings.Contains(lower, "/articles/") || strings.Contains(lower, "/posts/"):
		return ContentTypeArticle
	}
	return ContentTypeWebpage
}

// encodeSorted renders query values with deterministic key order.
func encodeSorted(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Freshness maps a publication time to a [0,1] signal with a one-year
// linear decay. Unknown times score 0.
func Freshness(publishedAt, now time.Time) float64 {
	if publishedAt.IsZero() || publishedAt.After(now) {
		if publishedAt.After(now) {
			return 1
		}
		return 0
	}
	age := now.Sub(publishedAt)
	const horizon = 365 * 24 * time.Hour
	if age >= horizon {
		return 0
	}
	return 1 - float64(age)/float64(horizon)
}
