package nlp

import (
	"regexp"
	"strings"
	"time"

	"github.com/meridiansearch/meridian/domain/enrichment"
)

// readingWordsPerMinute is the assumed adult reading speed.
const readingWordsPerMinute = 200

var (
	codeFencePattern  = regexp.MustCompile("(?m)^```|^~~~|<code>|<pre>")
	codeIndentPattern = regexp.MustCompile(`(?m)^(    |\t)\S`)
	codeInlinePattern = regexp.MustCompile("`[^`\n]+`")

	tablePattern     = regexp.MustCompile(`(?m)^\s*\|.*\|\s*$|<table`)
	tableRulePattern = regexp.MustCompile(`(?m)^\s*\|?[\s:|-]*-{3,}[\s:|-]*\|?\s*$`)

	listPattern = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d{1,3}[.)])\s+\S|<[uo]l>`)

	authorPattern = regexp.MustCompile(`(?mi)^(?:by|author|written by)[:\s]+([A-Z][A-Za-z.'-]+(?:\s+[A-Z][A-Za-z.'-]+){0,3})\s*$`)
)

// Features detects structural content properties.
func Features(text string) enrichment.ContentFeatures {
	hasCode := codeFencePattern.MatchString(text) ||
		codeIndentPattern.MatchString(text) ||
		len(codeInlinePattern.FindAllString(text, 3)) >= 2

	hasTable := tablePattern.MatchString(text) && tableRulePattern.MatchString(text) ||
		strings.Contains(text, "<table")

	hasList := len(listPattern.FindAllString(text, 2)) >= 2

	return enrichment.NewContentFeatures(hasCode, hasTable, hasList)
}

// WordCount counts word tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// ReadingTime estimates how long the text takes to read, rounded up to a
// whole minute with a one minute floor for non-empty text.
func ReadingTime(wordCount int) time.Duration {
	if wordCount == 0 {
		return 0
	}
	minutes := (wordCount + readingWordsPerMinute - 1) / readingWordsPerMinute
	return time.Duration(minutes) * time.Minute
}

// Author extracts a byline ("By Jane Doe", "Author: ...") when present.
func Author(text string) string {
	m := authorPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
