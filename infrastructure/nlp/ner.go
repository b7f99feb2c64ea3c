package nlp

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/meridiansearch/meridian/domain/enrichment"
)

// Pattern NER. Each rule yields byte spans which are converted to rune
// offsets before building entities. Overlapping matches keep the rule
// that fired first in the order below.
var (
	urlPattern   = regexp.MustCompile(`\bhttps?://[^\s<>"')\]]+`)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\+?\d{1,3}[\s.-]?\(?\d{2,4}\)?[\s.-]?\d{3,4}[\s.-]?\d{3,4}\b`)
	moneyPattern = regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d+)?\b|\b\d[\d,]*(?:\.\d+)?\s?(?:USD|EUR|GBP|BTC|sats|dollars|euros)\b`)

	datePattern = regexp.MustCompile(
		`\b\d{4}-\d{2}-\d{2}\b` +
			`|\b\d{1,2}/\d{1,2}/\d{2,4}\b` +
			`|\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?\b`)

	honorificPattern = regexp.MustCompile(
		`\b(?:Mr|Mrs|Ms|Dr|Prof|Sir)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?`)
	capitalizedBigram = regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`)

	orgPattern = regexp.MustCompile(
		`\b[A-Z][A-Za-z0-9&]*(?:\s+[A-Z][A-Za-z0-9&]*)*\s+` +
			`(?:Inc|Corp|Corporation|LLC|Ltd|GmbH|AG|Foundation|University|Institute|Company|Labs|Group)\.?\b`)

	locationPattern = regexp.MustCompile(
		`\b(?:in|at|from|near|to)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\b`)
)

// locationStoplist filters location candidates that the preposition cue
// commonly false-positives on.
var locationStoplist = toSet([]string{
	"i", "january", "february", "march", "april", "may", "june", "july",
	"august", "september", "october", "november", "december", "monday",
	"tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"god", "english", "internet",
})

// Entities runs all NER rules over the text. Spans are rune offsets.
// Higher-precision rules run first and claim their spans; later rules
// skip anything overlapping a claimed span, so "Acme Corp" is an ORG and
// never also a PERSON.
func Entities(text string) []enrichment.Entity {
	var entities []enrichment.Entity
	var claimed []span

	addMatches := func(entityType enrichment.EntityType, matches [][]int, group int) {
		for _, m := range matches {
			start, end := m[2*group], m[2*group+1]
			if start < 0 || overlapsAny(claimed, start, end) {
				continue
			}
			value := text[start:end]
			if entityType == enrichment.EntityLocation {
				if _, bad := locationStoplist[strings.ToLower(strings.TrimSpace(value))]; bad {
					continue
				}
			}
			entity, err := enrichment.NewEntity(entityType, value, runeOffset(text, start), runeOffset(text, end))
			if err != nil {
				continue
			}
			claimed = append(claimed, span{start, end})
			entities = append(entities, entity)
		}
	}

	addMatches(enrichment.EntityURL, urlPattern.FindAllStringSubmatchIndex(text, -1), 0)
	addMatches(enrichment.EntityEmail, emailPattern.FindAllStringSubmatchIndex(text, -1), 0)
	addMatches(enrichment.EntityMoney, moneyPattern.FindAllStringSubmatchIndex(text, -1), 0)
	addMatches(enrichment.EntityDate, datePattern.FindAllStringSubmatchIndex(text, -1), 0)
	addMatches(enrichment.EntityPhone, phonePattern.FindAllStringSubmatchIndex(text, -1), 0)
	addMatches(enrichment.EntityOrg, orgPattern.FindAllStringSubmatchIndex(text, -1), 0)
	addMatches(enrichment.EntityLocation, locationPattern.FindAllStringSubmatchIndex(text, -1), 1)
	addMatches(enrichment.EntityPerson, personMatches(text), 0)

	return entities
}

type span struct{ start, end int }

func overlapsAny(claimed []span, start, end int) bool {
	for _, s := range claimed {
		if start < s.end && end > s.start {
			return true
		}
	}
	return false
}

// personMatches combines the honorific rule with the capitalized-bigram
// rule. Honorific matches win; bare bigrams are skipped when they open a
// sentence or start with a stopword, where false positives dominate.
func personMatches(text string) [][]int {
	out := honorificPattern.FindAllStringSubmatchIndex(text, -1)
	for _, m := range capitalizedBigram.FindAllStringSubmatchIndex(text, -1) {
		overlap := false
		for _, h := range out {
			if m[0] < h[1] && m[1] > h[0] {
				overlap = true
				break
			}
		}
		if overlap || sentenceInitial(text, m[0]) {
			continue
		}
		if isStopword(strings.ToLower(strings.Fields(text[m[0]:m[1]])[0])) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// sentenceInitial reports whether the byte offset starts the text or
// follows sentence-ending punctuation.
func sentenceInitial(text string, offset int) bool {
	for i := offset - 1; i >= 0; i-- {
		switch text[i] {
		case ' ', '\t':
			continue
		case '.', '!', '?', '\n', '\r':
			return true
		default:
			return false
		}
	}
	return true
}

// runeOffset converts a byte offset into a rune offset.
func runeOffset(text string, byteOffset int) int {
	return utf8.RuneCountInString(text[:byteOffset])
}
