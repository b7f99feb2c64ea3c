package nlp

// Language detection by stopword profile: the language whose function
// words appear most often in the text wins. Profiles hold high-frequency
// function words chosen to minimize overlap between languages.
var languageProfiles = map[string]map[string]struct{}{
	"en": englishStopwords,
	"es": toSet([]string{
		"el", "la", "los", "las", "un", "una", "y", "o", "pero", "que",
		"de", "del", "en", "con", "por", "para", "es", "son", "está",
		"están", "como", "más", "este", "esta", "ese", "esa", "su", "sus",
		"lo", "se", "no", "sí", "muy", "también", "todo", "hay", "fue",
	}),
	"fr": toSet([]string{
		"le", "la", "les", "un", "une", "des", "et", "ou", "mais", "que",
		"de", "du", "dans", "avec", "pour", "par", "est", "sont", "comme",
		"plus", "ce", "cette", "ces", "son", "ses", "ne", "pas", "très",
		"aussi", "tout", "nous", "vous", "ils", "elle", "était", "être",
	}),
	"de": toSet([]string{
		"der", "die", "das", "ein", "eine", "und", "oder", "aber", "dass",
		"von", "im", "mit", "für", "durch", "ist", "sind", "wie", "mehr",
		"dieser", "diese", "dieses", "sein", "ihre", "nicht", "sehr",
		"auch", "alle", "wir", "sie", "ich", "war", "werden", "wurde",
		"nach", "bei", "zum", "zur",
	}),
	"pt": toSet([]string{
		"o", "os", "um", "uma", "e", "ou", "mas", "que", "de", "do", "da",
		"em", "no", "na", "com", "por", "para", "é", "são", "como",
		"mais", "este", "esta", "esse", "essa", "seu", "sua", "não",
		"sim", "muito", "também", "tudo", "foi", "ser", "há", "já",
	}),
}

// minLanguageHits is the minimum number of profile hits needed to commit
// to a detection; below it the language is reported unknown ("").
const minLanguageHits = 3

// DetectLanguage guesses the ISO 639-1 code of the text's language.
// Returns "" when no profile accumulates enough evidence.
func DetectLanguage(text string) string {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return ""
	}

	best, bestHits := "", 0
	for code, profile := range languageProfiles {
		hits := 0
		for _, t := range tokens {
			if _, ok := profile[t]; ok {
				hits++
			}
		}
		if hits > bestHits || (hits == bestHits && code < best) {
			best, bestHits = code, hits
		}
	}
	if bestHits < minLanguageHits {
		return ""
	}
	return best
}
