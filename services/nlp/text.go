package nlp

import (
	"strings"
	"unicode"
)

// CleanText prepares scraped text for the NLP service: control characters
// and line/paragraph separators become spaces, whitespace runs collapse.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '\u2028', r == '\u2029':
			return ' '
		case unicode.IsControl(r):
			return ' '
		}
		return r
	}, text)

	return strings.Join(strings.Fields(cleaned), " ")
}
