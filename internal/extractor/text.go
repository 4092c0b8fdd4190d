package extractor

import (
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// normalizeText folds text for keyword matching: NFC composition so decomposed
// Hangul matches, full-width forms narrowed, lower case, single spaces.
func normalizeText(s string) string {
	s = norm.NFC.String(width.Narrow.String(s))
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// cleanText trims and collapses whitespace without changing case.
func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
