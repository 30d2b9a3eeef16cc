package indexer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var pageMarker = regexp.MustCompile(`(?i)\bpage\s*\d+\b`)

// Preprocess normalizes extracted text for chunking: NFKC normalization,
// whitespace collapsed to single spaces, and "page N" artifacts removed.
func Preprocess(text string) string {
	text = collapseSpace(norm.NFKC.String(text))
	if !pageMarker.MatchString(text) {
		return text
	}
	return collapseSpace(pageMarker.ReplaceAllString(text, ""))
}

func collapseSpace(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
