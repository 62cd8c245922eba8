package transform

import (
	"strings"
	"unicode"
)

// stop words dropped from normalized product descriptions: connectives and
// unit abbreviations that carry no meaning for matching.
var stopWords = map[string]bool{
	"da": true, "de": true, "do": true, "das": true, "dos": true,
	"para": true, "com": true,
	"kg": true, "g": true, "ml": true, "l": true,
	"und": true, "un": true, "pct": true,
}

// accented Latin letters mapped to their bare forms.
var diacritics = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ç': 'c', 'ñ': 'n',
}

// NormalizeDescription lowercases, strips accents and punctuation, collapses
// whitespace, and removes stop words. The result is the matching key used for
// price history and category grouping.
func NormalizeDescription(description string) string {
	lowered := strings.ToLower(description)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if mapped, ok := diacritics[r]; ok {
			r = mapped
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}

	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if !stopWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}
