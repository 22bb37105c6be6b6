// Package names normalizes person names and documents for roster search.
package names

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "João" -> "Joao").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// Normalize folds a name for comparison (lowercase, no diacritics, single spaces, spaces for dashes).
func Normalize(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// Matches reports whether a normalized query occurs in the name.
func Matches(name, query string) bool {
	q := Normalize(query)
	if q == "" {
		return false
	}
	return strings.Contains(Normalize(name), q)
}

// MaskDocument hides all but the last two characters of a document for reports.
func MaskDocument(doc string) string {
	r := []rune(doc)
	if len(r) <= 2 {
		return doc
	}
	return strings.Repeat("*", len(r)-2) + string(r[len(r)-2:])
}
