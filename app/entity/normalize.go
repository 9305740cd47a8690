package entity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Typographic variants are stripped alongside their ASCII forms.
var strippedChars = strings.NewReplacer(
	"'", "", "‘", "", "’", "",
	"\"", "", "“", "", "”", "",
	",", "",
	".", "",
	"-", "",
)

// NormalizeName folds a tag name for exact comparison: lower-cased, trimmed,
// internal whitespace collapsed, then apostrophes, quotes, commas, periods
// and hyphens removed.
func NormalizeName(name string) string {
	s := norm.NFKC.String(name)
	s = cases.Lower(language.Und).String(s)
	s = strings.Join(strings.Fields(s), " ")
	return strippedChars.Replace(s)
}
