package catalogue

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters that do not decompose into an ASCII base letter.
var translit = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "œ", "oe", "ø", "o", "đ", "d", "ð", "d",
	"þ", "th", "ł", "l", "ı", "i", "ŋ", "ng", "ĸ", "q",
)

// Slugify returns an ASCII-only, hyphen-delimited slug for text. Accents are
// stripped, a few letters are spelled out, and every other non-alphanumeric
// run becomes a single delimiter. Characters with no ASCII rendering are
// dropped.
func Slugify(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, translit.Replace(strings.ToLower(text)))
	if err != nil {
		folded = strings.ToLower(text)
	}

	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !isASCIIAlnum(r) && r <= unicode.MaxASCII
	})

	parts := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Map(func(r rune) rune {
			if isASCIIAlnum(r) {
				return r
			}
			return -1
		}, w)
		if w != "" {
			parts = append(parts, w)
		}
	}
	return strings.Join(parts, "-")
}

func isASCIIAlnum(r rune) bool {
	return ('a' <= r && r <= 'z') || ('0' <= r && r <= '9')
}
