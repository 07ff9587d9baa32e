package sentiment

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// Normalize cleans raw text before tokenization. The steps run in a fixed
// order because each one assumes the shape produced by the previous one:
//
//  1. HTML-like tags become a single space.
//  2. Anything other than letters, numbers, '_', whitespace and ". , ! ?"
//     becomes a space.
//  3. Whitespace runs collapse to one space; the result is trimmed.
//  4. Lowercase.
//  5. NFD decomposition with combining marks removed (no recomposition).
//
// Normalize never fails. An empty result is rejected by the Classifier.
func Normalize(raw string) string {
	text := tagPattern.ReplaceAllString(raw, " ")
	text = strings.Map(keepRune, text)
	text = strings.Join(strings.Fields(text), " ")
	text = strings.ToLower(text)
	return stripMarks(text)
}

// NormalizeAny stringifies v before normalizing it.
func NormalizeAny(v any) string {
	switch t := v.(type) {
	case string:
		return Normalize(t)
	case nil:
		return ""
	default:
		return Normalize(fmt.Sprint(t))
	}
}

func keepRune(r rune) rune {
	switch {
	case unicode.IsLetter(r), unicode.IsNumber(r), r == '_':
		return r
	case unicode.IsSpace(r):
		return r
	case r == '.', r == ',', r == '!', r == '?':
		return r
	}
	return ' '
}

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
