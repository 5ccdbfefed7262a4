package noitu

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Old-style tone placement ("oà", "uý") rewritten to the modern one ("òa", "úy").
var (
	oaTones = map[rune]rune{'à': 'ò', 'á': 'ó', 'ả': 'ỏ', 'ã': 'õ', 'ạ': 'ọ'}
	uyTones = map[rune]rune{'ý': 'ú', 'ỳ': 'ù', 'ỷ': 'ủ', 'ỹ': 'ũ', 'ỵ': 'ụ'}
)

// Normalize returns the canonical spelling of a Vietnamese phrase: NFC, lower case,
// single spaces, and one tone placement per rhyme. "hoà" and "toà" become "hòa" and "tòa"
// through the oà rule; "quý" keeps its spelling because qu is a single onset.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	s := strings.ToLower(norm.NFC.String(text))
	s = strings.Join(strings.Fields(s), " ")

	rs := []rune(s)
	for i := 0; i+1 < len(rs); i++ {
		if !endsSyllable(rs, i+2) {
			continue
		}
		switch rs[i] {
		case 'o':
			if t, ok := oaTones[rs[i+1]]; ok {
				rs[i], rs[i+1] = t, 'a'
				i++
			}
		case 'u':
			if i > 0 && rs[i-1] == 'q' {
				continue
			}
			if t, ok := uyTones[rs[i+1]]; ok {
				rs[i], rs[i+1] = t, 'y'
				i++
			}
		}
	}
	return string(rs)
}

func endsSyllable(rs []rune, j int) bool {
	return j >= len(rs) || !unicode.IsLetter(rs[j])
}

// Syllables splits an already normalized phrase.
func Syllables(phrase string) []string {
	return strings.Split(phrase, " ")
}

func firstSyllable(phrase string) string {
	if i := strings.IndexByte(phrase, ' '); i >= 0 {
		return phrase[:i]
	}
	return phrase
}

func lastSyllable(phrase string) string {
	if i := strings.LastIndexByte(phrase, ' '); i >= 0 {
		return phrase[i+1:]
	}
	return phrase
}
