package pronunciation

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// canonicalText drops whitespace, punctuation and symbols and lowercases
// Latin letters, so "你好！" and "你 好" compare equal to "你好".
func canonicalText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// canonicalJyutping lowercases and normalizes syllable separators to single
// spaces. A tone digit directly followed by a letter also ends a syllable,
// so "nei5hou2" reads as "nei5 hou2".
func canonicalJyutping(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)

	afterTone := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '-' || r == '\'' || r == '’' || r == ',' || r == '.' || unicode.IsSpace(r):
			b.WriteRune(' ')
			afterTone = false
		case isToneDigit(r):
			b.WriteRune(r)
			afterTone = true
		default:
			if afterTone {
				b.WriteRune(' ')
			}
			b.WriteRune(r)
			afterTone = false
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// stripTones removes tone digits from canonical jyutping
func stripTones(s string) string {
	return strings.Map(func(r rune) rune {
		if isToneDigit(r) {
			return -1
		}
		return r
	}, s)
}

func isToneDigit(r rune) bool {
	return r >= '1' && r <= '6'
}

// isRomanized reports whether s looks like jyutping input rather than
// Chinese characters
func isRomanized(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// matcher applies the comparison rules in order and stops at the first hit
type matcher struct {
	toneInsensitive bool
	maxEditDistance int
}

func (m matcher) match(recognized, expectedText, expectedJyutping string) bool {
	if got := canonicalText(recognized); got != "" && got == canonicalText(expectedText) {
		return true
	}

	got := canonicalJyutping(recognized)
	want := canonicalJyutping(expectedJyutping)
	if got == "" || want == "" || !isRomanized(got) {
		return false
	}
	if got == want {
		return true
	}

	if m.toneInsensitive {
		got, want = stripTones(got), stripTones(want)
		if got == want {
			return true
		}
	}

	if m.maxEditDistance > 0 {
		return matchr.Levenshtein(got, want) <= m.maxEditDistance
	}
	return false
}
