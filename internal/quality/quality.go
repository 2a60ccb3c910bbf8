// Package quality scores how usable a page's embedded text layer looks.
// The score is advisory: the OCR decision itself is made by reconcile on the
// non-blank character count, the score only feeds previews and page metadata.
package quality

import (
	"math"
	"strings"
	"unicode"
)

type Score struct {
	Value     float64
	NonBlank  int
	WordCount int
	Reasons   []string
}

// LooksScanned reports whether the text layer is poor enough that OCR would
// probably recover more text.
func (s Score) LooksScanned() bool { return s.Value < 0.5 }

// NonBlank counts runes that are neither whitespace nor invisible format characters.
func NonBlank(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.Is(unicode.Cf, r) {
			continue
		}
		n++
	}
	return n
}

func CountWords(s string) int {
	return len(strings.Fields(s))
}

func Evaluate(text string, minWords int) Score {
	nb := NonBlank(text)
	wc := CountWords(text)
	if nb == 0 {
		return Score{Value: 0, Reasons: []string{"empty_text"}}
	}

	var letters, digits, garbage, single int
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		case r == '\uFFFD' || (unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'):
			garbage++
		}
	}
	for _, w := range strings.Fields(text) {
		if len([]rune(w)) == 1 {
			single++
		}
	}

	total := float64(nb)
	alpha := float64(letters) / total
	score := 1.0
	var reasons []string

	if wc < minWords {
		score -= 0.45
		reasons = append(reasons, "low_word_count")
	}
	if alpha < 0.25 && float64(digits)/total < 0.2 {
		score -= 0.35
		reasons = append(reasons, "low_alpha_ratio")
	}
	if g := float64(garbage) / total; g > 0.01 {
		score -= math.Min(0.5, g*50)
		reasons = append(reasons, "garbage_chars")
	}
	if wc > 0 && float64(single)/float64(wc) > 0.3 {
		score -= 0.25
		reasons = append(reasons, "scrambled_text")
	}
	if hasRuns(text, 5) {
		score -= 0.2
		reasons = append(reasons, "repeated_patterns")
	}
	if alpha > 0.6 && wc >= minWords {
		score += 0.1
		reasons = append(reasons, "good_prose")
	}

	return Score{
		Value:     math.Max(0, math.Min(1, score)),
		NonBlank:  nb,
		WordCount: wc,
		Reasons:   reasons,
	}
}

// hasRuns detects n or more identical consecutive non-space runes ("-----", ".....").
func hasRuns(s string, n int) bool {
	count := 0
	var last rune = -1
	for _, r := range s {
		if r == last && !unicode.IsSpace(r) {
			count++
			if count >= n {
				return true
			}
			continue
		}
		last, count = r, 1
	}
	return false
}
