package identify

import (
	"sort"
	"strings"
	"unicode"

	"markscan/internal/assess"

	"golang.org/x/text/unicode/norm"
)

// Suggestion is one roster candidate for an OCR-recovered name.
type Suggestion struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
}

// MatchName scores roster candidates against OCR text with a containment
// heuristic. OCR of handwriting garbles individual characters, so the scoring
// leans on substring hits over edit distance:
//
//	+50  normalized text contains the last name
//	+30  normalized text contains the first name
//	+20  full-name concatenation contains the text, or vice versa
//	+0..20  positional character-overlap ratio
//
// The constants are tuned against real scan batches; treat them as
// characterized behavior rather than derived values.
func MatchName(ocrText string, candidates []assess.Student, minScore, limit int) []Suggestion {
	text := normalizeName(ocrText)
	if text == "" {
		return nil
	}

	var out []Suggestion
	for _, s := range candidates {
		first := normalizeName(s.FirstName)
		last := normalizeName(s.LastName)
		full := first + last

		score := 0
		if last != "" && strings.Contains(text, last) {
			score += 50
		}
		if first != "" && strings.Contains(text, first) {
			score += 30
		}
		if full != "" && (strings.Contains(full, text) || strings.Contains(text, full)) {
			score += 20
		}
		score += int(20 * overlapRatio(text, full))

		if score >= minScore {
			out = append(out, Suggestion{StudentID: s.ID, Name: s.FullName(), Score: score})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// normalizeName lowercases, folds diacritics, and strips everything but
// ASCII letters. The OCR charset is plain ASCII, so an accented roster name
// must normalize to its base letters rather than lose them.
func normalizeName(s string) string {
	var b strings.Builder
	for _, c := range norm.NFD.String(strings.ToLower(s)) {
		if unicode.Is(unicode.Mn, c) {
			continue
		}
		if c >= 'a' && c <= 'z' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// overlapRatio returns the fraction of positions where the two strings carry
// the same character, over the longer length. Crude, but it rewards OCR
// output that is one or two characters off at the same positions.
func overlapRatio(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	matches := 0
	for i := 0; i < n; i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	return float64(matches) / float64(longer)
}
