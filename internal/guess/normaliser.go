// Package guess classifies a chat line against the current secret word.
package guess

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Verdict is the classification of one guess attempt.
type Verdict struct {
	Correct bool
	Close   bool
}

// Evaluate compares guess against word after trimming and case-folding.
// Correct requires an exact match. Close is computed two ways and
// combined with OR: the length-1 edit window with bounded positional
// mismatch, or substring containment with length >= 3; a Levenshtein
// distance of exactly 1 is folded in as a second signal, matching the
// heuristic scribbl.rs uses for the same "close" indicator.
func Evaluate(word, rawGuess string) Verdict {
	g := strings.ToLower(strings.TrimSpace(rawGuess))
	w := strings.ToLower(strings.TrimSpace(word))

	if g == "" {
		return Verdict{}
	}
	if g == w {
		return Verdict{Correct: true}
	}

	return Verdict{Close: isClose(g, w)}
}

func isClose(g, w string) bool {
	if lengthWindowMatch(g, w) {
		return true
	}
	if len(g) >= 3 && (strings.Contains(w, g) || strings.Contains(g, w)) {
		return true
	}
	return levenshtein.ComputeDistance(g, w) == 1
}

// lengthWindowMatch reports whether g and w differ in length by at most
// one character and mismatch in at most two aligned positions.
func lengthWindowMatch(g, w string) bool {
	gr, wr := []rune(g), []rune(w)
	if abs(len(gr)-len(wr)) > 1 {
		return false
	}

	shorter, longer := gr, wr
	if len(longer) < len(shorter) {
		shorter, longer = longer, shorter
	}

	mismatches := 0
	for i := range shorter {
		if shorter[i] != longer[i] {
			mismatches++
		}
	}
	mismatches += len(longer) - len(shorter)
	return mismatches <= 2
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
