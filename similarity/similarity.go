// Package similarity gives task descriptions a stable identity and scores how
// closely two free-text descriptions resemble each other.
//
// Identity and similarity are deliberately separate: Identity is an exact
// bucket over normalized text, while Ratio is a fuzzy score used to decide
// whether a proposed task duplicates an open one (DuplicateThreshold) or which
// document line a status update refers to (UpdateThreshold).
package similarity

import (
	"strings"

	"github.com/amonks/swarmboard/internal/ids"
	internalstrings "github.com/amonks/swarmboard/internal/strings"
	"github.com/pmezard/go-difflib/difflib"
)

const (
	// DuplicateThreshold is the score at which a proposed task is considered
	// already represented by an open task.
	DuplicateThreshold = 0.70

	// UpdateThreshold is the score at which a document line is considered the
	// task a status update refers to.
	UpdateThreshold = 0.80

	// IDLength is the number of characters in a task identity.
	IDLength = ids.DefaultLength
)

// Normalize reduces task text to its identity-bearing form: digit runs become
// a placeholder, whitespace is collapsed and the result is lowercased.
func Normalize(text string) string {
	normalized := internalstrings.CollapseDigits(text)
	normalized = internalstrings.NormalizeWhitespace(normalized)
	return internalstrings.NormalizeLower(normalized)
}

// Identity returns the stable identity of a task within the named document.
func Identity(documentName, text string) string {
	return ids.Generate(IDLength, documentName, Normalize(text))
}

// Ratio scores a and b in [0, 1] using the longest-matching-block ratio:
// twice the number of matched characters over the combined length.
// Inputs are compared as given; callers fold case when they need to.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	// The matcher is not strictly symmetric, so fix an argument order.
	if b < a {
		a, b = b, a
	}
	matcher := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return matcher.Ratio()
}

// RatioFold is Ratio over lowercased inputs.
func RatioFold(a, b string) float64 {
	return Ratio(strings.ToLower(a), strings.ToLower(b))
}

// Matches reports whether score meets threshold.
func Matches(score, threshold float64) bool {
	return score >= threshold
}

// First returns the index of the first text whose case-folded score against
// candidate meets threshold, or -1.
func First(candidate string, texts []string, threshold float64) (int, float64) {
	for i, text := range texts {
		score := RatioFold(candidate, text)
		if Matches(score, threshold) {
			return i, score
		}
	}
	return -1, 0
}

// Best returns the index and score of the text most similar to candidate.
// Ties keep the earliest text. It returns -1 when texts is empty.
func Best(candidate string, texts []string) (int, float64) {
	best := -1
	bestScore := -1.0
	for i, text := range texts {
		score := RatioFold(candidate, text)
		if score > bestScore {
			best = i
			bestScore = score
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, bestScore
}

func splitRunes(value string) []string {
	runes := []rune(value)
	parts := make([]string, len(runes))
	for i, r := range runes {
		parts[i] = string(r)
	}
	return parts
}
