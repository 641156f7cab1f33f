package identity

import "github.com/agnivade/levenshtein"

// Similarity is (maxLen - distance) / maxLen over runes, in [0, 1].
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1
	}
	return float64(maxLen-levenshtein.ComputeDistance(a, b)) / float64(maxLen)
}
