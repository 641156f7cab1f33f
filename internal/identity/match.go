package identity

import (
	"fmt"
	"strings"
)

// DefaultSimilarityThreshold is the edit-distance similarity at or above
// which two names match regardless of token order.
const DefaultSimilarityThreshold = 0.80

// MatchOrder records how a name match was established.
type MatchOrder string

const (
	OrderDeclared   MatchOrder = "declared"
	OrderReversed   MatchOrder = "reversed"
	OrderSimilarity MatchOrder = "similarity"
	OrderNone       MatchOrder = ""
)

// NameMatch is the outcome of comparing a declared name with a verified one.
type NameMatch struct {
	Passed     bool       `json:"passed"`
	Order      MatchOrder `json:"order,omitempty"`
	Similarity float64    `json:"similarity"`
	Reason     string     `json:"reason,omitempty"`
}

// MatchNames compares declared first and last names with a verified full
// name using the default threshold.
func MatchNames(first, last, verifiedFull string) NameMatch {
	return matchNames(first, last, verifiedFull, DefaultSimilarityThreshold)
}

// matchNames looks up each declared name in the verified name's tokens.
// Both names found passes; the order is reversed when the last name appears
// before the first. Otherwise a whole-name similarity at or above threshold
// passes.
func matchNames(first, last, verifiedFull string, threshold float64) NameMatch {
	firstTokens := Tokens(first)
	lastTokens := Tokens(last)
	verified := Tokens(verifiedFull)

	declaredFull := strings.Join(append(append([]string{}, firstTokens...), lastTokens...), " ")
	res := NameMatch{Similarity: Similarity(declaredFull, strings.Join(verified, " "))}

	firstAt := indexIn(firstTokens, verified)
	lastAt := indexIn(lastTokens, verified)
	switch {
	case firstAt >= 0 && lastAt >= 0 && firstAt <= lastAt:
		res.Passed, res.Order = true, OrderDeclared
		return res
	case firstAt >= 0 && lastAt >= 0:
		res.Passed, res.Order = true, OrderReversed
		return res
	case res.Similarity >= threshold:
		res.Passed, res.Order = true, OrderSimilarity
		return res
	}

	pct := res.Similarity * 100
	switch {
	case firstAt >= 0:
		res.Reason = fmt.Sprintf("name mismatch: last name %q not found in verified name (similarity %.1f%%)", last, pct)
	case lastAt >= 0:
		res.Reason = fmt.Sprintf("name mismatch: first name %q not found in verified name (similarity %.1f%%)", first, pct)
	default:
		res.Reason = fmt.Sprintf("name mismatch: neither %q nor %q match verified name (similarity %.1f%%)", first, last, pct)
	}
	return res
}

// indexIn returns the position in pool matched by the first declared token,
// or -1 unless every declared token matches some pool token.
func indexIn(declared, pool []string) int {
	if len(declared) == 0 {
		return -1
	}
	at := -1
	for i, d := range declared {
		found := -1
		for j, p := range pool {
			if tokenMatch(d, p) {
				found = j
				break
			}
		}
		if found < 0 {
			return -1
		}
		if i == 0 {
			at = found
		}
	}
	return at
}

// tokenMatch accepts equal tokens and containment either way for tokens of
// two or more letters.
func tokenMatch(a, b string) bool {
	if a == b {
		return true
	}
	if min(len([]rune(a)), len([]rune(b))) < 2 {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
