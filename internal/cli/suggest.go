// Package cli provides a lightweight CLI framework with colored help,
// subcommand dispatch, and "did you mean?" suggestions.
package cli

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Suggest returns the best matching candidate for input, or "" if there is
// none. Only candidates that contain the characters of input in order
// (case-insensitively) are considered; the closest of them by edit distance
// is returned if that distance is within max(2, len(input)/3).
func Suggest(input string, candidates []string) string {
	if input == "" {
		return ""
	}

	threshold := max(2, len(input)/3)

	ranks := fuzzy.RankFindNormalizedFold(input, candidates)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)

	best := ranks[0]
	if best.Distance > threshold {
		return ""
	}
	return best.Target
}
