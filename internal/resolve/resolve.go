// Package resolve matches spoken names against device, room, and group
// inventories. Voice transcription mangles names constantly, so lookup
// runs through progressively looser stages: exact, substring, ID, then
// fuzzy similarity.
package resolve

import (
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Matching thresholds.
const (
	// FuzzyThreshold is the minimum similarity for a fuzzy match to
	// count as a resolution.
	FuzzyThreshold = 0.6

	// SuggestCutoff is the minimum similarity for a name to appear in
	// "did you mean" suggestions.
	SuggestCutoff = 0.4

	// SuggestLimit caps how many suggestions are offered.
	SuggestLimit = 3
)

// Candidate is one entry in the inventory being searched.
type Candidate struct {
	Name string
	ID   string
}

// Normalize lowercases, trims, and collapses internal whitespace so
// "  Desk   Lamp " and "desk lamp" compare equal.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Find resolves query against candidates, returning the index of the
// match. Stages, in order: exact normalized name, substring in either
// direction, exact ID, then fuzzy similarity above FuzzyThreshold.
// Earlier candidates win ties within the exact, substring, and ID
// stages; the fuzzy stage picks the highest similarity.
func Find(candidates []Candidate, query string) (int, bool) {
	q := Normalize(query)
	if q == "" {
		return 0, false
	}

	for i, c := range candidates {
		if Normalize(c.Name) == q {
			return i, true
		}
	}

	for i, c := range candidates {
		n := Normalize(c.Name)
		if n == "" {
			continue
		}
		if strings.Contains(n, q) || strings.Contains(q, n) {
			return i, true
		}
	}

	for i, c := range candidates {
		if Normalize(c.ID) == q {
			return i, true
		}
	}

	lev := metrics.NewLevenshtein()
	best := -1
	bestScore := FuzzyThreshold
	for i, c := range candidates {
		score := strutil.Similarity(q, Normalize(c.Name), lev)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best >= 0 {
		return best, true
	}
	return 0, false
}

// Suggest returns up to SuggestLimit candidate names similar to query,
// best first. Used to build "did you mean" hints when Find fails.
func Suggest(candidates []Candidate, query string) []string {
	q := Normalize(query)
	lev := metrics.NewLevenshtein()

	type scored struct {
		name  string
		score float64
	}
	var matches []scored
	for _, c := range candidates {
		score := strutil.Similarity(q, Normalize(c.Name), lev)
		if score >= SuggestCutoff {
			matches = append(matches, scored{c.Name, score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	names := make([]string, 0, SuggestLimit)
	for _, m := range matches {
		if len(names) == SuggestLimit {
			break
		}
		names = append(names, m.name)
	}
	return names
}
