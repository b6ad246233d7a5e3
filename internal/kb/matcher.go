package kb

import (
	"sort"

	"github.com/kiranshivaraju/dqbank/pkg/models"
)

// DefaultMatchThreshold is the minimum Jaccard similarity for a fuzzy
// pattern match. Exposed as configuration; this is the reference default.
const DefaultMatchThreshold = 0.85

// FindMatches compares a fingerprint against every pattern in the bank and
// returns matches above threshold, best first.
//
// An exact pattern-key hit short-circuits with similarity 1.0 regardless of
// token overlap: it represents a precise reuse, not approximate similarity.
// Otherwise patterns are scored by Jaccard similarity between the issue's
// token set and each pattern's representative description tokens; ties are
// broken by pattern key so repeated runs order identically. An empty result
// is not an error — it signals a novel issue.
func FindMatches(fp models.IssueFingerprint, bank *Bank, threshold float64) []models.MatchResult {
	if p, ok := bank.Pattern(fp.PatternKey); ok && len(p.Fixes) > 0 {
		return []models.MatchResult{{
			PatternKey:        p.Key,
			SimilarityScore:   1.0,
			MatchedPrecedents: p.Fixes,
		}}
	}

	var matches []models.MatchResult
	for _, p := range bank.Patterns() {
		if len(p.Fixes) == 0 {
			// Defensive: patterns always carry at least one fix once an
			// outcome is recorded, but an empty one must never rank.
			continue
		}
		score := Jaccard(fp.DescriptionTokens, Tokenize(p.Description))
		if score >= threshold {
			matches = append(matches, models.MatchResult{
				PatternKey:        p.Key,
				SimilarityScore:   score,
				MatchedPrecedents: p.Fixes,
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].SimilarityScore != matches[j].SimilarityScore {
			return matches[i].SimilarityScore > matches[j].SimilarityScore
		}
		return matches[i].PatternKey < matches[j].PatternKey
	})

	return matches
}

// Jaccard computes |A∩B| / |A∪B| over two token sets. Both-empty input is
// defined as 0, never a division by zero.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[t] = true
	}
	union := make(map[string]bool, len(a)+len(b))
	intersection := 0
	for t := range setA {
		union[t] = true
	}
	for _, t := range b {
		if !union[t] {
			union[t] = true
		} else if setA[t] {
			intersection++
		}
	}
	return float64(intersection) / float64(len(union))
}
