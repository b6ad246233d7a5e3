package kb

import (
	"sort"
	"time"

	"github.com/kiranshivaraju/dqbank/pkg/models"
)

// Reference defaults for ranking. All are configuration; see config.
const (
	DefaultWeightSuccess    = 0.6
	DefaultWeightSimilarity = 0.3
	DefaultWeightRecency    = 0.1
	DefaultRecencyWindow    = 90 * 24 * time.Hour
	DefaultMaxSuggestions   = 3
)

// Ranker scores and orders candidate fixes. The zero value is unusable;
// construct with NewRanker.
type Ranker struct {
	weightSuccess    float64
	weightSimilarity float64
	weightRecency    float64
	recencyWindow    time.Duration
	maxResults       int
}

// RankerOptions tunes the composite score. Zero fields fall back to the
// reference defaults.
type RankerOptions struct {
	WeightSuccess    float64
	WeightSimilarity float64
	WeightRecency    float64
	RecencyWindow    time.Duration
	MaxResults       int
}

// NewRanker creates a Ranker with the given options.
func NewRanker(opts RankerOptions) *Ranker {
	r := &Ranker{
		weightSuccess:    opts.WeightSuccess,
		weightSimilarity: opts.WeightSimilarity,
		weightRecency:    opts.WeightRecency,
		recencyWindow:    opts.RecencyWindow,
		maxResults:       opts.MaxResults,
	}
	if r.weightSuccess == 0 && r.weightSimilarity == 0 && r.weightRecency == 0 {
		r.weightSuccess = DefaultWeightSuccess
		r.weightSimilarity = DefaultWeightSimilarity
		r.weightRecency = DefaultWeightRecency
	}
	if r.recencyWindow == 0 {
		r.recencyWindow = DefaultRecencyWindow
	}
	if r.maxResults == 0 {
		r.maxResults = DefaultMaxSuggestions
	}
	return r
}

// Rank orders precedents from the top-scoring matches by composite score:
//
//	success_rate*wS + similarity*wSim + recency_bonus*wR
//
// where recency_bonus is 1.0 when the fix was last used within the recency
// window of now, else 0. Ties break by approval count then fix ID, so
// repeated runs are byte-identical.
//
// When matches is empty the issue is novel: candidates supplied by an
// external generator are wrapped instead, scored by their confidence, never
// auto-approve recommended. With neither matches nor candidates the caller
// has nothing to show a human and Rank fails with NoSuggestionsError.
func (r *Ranker) Rank(fp models.IssueFingerprint, matches []models.MatchResult, candidates []models.CandidateFix, now time.Time) ([]models.RankedSuggestion, error) {
	if len(matches) > 0 {
		return r.rankPrecedents(matches, now), nil
	}
	if len(candidates) > 0 {
		return r.rankCandidates(candidates), nil
	}
	return nil, &NoSuggestionsError{PatternKey: fp.PatternKey}
}

func (r *Ranker) rankPrecedents(matches []models.MatchResult, now time.Time) []models.RankedSuggestion {
	// All matches tied at the top similarity are flattened, not just the
	// first; FindMatches already ordered ties by pattern key.
	top := matches[0].SimilarityScore

	type scored struct {
		record models.PrecedentRecord
		score  float64
	}
	var pool []scored
	for _, m := range matches {
		if m.SimilarityScore != top {
			break
		}
		for _, rec := range m.MatchedPrecedents {
			recency := 0.0
			if now.Sub(rec.LastUsedAt) <= r.recencyWindow {
				recency = 1.0
			}
			score := rec.SuccessRate*r.weightSuccess +
				m.SimilarityScore*r.weightSimilarity +
				recency*r.weightRecency
			pool = append(pool, scored{record: rec, score: score})
		}
	}

	sort.Slice(pool, func(i, j int) bool {
		if pool[i].score != pool[j].score {
			return pool[i].score > pool[j].score
		}
		if pool[i].record.ApprovalCount != pool[j].record.ApprovalCount {
			return pool[i].record.ApprovalCount > pool[j].record.ApprovalCount
		}
		return pool[i].record.FixID < pool[j].record.FixID
	})

	if len(pool) > r.maxResults {
		pool = pool[:r.maxResults]
	}

	out := make([]models.RankedSuggestion, 0, len(pool))
	for i, s := range pool {
		rec := s.record
		out = append(out, models.RankedSuggestion{
			Precedent:              &rec,
			ActionDescription:      rec.ActionDescription,
			Rank:                   i + 1,
			CompositeScore:         s.score,
			RiskLevel:              RiskFromSuccessRate(rec.SuccessRate),
			AutoApproveRecommended: rec.AutoApproveEligible && i == 0,
		})
	}
	return out
}

func (r *Ranker) rankCandidates(candidates []models.CandidateFix) []models.RankedSuggestion {
	pool := append([]models.CandidateFix(nil), candidates...)
	for i := range pool {
		pool[i].Confidence = clamp01(pool[i].Confidence)
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].Confidence != pool[j].Confidence {
			return pool[i].Confidence > pool[j].Confidence
		}
		return pool[i].Description < pool[j].Description
	})

	if len(pool) > r.maxResults {
		pool = pool[:r.maxResults]
	}

	out := make([]models.RankedSuggestion, 0, len(pool))
	for i, c := range pool {
		out = append(out, models.RankedSuggestion{
			Precedent:              nil,
			ActionDescription:      c.Description,
			Rank:                   i + 1,
			CompositeScore:         c.Confidence,
			RiskLevel:              RiskFromSuccessRate(c.Confidence),
			AutoApproveRecommended: false, // novel fixes are never auto-approved
		})
	}
	return out
}

// RiskFromSuccessRate maps a historical success rate (or, for novel
// candidates, generator confidence) to a risk band.
func RiskFromSuccessRate(rate float64) models.RiskLevel {
	switch {
	case rate >= 0.9:
		return models.RiskLow
	case rate >= 0.6:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
