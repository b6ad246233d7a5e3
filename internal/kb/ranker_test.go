package kb

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/kiranshivaraju/dqbank/pkg/models"
)

var rankNow = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func defaultRanker() *Ranker {
	return NewRanker(RankerOptions{})
}

func TestRank_CompositeScore(t *testing.T) {
	recent := fixRecord("k", "FIX_A", 9, 1) // success rate 0.9
	recent.LastUsedAt = rankNow.Add(-24 * time.Hour)
	stale := fixRecord("k", "FIX_B", 9, 1)
	stale.LastUsedAt = rankNow.Add(-120 * 24 * time.Hour)

	matches := []models.MatchResult{{
		PatternKey:        "k",
		SimilarityScore:   1.0,
		MatchedPrecedents: []models.PrecedentRecord{stale, recent},
	}}

	out, err := defaultRanker().Rank(models.IssueFingerprint{PatternKey: "k"}, matches, nil, rankNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(out))
	}

	// 0.9*0.6 + 1.0*0.3 + 1.0*0.1 = 0.94 for the recent record,
	// 0.9*0.6 + 1.0*0.3 + 0.0*0.1 = 0.84 for the stale one.
	if out[0].Precedent.FixID != "FIX_A" {
		t.Errorf("recency bonus should rank FIX_A first, got %s", out[0].Precedent.FixID)
	}
	if math.Abs(out[0].CompositeScore-0.94) > 1e-9 {
		t.Errorf("expected composite 0.94, got %v", out[0].CompositeScore)
	}
	if math.Abs(out[1].CompositeScore-0.84) > 1e-9 {
		t.Errorf("expected composite 0.84, got %v", out[1].CompositeScore)
	}
	if out[0].Rank != 1 || out[1].Rank != 2 {
		t.Errorf("ranks must be 1..n, got %d and %d", out[0].Rank, out[1].Rank)
	}
}

func TestRank_TieBreaks(t *testing.T) {
	// Same success rate, same recency → same composite score. Higher
	// approval count wins; equal counts fall back to fix ID order.
	a := fixRecord("k", "FIX_C", 4, 1)
	b := fixRecord("k", "FIX_A", 8, 2)
	c := fixRecord("k", "FIX_B", 8, 2)

	matches := []models.MatchResult{{
		PatternKey:        "k",
		SimilarityScore:   1.0,
		MatchedPrecedents: []models.PrecedentRecord{a, c, b},
	}}

	out, err := defaultRanker().Rank(models.IssueFingerprint{PatternKey: "k"}, matches, nil, rankNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := []string{out[0].Precedent.FixID, out[1].Precedent.FixID, out[2].Precedent.FixID}
	want := []string{"FIX_A", "FIX_B", "FIX_C"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestRank_TakesTopThree(t *testing.T) {
	recs := []models.PrecedentRecord{
		fixRecord("k", "FIX_1", 10, 0),
		fixRecord("k", "FIX_2", 9, 1),
		fixRecord("k", "FIX_3", 8, 2),
		fixRecord("k", "FIX_4", 7, 3),
	}
	matches := []models.MatchResult{{PatternKey: "k", SimilarityScore: 1.0, MatchedPrecedents: recs}}

	out, err := defaultRanker().Rank(models.IssueFingerprint{PatternKey: "k"}, matches, nil, rankNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Errorf("expected max 3 suggestions, got %d", len(out))
	}
}

func TestRank_FlattensTiedTopMatches(t *testing.T) {
	matches := []models.MatchResult{
		{PatternKey: "a", SimilarityScore: 0.9, MatchedPrecedents: []models.PrecedentRecord{fixRecord("a", "FIX_A", 3, 0)}},
		{PatternKey: "b", SimilarityScore: 0.9, MatchedPrecedents: []models.PrecedentRecord{fixRecord("b", "FIX_B", 3, 0)}},
		{PatternKey: "c", SimilarityScore: 0.86, MatchedPrecedents: []models.PrecedentRecord{fixRecord("c", "FIX_C", 3, 0)}},
	}

	out, err := defaultRanker().Rank(models.IssueFingerprint{}, matches, nil, rankNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected only the tied top matches to be flattened, got %d suggestions", len(out))
	}
	for _, s := range out {
		if s.Precedent.FixID == "FIX_C" {
			t.Error("lower-similarity match leaked into the pool")
		}
	}
}

func TestRank_RiskLevels(t *testing.T) {
	tests := []struct {
		rate     float64
		expected models.RiskLevel
	}{
		{rate: 1.0, expected: models.RiskLow},
		{rate: 0.9, expected: models.RiskLow},
		{rate: 0.89, expected: models.RiskMedium},
		{rate: 0.6, expected: models.RiskMedium},
		{rate: 0.59, expected: models.RiskHigh},
		{rate: 0, expected: models.RiskHigh},
	}
	for _, tt := range tests {
		if got := RiskFromSuccessRate(tt.rate); got != tt.expected {
			t.Errorf("rate %v: expected %s, got %s", tt.rate, tt.expected, got)
		}
	}
}

func TestRank_AutoApproveOnlyAtRankOne(t *testing.T) {
	first := fixRecord("k", "FIX_1", 10, 0)
	first.AutoApproveEligible = true
	second := fixRecord("k", "FIX_2", 9, 1)
	second.AutoApproveEligible = true

	matches := []models.MatchResult{{PatternKey: "k", SimilarityScore: 1.0,
		MatchedPrecedents: []models.PrecedentRecord{second, first}}}

	out, err := defaultRanker().Rank(models.IssueFingerprint{}, matches, nil, rankNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out[0].AutoApproveRecommended {
		t.Error("eligible rank-1 suggestion must be auto-approve recommended")
	}
	if out[1].AutoApproveRecommended {
		t.Error("rank-2 suggestion must never be auto-approve recommended")
	}
}

func TestRank_NovelIssueUsesCandidates(t *testing.T) {
	candidates := []models.CandidateFix{
		{Description: "Set negative premiums to NULL", Confidence: 0.7},
		{Description: "Take absolute value of premium", Confidence: 1.4}, // clamped to 1.0
		{Description: "Quarantine affected rows", Confidence: 0.7},
	}

	out, err := defaultRanker().Rank(models.IssueFingerprint{PatternKey: "novel"}, nil, candidates, rankNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 suggestions, got %d", len(out))
	}
	if out[0].CompositeScore != 1.0 {
		t.Errorf("confidence must be clamped to [0,1], got %v", out[0].CompositeScore)
	}
	// Tied confidences order by description.
	if out[1].ActionDescription != "Quarantine affected rows" {
		t.Errorf("tied candidates must order by description, got %q", out[1].ActionDescription)
	}
	for _, s := range out {
		if s.Precedent != nil {
			t.Error("novel suggestions must carry no precedent")
		}
		if s.AutoApproveRecommended {
			t.Error("novel suggestions must never be auto-approve recommended")
		}
	}
}

func TestRank_NoMatchesNoCandidates(t *testing.T) {
	_, err := defaultRanker().Rank(models.IssueFingerprint{PatternKey: "novel"}, nil, nil, rankNow)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, ErrNoSuggestions) {
		t.Errorf("expected ErrNoSuggestions, got %v", err)
	}
	var nse *NoSuggestionsError
	if !errors.As(err, &nse) || nse.PatternKey != "novel" {
		t.Errorf("error must carry the pattern key, got %#v", err)
	}
}
