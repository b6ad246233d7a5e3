package models

// RiskLevel classifies how risky applying a fix is, derived from its
// historical success rate.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// MatchResult is one pattern that matched an issue fingerprint, with the
// similarity score that produced the match. Ephemeral — computed per query.
type MatchResult struct {
	PatternKey        string            `json:"pattern_key"`
	SimilarityScore   float64           `json:"similarity_score"`
	MatchedPrecedents []PrecedentRecord `json:"matched_precedents"`
}

// RankedSuggestion is one candidate remediation presented to a human.
// Precedent is nil for freshly generated candidates with no history;
// those are never auto-approve recommended.
type RankedSuggestion struct {
	Precedent              *PrecedentRecord `json:"precedent,omitempty"`
	ActionDescription      string           `json:"action_description"`
	Rank                   int              `json:"rank"`
	CompositeScore         float64          `json:"composite_score"`
	RiskLevel              RiskLevel        `json:"risk_level"`
	AutoApproveRecommended bool             `json:"auto_approve_recommended"`
}

// CandidateFix is an externally generated remediation candidate used on the
// novel-issue path, before any precedent exists.
type CandidateFix struct {
	Description string  `json:"description"`
	Template    string  `json:"template,omitempty"`
	Confidence  float64 `json:"confidence"`
}
