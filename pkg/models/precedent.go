package models

import "time"

// Pattern groups historical fixes for one kind of data-quality issue.
// Description is the representative description used by the fuzzy matching
// path: the description of the first issue ever recorded under this key.
type Pattern struct {
	Key         string            `db:"pattern_key" json:"pattern_key"`
	Description string            `db:"description" json:"description"`
	DQDimension string            `db:"dq_dimension" json:"dq_dimension,omitempty"`
	Fixes       []PrecedentRecord `json:"fixes"`
}

// PrecedentRecord is one historical fix for a pattern, with its outcome
// statistics. SuccessRate is always approval_count / (approval_count +
// rejection_count) once any outcome exists; AutoApproveEligible is derived
// by the auto-approval policy and never set directly.
type PrecedentRecord struct {
	PatternKey          string    `db:"pattern_key"           json:"pattern_key"`
	FixID               string    `db:"fix_id"                json:"fix_id"`
	ActionDescription   string    `db:"action_description"    json:"action_description"`
	ActionTemplate      string    `db:"action_template"       json:"action_template,omitempty"` // opaque SQL/procedure text, never executed here
	SuccessRate         float64   `db:"success_rate"          json:"success_rate"`
	ApprovalCount       int       `db:"approval_count"        json:"approval_count"`
	RejectionCount      int       `db:"rejection_count"       json:"rejection_count"`
	AutoApproveEligible bool      `db:"auto_approve_eligible" json:"auto_approve_eligible"`
	CreatedAt           time.Time `db:"created_at"            json:"created_at"`
	LastUsedAt          time.Time `db:"last_used_at"          json:"last_used_at"`
}

// Outcomes returns the total number of recorded human decisions.
func (r PrecedentRecord) Outcomes() int {
	return r.ApprovalCount + r.RejectionCount
}
