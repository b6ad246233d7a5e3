package models

import (
	"time"

	"github.com/google/uuid"
)

// Decision is a human verdict on a suggested fix.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	// DecisionModify rejects the original fix and records the modified
	// action as a new sibling fix under the same pattern.
	DecisionModify Decision = "modify"
)

// Valid reports whether d is one of the known decision values.
func (d Decision) Valid() bool {
	switch d {
	case DecisionApprove, DecisionReject, DecisionModify:
		return true
	}
	return false
}

// DecisionRecord is an immutable audit entry for one submitted decision.
type DecisionRecord struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	TenantID    uuid.UUID `db:"tenant_id"    json:"tenant_id"`
	PatternKey  string    `db:"pattern_key"  json:"pattern_key"`
	FixID       string    `db:"fix_id"       json:"fix_id"`
	Decision    Decision  `db:"decision"     json:"decision"`
	Description string    `db:"description"  json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}
