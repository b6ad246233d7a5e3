package kb

// Reference defaults for the auto-approval gate.
const (
	DefaultMinApprovals   = 3
	DefaultMinSuccessRate = 0.85
)

// Policy decides whether a fix may bypass human review. Eligibility is
// always derived from the stored statistics, never set directly, so the
// flag cannot drift from the counts underneath it — and it is not sticky:
// new rejections that drop the success rate revoke it on the next
// recompute.
type Policy struct {
	MinApprovals   int
	MinSuccessRate float64
}

// DefaultPolicy returns the reference auto-approval gate.
func DefaultPolicy() Policy {
	return Policy{MinApprovals: DefaultMinApprovals, MinSuccessRate: DefaultMinSuccessRate}
}

// Eligible reports whether a fix with the given statistics may be applied
// without human review.
func (p Policy) Eligible(approvalCount int, successRate float64) bool {
	return approvalCount >= p.MinApprovals && successRate >= p.MinSuccessRate
}
