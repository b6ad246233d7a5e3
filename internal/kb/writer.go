package kb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/dqbank/pkg/models"
)

// OutcomeRequest describes one human decision to record.
//
// FixID empty + Decision approve means "novel fix": a new record is created
// under PatternKey (creating the pattern too if this is the first time the
// issue kind is seen), seeded with one approval. Modify rejects the
// referenced fix and records ActionDescription as a new sibling.
type OutcomeRequest struct {
	PatternKey        string
	FixID             string
	Decision          models.Decision
	ActionDescription string
	ActionTemplate    string
	// IssueDescription becomes the pattern's representative description
	// when the pattern is created by this outcome.
	IssueDescription string
	DQDimension      string
}

// Writer records human decisions into a Bank. The read-modify-write
// sequence for a given pattern key is atomic with respect to other writers
// targeting the same key; writes to different keys never block each other.
type Writer struct {
	policy Policy
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWriter creates a Writer applying the given auto-approval policy.
func NewWriter(policy Policy) *Writer {
	return &Writer{
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
		locks:  make(map[string]*sync.Mutex),
	}
}

// keyLock returns the mutex serializing outcomes for one pattern key.
func (w *Writer) keyLock(patternKey string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.locks[patternKey]
	if !ok {
		l = &sync.Mutex{}
		w.locks[patternKey] = l
	}
	return l
}

// RecordOutcome applies one decision to the bank and returns the affected
// record (for modify, the newly created sibling). The mutation is all or
// nothing: a cancelled context before the apply leaves the bank untouched,
// and the apply itself is a single atomic section. Persistence is the
// caller's concern — RecordOutcome never does I/O.
func (w *Writer) RecordOutcome(ctx context.Context, bank *Bank, req OutcomeRequest) (models.PrecedentRecord, error) {
	if req.PatternKey == "" {
		return models.PrecedentRecord{}, fmt.Errorf("pattern key is required")
	}
	if !req.Decision.Valid() {
		return models.PrecedentRecord{}, fmt.Errorf("invalid decision %q", req.Decision)
	}
	if req.FixID == "" && req.Decision != models.DecisionApprove {
		// Only an approval can create a precedent; there is nothing to
		// reject or modify.
		return models.PrecedentRecord{}, &UnknownFixError{PatternKey: req.PatternKey, FixID: req.FixID}
	}
	if req.FixID == "" && strings.TrimSpace(req.ActionDescription) == "" {
		return models.PrecedentRecord{}, fmt.Errorf("new fix requires an action description")
	}
	if req.Decision == models.DecisionModify && strings.TrimSpace(req.ActionDescription) == "" {
		return models.PrecedentRecord{}, fmt.Errorf("modify requires the modified action description")
	}

	lock := w.keyLock(req.PatternKey)
	lock.Lock()
	defer lock.Unlock()

	// Check cancellation after acquiring the key lock but before touching
	// the bank, so an abandoned call leaves the store in its pre-call
	// state.
	if err := ctx.Err(); err != nil {
		return models.PrecedentRecord{}, err
	}

	now := w.now()
	var (
		result models.PrecedentRecord
		outErr error
	)

	bank.mutate(func(patterns map[string]*models.Pattern) {
		if req.FixID == "" {
			result = w.createFix(patterns, req, now)
			return
		}

		p, ok := patterns[req.PatternKey]
		if !ok {
			outErr = &UnknownFixError{PatternKey: req.PatternKey, FixID: req.FixID}
			return
		}
		idx := -1
		for i := range p.Fixes {
			if p.Fixes[i].FixID == req.FixID {
				idx = i
				break
			}
		}
		if idx < 0 {
			outErr = &UnknownFixError{PatternKey: req.PatternKey, FixID: req.FixID}
			return
		}

		switch req.Decision {
		case models.DecisionApprove:
			p.Fixes[idx].ApprovalCount++
		case models.DecisionReject:
			p.Fixes[idx].RejectionCount++
		case models.DecisionModify:
			// Modify = reject the original + record the modified action as
			// a fresh sibling starting with one approval.
			p.Fixes[idx].RejectionCount++
		}
		w.refresh(&p.Fixes[idx], now)
		result = p.Fixes[idx]

		if req.Decision == models.DecisionModify {
			sibling := models.PrecedentRecord{
				PatternKey:        req.PatternKey,
				FixID:             newFixID(),
				ActionDescription: req.ActionDescription,
				ActionTemplate:    req.ActionTemplate,
				ApprovalCount:     1,
				CreatedAt:         now,
			}
			w.refresh(&sibling, now)
			p.Fixes = append(p.Fixes, sibling)
			result = sibling
		}
	})

	return result, outErr
}

// createFix records an approved novel fix, creating the pattern if needed.
// Called with the bank's write lock held.
func (w *Writer) createFix(patterns map[string]*models.Pattern, req OutcomeRequest, now time.Time) models.PrecedentRecord {
	p, ok := patterns[req.PatternKey]
	if !ok {
		p = &models.Pattern{
			Key:         req.PatternKey,
			Description: req.IssueDescription,
			DQDimension: req.DQDimension,
		}
		patterns[req.PatternKey] = p
	}

	rec := models.PrecedentRecord{
		PatternKey:        req.PatternKey,
		FixID:             newFixID(),
		ActionDescription: req.ActionDescription,
		ActionTemplate:    req.ActionTemplate,
		ApprovalCount:     1,
		CreatedAt:         now,
	}
	w.refresh(&rec, now)
	p.Fixes = append(p.Fixes, rec)
	return rec
}

// refresh recomputes the derived fields after any statistics change:
// success rate from the raw counts, eligibility from the policy, and the
// last-used timestamp.
func (w *Writer) refresh(rec *models.PrecedentRecord, now time.Time) {
	if total := rec.ApprovalCount + rec.RejectionCount; total > 0 {
		rec.SuccessRate = float64(rec.ApprovalCount) / float64(total)
	} else {
		rec.SuccessRate = 0
	}
	rec.AutoApproveEligible = w.policy.Eligible(rec.ApprovalCount, rec.SuccessRate)
	rec.LastUsedAt = now
}

func newFixID() string {
	return "FIX_" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12])
}
