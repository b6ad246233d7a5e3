package kb

import (
	"context"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/dqbank/pkg/models"
)

// Persister is the injected persistence capability. The core is
// format-agnostic: a JSON document and a relational table are equally valid
// as long as Load after Save round-trips every record field exactly.
type Persister interface {
	Load(ctx context.Context) (*Bank, error)
	Save(ctx context.Context, bank *Bank) error
}

// Service composes the knowledge bank operations: evaluation
// (fingerprint → match → rank) and decision recording (apply → persist).
// Evaluation is pure and side-effect free; only SubmitDecision mutates.
type Service struct {
	bank      *Bank
	persister Persister
	generator models.CandidateGenerator // nil when no generator is configured
	writer    *Writer
	ranker    *Ranker
	threshold float64
	now       func() time.Time
}

// ServiceOptions configures a Service. Generator may be nil; evaluation of
// novel issues then fails with NoSuggestionsError.
type ServiceOptions struct {
	Bank      *Bank
	Persister Persister
	Generator models.CandidateGenerator
	Policy    Policy
	Ranker    RankerOptions
	Threshold float64
}

// NewService creates a Service over an already-loaded bank.
func NewService(opts ServiceOptions) *Service {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultMatchThreshold
	}
	return &Service{
		bank:      opts.Bank,
		persister: opts.Persister,
		generator: opts.Generator,
		writer:    NewWriter(opts.Policy),
		ranker:    NewRanker(opts.Ranker),
		threshold: threshold,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Bank returns the service's live bank.
func (s *Service) Bank() *Bank { return s.bank }

// EvaluateIssue fingerprints the issue, matches it against stored
// precedents, and returns ranked suggestions. For novel issues the
// configured candidate generator is consulted; its failure is reported
// as-is so the caller can distinguish generator trouble from "nothing to
// suggest".
func (s *Service) EvaluateIssue(ctx context.Context, issue models.Issue) ([]models.RankedSuggestion, error) {
	fp, err := Fingerprint(issue)
	if err != nil {
		return nil, err
	}

	matches := FindMatches(fp, s.bank, s.threshold)

	var candidates []models.CandidateFix
	if len(matches) == 0 && s.generator != nil {
		candidates, err = s.generator.Generate(ctx, issue)
		if err != nil {
			return nil, err
		}
		slog.Info("generated candidates for novel issue",
			"pattern_key", fp.PatternKey,
			"provider", s.generator.Name(),
			"count", len(candidates),
		)
	}

	return s.ranker.Rank(fp, matches, candidates, s.now())
}

// DecisionResult reports the outcome of SubmitDecision. Durable is false
// when the in-memory statistics were updated but the save failed; the
// caller can then retry Persist without re-submitting (and double-counting)
// the decision.
type DecisionResult struct {
	Record  models.PrecedentRecord
	Durable bool
}

// SubmitDecision records a human decision and persists the updated bank.
// The apply step never fails on persistence issues; only the save step can
// return a PersistenceError.
func (s *Service) SubmitDecision(ctx context.Context, req OutcomeRequest) (DecisionResult, error) {
	rec, err := s.writer.RecordOutcome(ctx, s.bank, req)
	if err != nil {
		return DecisionResult{}, err
	}

	if err := s.Persist(ctx); err != nil {
		return DecisionResult{Record: rec, Durable: false}, err
	}
	return DecisionResult{Record: rec, Durable: true}, nil
}

// Persist saves the current bank through the injected persister. Safe to
// retry after a failed SubmitDecision.
func (s *Service) Persist(ctx context.Context) error {
	if err := s.persister.Save(ctx, s.bank); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}
