package mock

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/dqbank/pkg/models"
)

// MockGenerator satisfies models.CandidateGenerator for testing and for
// running the server without an inference backend.
type MockGenerator struct {
	Name_        string
	GenerateFunc func(ctx context.Context, issue models.Issue) ([]models.CandidateFix, error)
}

func (m *MockGenerator) Name() string { return m.Name_ }

func (m *MockGenerator) Generate(ctx context.Context, issue models.Issue) ([]models.CandidateFix, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, issue)
	}
	return nil, nil
}

// NewMockGenerator returns a MockGenerator producing deterministic candidates
// derived from the issue fields.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, issue models.Issue) ([]models.CandidateFix, error) {
			subject := issue.ColumnName
			if subject == "" {
				subject = "the affected records"
			}
			return []models.CandidateFix{
				{
					Description: fmt.Sprintf("Quarantine rows where %s fails validation and route them for manual review", subject),
					Template:    "INSERT INTO quarantine SELECT * FROM {table} WHERE {predicate}",
					Confidence:  0.7,
				},
				{
					Description: fmt.Sprintf("Backfill %s from the upstream source system", subject),
					Template:    "UPDATE {table} SET {column} = src.{column} FROM {source} src WHERE {join}",
					Confidence:  0.5,
				},
			}, nil
		},
	}
}

// NewFailingGenerator returns a MockGenerator that always returns the given error.
func NewFailingGenerator(err error) *MockGenerator {
	return &MockGenerator{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ models.Issue) ([]models.CandidateFix, error) {
			return nil, err
		},
	}
}

// NewTimeoutGenerator returns a MockGenerator that blocks until the context
// is cancelled.
func NewTimeoutGenerator() *MockGenerator {
	return &MockGenerator{
		Name_: "mock-timeout",
		GenerateFunc: func(ctx context.Context, _ models.Issue) ([]models.CandidateFix, error) {
			<-ctx.Done()
			return nil, models.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockGenerator implements CandidateGenerator.
var _ models.CandidateGenerator = (*MockGenerator)(nil)
