package models

import (
	"context"
	"errors"
)

// Sentinel errors shared by all CandidateGenerator implementations. They
// live next to the interface so providers and callers agree on the error
// contract without importing each other.
var (
	ErrGeneratorUnavailable = errors.New("generator provider unavailable")
	ErrInferenceTimeout     = errors.New("generator inference timeout")
	ErrInvalidGeneration    = errors.New("generator returned invalid response")
)

// CandidateGenerator is the core interface for candidate-fix generation.
// It is consulted only on the novel-issue path, when no precedent matched.
// Never call specific providers directly — always inject this interface.
type CandidateGenerator interface {
	// Generate produces up to a handful of remediation candidates for an
	// issue with no matching precedent, best first.
	Generate(ctx context.Context, issue Issue) ([]CandidateFix, error)
	// Name returns the provider identifier (e.g., "ollama", "mock").
	Name() string
}
