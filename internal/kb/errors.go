package kb

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks. The typed errors below unwrap to
// these, carrying enough context to render a useful message without the
// caller re-deriving it.
var (
	ErrInvalidIssue  = errors.New("invalid issue")
	ErrUnknownFix    = errors.New("unknown fix")
	ErrNoSuggestions = errors.New("no suggestions available")
	ErrPersistence   = errors.New("persistence failure")
)

// InvalidIssueError is returned when an issue carries neither a usable
// description nor structured type information.
type InvalidIssueError struct {
	Reason string
}

func (e *InvalidIssueError) Error() string {
	return fmt.Sprintf("invalid issue: %s", e.Reason)
}

func (e *InvalidIssueError) Unwrap() error { return ErrInvalidIssue }

// UnknownFixError is returned when a decision references a fix that does
// not exist under the given pattern.
type UnknownFixError struct {
	PatternKey string
	FixID      string
}

func (e *UnknownFixError) Error() string {
	return fmt.Sprintf("unknown fix %q under pattern %q", e.FixID, e.PatternKey)
}

func (e *UnknownFixError) Unwrap() error { return ErrUnknownFix }

// NoSuggestionsError is returned when no precedent matched and no generated
// candidates were supplied. The caller must always have something to show
// a human, so this is a hard failure, not an empty result.
type NoSuggestionsError struct {
	PatternKey  string
	Description string
}

func (e *NoSuggestionsError) Error() string {
	return fmt.Sprintf("no suggestions available for pattern %q", e.PatternKey)
}

func (e *NoSuggestionsError) Unwrap() error { return ErrNoSuggestions }

// PersistenceError wraps a failure from the injected persistence capability.
type PersistenceError struct {
	Op  string // "load" or "save"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }
