// Package models contains shared data models used across the dqbank codebase.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Issue is a detected data-quality issue as reported by an upstream
// detection pipeline. Description is the only hard requirement when no
// structured type information is available.
type Issue struct {
	Description   string `json:"description"`
	ColumnName    string `json:"column_name,omitempty"`
	ViolationType string `json:"violation_type,omitempty"`
	DQDimension   string `json:"dq_dimension,omitempty"`
	SourceSystem  string `json:"source_system,omitempty"`
	Severity      string `json:"severity,omitempty"`
}

// IssueFingerprint is the normalized, comparable representation of an Issue.
// Constructed fresh per evaluation; never persisted itself — only PatternKey
// survives, as part of a Pattern.
type IssueFingerprint struct {
	PatternKey        string            `json:"pattern_key"`
	DescriptionTokens []string          `json:"description_tokens"` // sorted, deduplicated
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Digest returns a stable hash over the pattern key and token set, suitable
// as a cache key component. Two issues with the same digest always evaluate
// identically against the same bank state.
func (fp IssueFingerprint) Digest() string {
	h := sha256.New()
	h.Write([]byte(fp.PatternKey))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(fp.DescriptionTokens, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}

// HasToken reports whether the fingerprint's token set contains tok.
// Tokens are sorted, but sets are small enough that a linear scan is fine.
func (fp IssueFingerprint) HasToken(tok string) bool {
	for _, t := range fp.DescriptionTokens {
		if t == tok {
			return true
		}
	}
	return false
}
