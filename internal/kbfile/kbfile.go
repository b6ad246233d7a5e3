// Package kbfile persists a knowledge bank as a single JSON document on
// local disk. Intended for development and single-analyst deployments; the
// postgres-backed store is the production path.
package kbfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kiranshivaraju/dqbank/internal/kb"
	"github.com/kiranshivaraju/dqbank/pkg/models"
)

// document is the on-disk shape: a metadata block plus a map of patterns.
type document struct {
	Metadata metadata           `json:"metadata"`
	Patterns map[string]pattern `json:"issue_patterns"`
}

type metadata struct {
	LastUpdated   time.Time `json:"last_updated"`
	TotalPatterns int       `json:"total_patterns"`
	TotalFixes    int       `json:"total_fixes"`
}

type pattern struct {
	Description string                   `json:"description"`
	DQDimension string                   `json:"dq_dimension,omitempty"`
	Fixes       []models.PrecedentRecord `json:"historical_fixes"`
}

// Persister implements kb.Persister over a JSON file.
type Persister struct {
	path string
}

// New creates a file persister for the given path. The file does not need
// to exist yet; Load returns an empty bank for a missing file.
func New(path string) *Persister {
	return &Persister{path: path}
}

// Load reads the bank from disk.
func (p *Persister) Load(_ context.Context) (*kb.Bank, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return kb.NewBank(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read knowledge bank file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse knowledge bank file: %w", err)
	}

	patterns := make([]models.Pattern, 0, len(doc.Patterns))
	for key, pat := range doc.Patterns {
		fixes := append([]models.PrecedentRecord(nil), pat.Fixes...)
		for i := range fixes {
			fixes[i].PatternKey = key
		}
		patterns = append(patterns, models.Pattern{
			Key:         key,
			Description: pat.Description,
			DQDimension: pat.DQDimension,
			Fixes:       fixes,
		})
	}
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].Key < patterns[j].Key })

	return kb.NewBankFromPatterns(patterns), nil
}

// Save writes the bank atomically: the document goes to a temp file in the
// same directory and is renamed over the target, so a crash mid-write never
// leaves a truncated bank behind.
func (p *Persister) Save(_ context.Context, bank *kb.Bank) error {
	doc := document{
		Metadata: metadata{
			LastUpdated:   time.Now().UTC(),
			TotalPatterns: bank.Len(),
			TotalFixes:    bank.TotalFixes(),
		},
		Patterns: make(map[string]pattern),
	}
	for _, pat := range bank.Patterns() {
		doc.Patterns[pat.Key] = pattern{
			Description: pat.Description,
			DQDimension: pat.DQDimension,
			Fixes:       pat.Fixes,
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode knowledge bank: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create knowledge bank directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".kb-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write knowledge bank: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		return fmt.Errorf("replace knowledge bank file: %w", err)
	}
	return nil
}

var _ kb.Persister = (*Persister)(nil)
