// Package kb implements the knowledge bank core: issue fingerprinting,
// precedent matching, fix ranking, auto-approval policy, and outcome
// recording. Matching and ranking are pure computations over an in-memory
// Bank; all mutation goes through the Writer.
package kb

import (
	"sort"
	"sync"

	"github.com/kiranshivaraju/dqbank/pkg/models"
)

// Bank is the in-memory precedent store: a mapping from pattern key to the
// pattern's historical fixes. Safe for concurrent use; readers see a
// consistent snapshot, writers serialize through the Writer.
type Bank struct {
	mu       sync.RWMutex
	patterns map[string]*models.Pattern
}

// NewBank returns an empty Bank.
func NewBank() *Bank {
	return &Bank{patterns: make(map[string]*models.Pattern)}
}

// NewBankFromPatterns builds a Bank from loaded patterns. Fix slices are
// copied so the caller's data is not aliased.
func NewBankFromPatterns(patterns []models.Pattern) *Bank {
	b := NewBank()
	for _, p := range patterns {
		cp := p
		cp.Fixes = append([]models.PrecedentRecord(nil), p.Fixes...)
		b.patterns[p.Key] = &cp
	}
	return b
}

// Pattern returns a copy of the pattern for key, if present.
func (b *Bank) Pattern(key string) (models.Pattern, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.patterns[key]
	if !ok {
		return models.Pattern{}, false
	}
	return copyPattern(p), true
}

// Patterns returns copies of all patterns sorted by key. Stable iteration
// order keeps ranking deterministic when scores tie.
func (b *Bank) Patterns() []models.Pattern {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.Pattern, 0, len(b.patterns))
	for _, key := range b.sortedKeysLocked() {
		out = append(out, copyPattern(b.patterns[key]))
	}
	return out
}

// Len returns the number of patterns.
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.patterns)
}

// TotalFixes returns the number of precedent records across all patterns.
func (b *Bank) TotalFixes() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, p := range b.patterns {
		n += len(p.Fixes)
	}
	return n
}

// AutoApproveEligible returns copies of every fix whose eligibility flag is
// set, sorted by (pattern_key, fix_id).
func (b *Bank) AutoApproveEligible() []models.PrecedentRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []models.PrecedentRecord
	for _, key := range b.sortedKeysLocked() {
		for _, f := range b.patterns[key].Fixes {
			if f.AutoApproveEligible {
				out = append(out, f)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PatternKey != out[j].PatternKey {
			return out[i].PatternKey < out[j].PatternKey
		}
		return out[i].FixID < out[j].FixID
	})
	return out
}

func (b *Bank) sortedKeysLocked() []string {
	keys := make([]string, 0, len(b.patterns))
	for k := range b.patterns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// mutate runs fn with the write lock held. fn receives the live pattern map
// and may modify it freely. Used only by the Writer.
func (b *Bank) mutate(fn func(patterns map[string]*models.Pattern)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.patterns)
}

func copyPattern(p *models.Pattern) models.Pattern {
	cp := *p
	cp.Fixes = append([]models.PrecedentRecord(nil), p.Fixes...)
	return cp
}
