package kb

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kiranshivaraju/dqbank/pkg/models"
)

const minTokenLen = 3

// reNonAlnum splits free text into candidate tokens. Compiled once at
// package init.
var reNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// stopwords are dropped from description token sets before similarity
// comparison. Deliberately small: issue descriptions are short and
// domain-heavy, so aggressive filtering loses signal.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "has": true, "have": true, "are": true, "was": true,
	"were": true, "been": true, "its": true, "not": true, "but": true,
	"from": true, "into": true, "all": true, "any": true, "some": true,
}

// Fingerprint derives the normalized, comparable representation of an
// issue. Deterministic: the same input always yields the same pattern key
// and token set.
//
// When both violation type and column name are present the pattern key is
// "column.violation" lower-cased; otherwise it is a stable hash of the
// sorted description token set, so identical descriptions collapse to the
// same key regardless of instance.
func Fingerprint(issue models.Issue) (models.IssueFingerprint, error) {
	desc := strings.TrimSpace(issue.Description)
	col := normalizeKeyPart(issue.ColumnName)
	vio := normalizeKeyPart(issue.ViolationType)
	structured := col != "" && vio != ""

	if desc == "" && !structured {
		return models.IssueFingerprint{}, &InvalidIssueError{
			Reason: "description is empty and no violation_type/column_name supplied",
		}
	}

	tokens := Tokenize(desc)

	var key string
	if structured {
		key = col + "." + vio
	} else if len(tokens) > 0 {
		key = hashKey(tokens)
	} else {
		// Description exists but tokenized to nothing (all stopwords or
		// short tokens); hash the normalized text itself so distinct
		// descriptions still get distinct keys.
		key = hashKey([]string{strings.ToLower(desc)})
	}

	fp := models.IssueFingerprint{
		PatternKey:        key,
		DescriptionTokens: tokens,
	}

	meta := make(map[string]string)
	if issue.DQDimension != "" {
		meta["dq_dimension"] = issue.DQDimension
	}
	if issue.SourceSystem != "" {
		meta["source_system"] = issue.SourceSystem
	}
	if issue.Severity != "" {
		meta["severity"] = issue.Severity
	}
	if len(meta) > 0 {
		fp.Metadata = meta
	}

	return fp, nil
}

// Tokenize extracts the sorted, deduplicated token set from free text:
// lower-cased, split on non-alphanumerics, stopwords and tokens shorter
// than three characters dropped.
func Tokenize(text string) []string {
	seen := make(map[string]bool)
	for _, tok := range reNonAlnum.Split(strings.ToLower(text), -1) {
		if len(tok) < minTokenLen || stopwords[tok] {
			continue
		}
		seen[tok] = true
	}
	tokens := make([]string, 0, len(seen))
	for tok := range seen {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

// hashKey computes a stable SHA-256 key over the sorted token set.
func hashKey(tokens []string) string {
	h := sha256.Sum256([]byte(strings.Join(tokens, "\x00")))
	return fmt.Sprintf("%x", h)
}

func normalizeKeyPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}
