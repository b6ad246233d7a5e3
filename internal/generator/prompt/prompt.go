// Package prompt builds inference prompts for candidate-fix generation and
// parses model output back into candidates. All HTTP providers share it so
// the contract with the model stays identical across backends.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/dqbank/pkg/models"
)

const system = `You are a data quality remediation assistant. Given a data quality issue, propose up to 3 remediation actions. Respond ONLY with a JSON array, no prose. Each element must have the fields "description" (imperative sentence), "template" (parameterised SQL or empty string), and "confidence" (number between 0 and 1).`

// System returns the system prompt sent with every generation request.
func System() string { return system }

// Build renders the user prompt for one issue.
func Build(issue models.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Issue: %s\n", issue.Description)
	if issue.ColumnName != "" {
		fmt.Fprintf(&b, "Column: %s\n", issue.ColumnName)
	}
	if issue.ViolationType != "" {
		fmt.Fprintf(&b, "Violation: %s\n", issue.ViolationType)
	}
	if issue.DQDimension != "" {
		fmt.Fprintf(&b, "Dimension: %s\n", issue.DQDimension)
	}
	if issue.SourceSystem != "" {
		fmt.Fprintf(&b, "Source system: %s\n", issue.SourceSystem)
	}
	b.WriteString("Propose remediation actions as a JSON array.")
	return b.String()
}

type rawCandidate struct {
	Description string  `json:"description"`
	Template    string  `json:"template"`
	Confidence  float64 `json:"confidence"`
}

// ParseCandidates decodes model output into candidate fixes. Models often
// wrap JSON in markdown fences, so those are stripped first. Candidates
// without a description are dropped; confidence is clamped to [0,1].
func ParseCandidates(raw string) ([]models.CandidateFix, error) {
	raw = stripFences(raw)

	var parsed []rawCandidate
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidGeneration, err)
	}

	candidates := make([]models.CandidateFix, 0, len(parsed))
	for _, c := range parsed {
		if strings.TrimSpace(c.Description) == "" {
			continue
		}
		conf := c.Confidence
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		candidates = append(candidates, models.CandidateFix{
			Description: strings.TrimSpace(c.Description),
			Template:    strings.TrimSpace(c.Template),
			Confidence:  conf,
		})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no usable candidates in output", models.ErrInvalidGeneration)
	}
	return candidates, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
