package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/dqbank/internal/api/middleware"
	"github.com/kiranshivaraju/dqbank/internal/api/response"
	"github.com/kiranshivaraju/dqbank/internal/kb"
	"github.com/kiranshivaraju/dqbank/pkg/models"
)

// BankReader provides read access to the live bank.
type BankReader interface {
	Bank() *kb.Bank
}

type patternSummary struct {
	Key         string `json:"pattern_key"`
	Description string `json:"description"`
	DQDimension string `json:"dq_dimension,omitempty"`
	FixCount    int    `json:"fix_count"`
}

// NewListPatternsHandler returns an http.HandlerFunc for GET /api/v1/patterns.
func NewListPatternsHandler(svc BankReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := mw.GetTenantID(r); !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		patterns := svc.Bank().Patterns()
		summaries := make([]patternSummary, 0, len(patterns))
		for _, p := range patterns {
			summaries = append(summaries, patternSummary{
				Key:         p.Key,
				Description: p.Description,
				DQDimension: p.DQDimension,
				FixCount:    len(p.Fixes),
			})
		}

		response.JSON(w, summaries)
	}
}

// NewGetPatternHandler returns an http.HandlerFunc for GET /api/v1/patterns/{patternKey}.
func NewGetPatternHandler(svc BankReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := mw.GetTenantID(r); !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		key := chi.URLParam(r, "patternKey")
		pattern, ok := svc.Bank().Pattern(key)
		if !ok {
			response.Error(w, http.StatusNotFound, "PATTERN_NOT_FOUND",
				"No pattern with that key", nil)
			return
		}

		response.JSON(w, pattern)
	}
}

// NewAutoApprovedHandler returns an http.HandlerFunc for
// GET /api/v1/patterns/auto-approved: every fix currently eligible for
// auto-approval, across all patterns.
func NewAutoApprovedHandler(svc BankReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := mw.GetTenantID(r); !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		eligible := svc.Bank().AutoApproveEligible()
		if eligible == nil {
			eligible = []models.PrecedentRecord{}
		}

		response.JSON(w, eligible)
	}
}
