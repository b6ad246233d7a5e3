package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	mw "github.com/kiranshivaraju/dqbank/internal/api/middleware"
	"github.com/kiranshivaraju/dqbank/internal/api/response"
	"github.com/kiranshivaraju/dqbank/internal/cache"
	"github.com/kiranshivaraju/dqbank/internal/kb"
	"github.com/kiranshivaraju/dqbank/pkg/models"
)

// Evaluator defines the evaluation interface the handler depends on.
type Evaluator interface {
	EvaluateIssue(ctx context.Context, issue models.Issue) ([]models.RankedSuggestion, error)
}

type evaluateResponse struct {
	PatternKey  string                    `json:"pattern_key"`
	Suggestions []models.RankedSuggestion `json:"suggestions"`
	Cached      bool                      `json:"cached"`
}

// NewEvaluateHandler returns an http.HandlerFunc for POST /api/v1/evaluate.
// Results are cached per (bank version, fingerprint digest); any decision
// bumps the bank version, so stale suggestions never outlive a change to
// the precedents they were ranked from.
func NewEvaluateHandler(svc Evaluator, c cache.Cache, cacheTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := mw.GetTenantID(r); !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		var issue models.Issue
		if err := json.NewDecoder(r.Body).Decode(&issue); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		fp, err := kb.Fingerprint(issue)
		if err != nil {
			writeEvaluateError(w, err)
			return
		}

		var version int64
		if c != nil {
			version, err = c.BankVersion(r.Context())
			if err == nil {
				if payload, found, cerr := c.GetEvaluation(r.Context(), version, fp.Digest()); cerr == nil && found {
					var suggestions []models.RankedSuggestion
					if json.Unmarshal(payload, &suggestions) == nil {
						response.JSON(w, evaluateResponse{
							PatternKey:  fp.PatternKey,
							Suggestions: suggestions,
							Cached:      true,
						})
						return
					}
				}
			}
		}

		suggestions, err := svc.EvaluateIssue(r.Context(), issue)
		if err != nil {
			writeEvaluateError(w, err)
			return
		}

		if c != nil {
			if payload, merr := json.Marshal(suggestions); merr == nil {
				if cerr := c.SetEvaluation(r.Context(), version, fp.Digest(), payload, cacheTTL); cerr != nil {
					slog.Warn("failed to cache evaluation", "error", cerr)
				}
			}
		}

		response.JSON(w, evaluateResponse{
			PatternKey:  fp.PatternKey,
			Suggestions: suggestions,
			Cached:      false,
		})
	}
}

func writeEvaluateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, kb.ErrInvalidIssue):
		response.Error(w, http.StatusUnprocessableEntity, "INVALID_ISSUE", err.Error(), nil)
	case errors.Is(err, kb.ErrNoSuggestions):
		response.Error(w, http.StatusNotFound, "NO_SUGGESTIONS",
			"No precedent matched and no candidates could be generated", nil)
	case errors.Is(err, models.ErrGeneratorUnavailable):
		response.Error(w, http.StatusBadGateway, "GENERATOR_UNAVAILABLE",
			"The candidate generator is not available", nil)
	case errors.Is(err, models.ErrInferenceTimeout):
		response.Error(w, http.StatusGatewayTimeout, "GENERATOR_TIMEOUT",
			"Candidate generation took too long and was cancelled", nil)
	case errors.Is(err, models.ErrInvalidGeneration):
		response.Error(w, http.StatusBadGateway, "GENERATOR_INVALID_RESPONSE",
			"The candidate generator returned an unusable response", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
