package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/dqbank/internal/api/middleware"
	"github.com/kiranshivaraju/dqbank/internal/api/response"
	"github.com/kiranshivaraju/dqbank/internal/cache"
	"github.com/kiranshivaraju/dqbank/internal/kb"
	"github.com/kiranshivaraju/dqbank/internal/store"
	"github.com/kiranshivaraju/dqbank/internal/ticket"
	"github.com/kiranshivaraju/dqbank/pkg/models"
)

// DecisionSubmitter defines the decision-recording interface the handler
// depends on.
type DecisionSubmitter interface {
	SubmitDecision(ctx context.Context, req kb.OutcomeRequest) (kb.DecisionResult, error)
}

// DecisionDeps bundles the collaborators of the decision endpoints. Tickets
// is nil when ticketing is disabled.
type DecisionDeps struct {
	Service DecisionSubmitter
	Store   store.Store
	Cache   cache.Cache
	Tickets ticket.Client
}

type submitDecisionRequest struct {
	PatternKey        string `json:"pattern_key"`
	FixID             string `json:"fix_id"`
	Decision          string `json:"decision"`
	ActionDescription string `json:"action_description"`
	ActionTemplate    string `json:"action_template"`
	IssueDescription  string `json:"issue_description"`
	DQDimension       string `json:"dq_dimension"`
}

type submitDecisionResponse struct {
	Record   models.PrecedentRecord `json:"record"`
	Durable  bool                   `json:"durable"`
	TicketID string                 `json:"ticket_id,omitempty"`
}

// NewSubmitDecisionHandler returns an http.HandlerFunc for POST /api/v1/decisions.
func NewSubmitDecisionHandler(deps DecisionDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		var req submitDecisionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.PatternKey == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "pattern_key is required", nil)
			return
		}
		decision := models.Decision(req.Decision)
		if !decision.Valid() {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"decision must be one of approve, reject, modify", nil)
			return
		}

		result, err := deps.Service.SubmitDecision(r.Context(), kb.OutcomeRequest{
			PatternKey:        req.PatternKey,
			FixID:             req.FixID,
			Decision:          decision,
			ActionDescription: req.ActionDescription,
			ActionTemplate:    req.ActionTemplate,
			IssueDescription:  req.IssueDescription,
			DQDimension:       req.DQDimension,
		})
		if err != nil && !errors.Is(err, kb.ErrPersistence) {
			writeDecisionError(w, err)
			return
		}
		persistenceErr := err

		// The bank changed, so cached evaluations are stale.
		if deps.Cache != nil {
			if _, verr := deps.Cache.BumpBankVersion(r.Context()); verr != nil {
				slog.Warn("failed to bump bank version", "error", verr)
			}
		}

		audit := &models.DecisionRecord{
			ID:          uuid.New(),
			TenantID:    tenantID,
			PatternKey:  result.Record.PatternKey,
			FixID:       result.Record.FixID,
			Decision:    decision,
			Description: req.ActionDescription,
			CreatedAt:   time.Now().UTC(),
		}
		if aerr := deps.Store.CreateDecision(r.Context(), audit); aerr != nil {
			slog.Error("failed to write decision audit entry",
				"pattern_key", audit.PatternKey,
				"fix_id", audit.FixID,
				"error", aerr,
			)
		}

		var ticketID string
		if decision == models.DecisionApprove && deps.Tickets != nil {
			ticketID = fileRemediationTicket(r.Context(), deps.Tickets, result.Record)
		}

		if persistenceErr != nil {
			// The decision is applied in memory but not saved. Report the
			// record so the caller can retry persistence without
			// re-submitting and double-counting.
			response.Error(w, http.StatusServiceUnavailable, "PERSISTENCE_FAILURE",
				"Decision applied but not yet durable; retry later", submitDecisionResponse{
					Record:   result.Record,
					Durable:  false,
					TicketID: ticketID,
				})
			return
		}

		response.Created(w, submitDecisionResponse{
			Record:   result.Record,
			Durable:  true,
			TicketID: ticketID,
		})
	}
}

// fileRemediationTicket files a tracking ticket for an approved fix.
// Best effort: a ticket failure never fails the decision.
func fileRemediationTicket(ctx context.Context, tc ticket.Client, rec models.PrecedentRecord) string {
	t, err := tc.CreateTicket(ctx, ticket.CreateTicketRequest{
		Summary:     fmt.Sprintf("Apply approved fix %s for %s", rec.FixID, rec.PatternKey),
		Description: rec.ActionDescription,
		FixSQL:      rec.ActionTemplate,
	})
	if err != nil {
		slog.Warn("failed to file remediation ticket",
			"pattern_key", rec.PatternKey,
			"fix_id", rec.FixID,
			"error", err,
		)
		return ""
	}
	return t.ID
}

func writeDecisionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, kb.ErrUnknownFix):
		response.Error(w, http.StatusNotFound, "UNKNOWN_FIX", err.Error(), nil)
	case errors.Is(err, kb.ErrInvalidIssue):
		response.Error(w, http.StatusUnprocessableEntity, "INVALID_ISSUE", err.Error(), nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.Error(w, http.StatusRequestTimeout, "REQUEST_CANCELLED",
			"The request was cancelled before the decision was applied", nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

// NewListDecisionsHandler returns an http.HandlerFunc for GET /api/v1/decisions.
func NewListDecisionsHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		q := r.URL.Query()

		filter := store.DecisionFilter{
			TenantID:   tenantID,
			PatternKey: q.Get("pattern_key"),
			Page:       1,
			Limit:      50,
		}

		if d := q.Get("decision"); d != "" {
			decision := models.Decision(d)
			if !decision.Valid() {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"decision must be one of approve, reject, modify", nil)
				return
			}
			filter.Decision = decision
		}

		if s := q.Get("since"); s != "" {
			since, err := time.Parse(time.RFC3339, s)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"since must be a valid RFC3339 timestamp", nil)
				return
			}
			filter.Since = since
		}

		if p := q.Get("page"); p != "" {
			page, err := strconv.Atoi(p)
			if err != nil || page < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "page must be a positive integer", nil)
				return
			}
			filter.Page = page
		}
		if l := q.Get("limit"); l != "" {
			limit, err := strconv.Atoi(l)
			if err != nil || limit < 1 || limit > 200 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be between 1 and 200", nil)
				return
			}
			filter.Limit = limit
		}

		decisions, total, err := s.ListDecisions(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list decisions", nil)
			return
		}

		response.Collection(w, decisions, response.PaginationMeta{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   total,
			HasNext: filter.Page*filter.Limit < total,
		})
	}
}
