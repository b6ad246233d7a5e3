package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/dqbank/internal/api/handler"
	"github.com/kiranshivaraju/dqbank/internal/kb"
	"github.com/kiranshivaraju/dqbank/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withURLParam injects a chi route parameter so a handler can be tested
// without a full router.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type bankHolder struct {
	bank *kb.Bank
}

func (b *bankHolder) Bank() *kb.Bank { return b.bank }

func testBankReader() *bankHolder {
	return &bankHolder{bank: kb.NewBankFromPatterns([]models.Pattern{
		{
			Key:         "premium_amount.negative_value",
			Description: "premium amount is negative",
			DQDimension: "validity",
			Fixes: []models.PrecedentRecord{
				{
					PatternKey:          "premium_amount.negative_value",
					FixID:               "FIX_001",
					ActionDescription:   "Set premium_amount to its absolute value",
					SuccessRate:         0.9,
					ApprovalCount:       9,
					RejectionCount:      1,
					AutoApproveEligible: true,
				},
				{
					PatternKey:        "premium_amount.negative_value",
					FixID:             "FIX_002",
					ActionDescription: "Quarantine rows with negative premium",
					SuccessRate:       0.5,
					ApprovalCount:     1,
					RejectionCount:    1,
				},
			},
		},
		{
			Key:         "policy_holder_email.format_check",
			Description: "policy holder email fails format validation",
			DQDimension: "conformity",
			Fixes: []models.PrecedentRecord{
				{
					PatternKey:        "policy_holder_email.format_check",
					FixID:             "FIX_003",
					ActionDescription: "Lowercase and trim the email address",
					SuccessRate:       0.75,
					ApprovalCount:     3,
					RejectionCount:    1,
				},
			},
		},
	})}
}

func TestListPatterns(t *testing.T) {
	h := handler.NewListPatternsHandler(testBankReader())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest("GET", "/api/v1/patterns", nil))

	require.Equal(t, 200, w.Code)

	var body struct {
		Data []struct {
			Key      string `json:"pattern_key"`
			FixCount int    `json:"fix_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)

	// Sorted by key.
	assert.Equal(t, "policy_holder_email.format_check", body.Data[0].Key)
	assert.Equal(t, 1, body.Data[0].FixCount)
	assert.Equal(t, "premium_amount.negative_value", body.Data[1].Key)
	assert.Equal(t, 2, body.Data[1].FixCount)
}

func TestGetPattern(t *testing.T) {
	h := handler.NewGetPatternHandler(testBankReader())

	req := withURLParam(
		authedRequest("GET", "/api/v1/patterns/premium_amount.negative_value", nil),
		"patternKey", "premium_amount.negative_value")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	data := dataField(t, w)
	assert.Equal(t, "premium amount is negative", data["description"])
	fixes := data["fixes"].([]any)
	assert.Len(t, fixes, 2)
}

func TestGetPattern_NotFound(t *testing.T) {
	h := handler.NewGetPatternHandler(testBankReader())

	req := withURLParam(authedRequest("GET", "/api/v1/patterns/nope", nil), "patternKey", "nope")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, 404, w.Code)
	assert.Equal(t, "PATTERN_NOT_FOUND", errField(t, w)["code"])
}

func TestListAutoApproved(t *testing.T) {
	h := handler.NewAutoApprovedHandler(testBankReader())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest("GET", "/api/v1/patterns/auto-approved", nil))

	require.Equal(t, 200, w.Code)

	var body struct {
		Data []models.PrecedentRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "FIX_001", body.Data[0].FixID)
}

func TestListAutoApproved_EmptyIsNotNull(t *testing.T) {
	h := handler.NewAutoApprovedHandler(&bankHolder{bank: kb.NewBank()})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, authedRequest("GET", "/api/v1/patterns/auto-approved", nil))

	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}
