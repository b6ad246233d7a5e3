package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/dqbank/internal/api/middleware"
	"github.com/kiranshivaraju/dqbank/internal/store"
	"github.com/kiranshivaraju/dqbank/internal/ticket"
	"github.com/kiranshivaraju/dqbank/pkg/models"
	"github.com/stretchr/testify/require"
)

// --- stub store ---

type stubStore struct {
	createdKeys      []*models.APIKey
	listedKeys       []*models.APIKey
	revokeErr        error
	decisions        []*models.DecisionRecord
	decisionTotal    int
	createdDecisions []*models.DecisionRecord
	createDecErr     error
}

func (s *stubStore) Ping(_ context.Context) error { return nil }
func (s *stubStore) GetDefaultTenant(_ context.Context) (*models.Tenant, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *stubStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *stubStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.createdKeys = append(s.createdKeys, key)
	return nil
}
func (s *stubStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return s.listedKeys, nil
}
func (s *stubStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error {
	return s.revokeErr
}
func (s *stubStore) CreateDecision(_ context.Context, rec *models.DecisionRecord) error {
	if s.createDecErr != nil {
		return s.createDecErr
	}
	s.createdDecisions = append(s.createdDecisions, rec)
	return nil
}
func (s *stubStore) ListDecisions(_ context.Context, _ store.DecisionFilter) ([]*models.DecisionRecord, int, error) {
	return s.decisions, s.decisionTotal, nil
}

var _ store.Store = (*stubStore)(nil)

// --- fake cache with working evaluation storage ---

type fakeCache struct {
	version     int64
	evaluations map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{evaluations: make(map[string][]byte)}
}

func (c *fakeCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *fakeCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *fakeCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *fakeCache) Ping(_ context.Context) error                                     { return nil }
func (c *fakeCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}
func (c *fakeCache) BankVersion(_ context.Context) (int64, error) { return c.version, nil }
func (c *fakeCache) BumpBankVersion(_ context.Context) (int64, error) {
	c.version++
	return c.version, nil
}
func (c *fakeCache) evalKey(version int64, digest string) string {
	return strconv.FormatInt(version, 10) + ":" + digest
}
func (c *fakeCache) GetEvaluation(_ context.Context, version int64, digest string) ([]byte, bool, error) {
	payload, ok := c.evaluations[c.evalKey(version, digest)]
	return payload, ok, nil
}
func (c *fakeCache) SetEvaluation(_ context.Context, version int64, digest string, payload []byte, _ time.Duration) error {
	c.evaluations[c.evalKey(version, digest)] = payload
	return nil
}

// --- stub ticket client ---

type stubTicketClient struct {
	created []ticket.CreateTicketRequest
	err     error
}

func (c *stubTicketClient) CreateTicket(_ context.Context, req ticket.CreateTicketRequest) (ticket.Ticket, error) {
	if c.err != nil {
		return ticket.Ticket{}, c.err
	}
	c.created = append(c.created, req)
	return ticket.Ticket{ID: "DQ-0001", Status: "OPEN"}, nil
}
func (c *stubTicketClient) GetTicket(_ context.Context, _ string) (ticket.Ticket, error) {
	return ticket.Ticket{}, nil
}
func (c *stubTicketClient) ListTickets(_ context.Context, _ string) ([]ticket.Ticket, error) {
	return nil, nil
}
func (c *stubTicketClient) AddComment(_ context.Context, _ string, _ string) error { return nil }
func (c *stubTicketClient) Ready(_ context.Context) error                          { return nil }

var _ ticket.Client = (*stubTicketClient)(nil)

// --- request helpers ---

var testTenantID = uuid.MustParse("6f1e2a3b-4c5d-4e6f-8a9b-0c1d2e3f4a5b")

func authedRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(mw.SetTenantID(req.Context(), testTenantID))
}

func dataField(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "expected data envelope, got %s", w.Body.String())
	return data
}

func errField(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %s", w.Body.String())
	return errObj
}
