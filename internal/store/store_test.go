package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/dqbank/internal/kb"
	"github.com/kiranshivaraju/dqbank/internal/store"
	"github.com/kiranshivaraju/dqbank/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("dqbank_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

// defaultTenantID returns the UUID of the seeded default tenant.
func defaultTenantID(t *testing.T, s store.Store) uuid.UUID {
	t.Helper()
	tenant, err := s.GetDefaultTenant(context.Background())
	require.NoError(t, err)
	return tenant.ID
}

func newTestAPIKey(tenantID uuid.UUID, prefix string, scopes []string) *models.APIKey {
	now := time.Now().UTC()
	return &models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      "test key",
		KeyHash:   "$2a$10$abcdefghijklmnopqrstuv",
		KeyPrefix: prefix,
		Scopes:    scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// --- Tenant tests ---

func TestGetDefaultTenant(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	tenant, err := s.GetDefaultTenant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "default", tenant.Name)
	assert.NotEqual(t, uuid.Nil, tenant.ID)
}

// --- API key tests ---

func TestAPIKeyLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	key := newTestAPIKey(tenantID, "dqb_abcd", []string{"admin"})
	require.NoError(t, s.CreateAPIKey(ctx, key))

	byPrefix, err := s.GetAPIKeyByPrefix(ctx, "dqb_abcd")
	require.NoError(t, err)
	require.Len(t, byPrefix, 1)
	assert.Equal(t, key.ID, byPrefix[0].ID)
	assert.Equal(t, []string{"admin"}, byPrefix[0].Scopes)

	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))

	listed, err := s.ListAPIKeys(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.NotNil(t, listed[0].LastUsedAt)

	require.NoError(t, s.RevokeAPIKey(ctx, key.ID, tenantID))

	byPrefix, err = s.GetAPIKeyByPrefix(ctx, "dqb_abcd")
	require.NoError(t, err)
	assert.Empty(t, byPrefix, "revoked keys must not resolve by prefix")

	assert.ErrorIs(t, s.RevokeAPIKey(ctx, key.ID, tenantID), store.ErrNotFound)
}

func TestCreateAPIKey_Duplicate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	key := newTestAPIKey(tenantID, "dqb_dupe", nil)
	require.NoError(t, s.CreateAPIKey(ctx, key))
	assert.ErrorIs(t, s.CreateAPIKey(ctx, key), store.ErrDuplicateKey)
}

// --- Decision audit tests ---

func TestDecisions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	tenantID := defaultTenantID(t, s)

	base := time.Now().UTC().Truncate(time.Microsecond)
	records := []*models.DecisionRecord{
		{ID: uuid.New(), TenantID: tenantID, PatternKey: "premium.negative", FixID: "FIX_010", Decision: models.DecisionApprove, CreatedAt: base.Add(-2 * time.Hour)},
		{ID: uuid.New(), TenantID: tenantID, PatternKey: "premium.negative", FixID: "FIX_010", Decision: models.DecisionReject, CreatedAt: base.Add(-time.Hour)},
		{ID: uuid.New(), TenantID: tenantID, PatternKey: "date_of_birth.future_date", FixID: "FIX_001", Decision: models.DecisionApprove, CreatedAt: base},
	}
	for _, r := range records {
		require.NoError(t, s.CreateDecision(ctx, r))
	}

	all, total, err := s.ListDecisions(ctx, store.DecisionFilter{TenantID: tenantID})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, all, 3)
	assert.Equal(t, "date_of_birth.future_date", all[0].PatternKey, "newest first")

	byPattern, total, err := s.ListDecisions(ctx, store.DecisionFilter{
		TenantID: tenantID, PatternKey: "premium.negative",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, byPattern, 2)

	approvals, total, err := s.ListDecisions(ctx, store.DecisionFilter{
		TenantID: tenantID, Decision: models.DecisionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, approvals, 2)

	paged, total, err := s.ListDecisions(ctx, store.DecisionFilter{
		TenantID: tenantID, Page: 2, Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, paged, 1)
}

// --- Knowledge bank persistence tests ---

func testBankFixture(created, used time.Time) *kb.Bank {
	return kb.NewBankFromPatterns([]models.Pattern{
		{
			Key:         "date_of_birth.future_date",
			Description: "date of birth is in the future",
			DQDimension: "Validity",
			Fixes: []models.PrecedentRecord{{
				PatternKey:          "date_of_birth.future_date",
				FixID:               "FIX_001",
				ActionDescription:   "Set to NULL and flag",
				ActionTemplate:      "UPDATE {table} SET date_of_birth = NULL WHERE date_of_birth > CURRENT_DATE()",
				SuccessRate:         5.0 / 6.0,
				ApprovalCount:       5,
				RejectionCount:      1,
				AutoApproveEligible: false,
				CreatedAt:           created,
				LastUsedAt:          used,
			}},
		},
		{
			Key:         "premium.negative",
			Description: "negative premium value",
			Fixes: []models.PrecedentRecord{
				{
					PatternKey:          "premium.negative",
					FixID:               "FIX_010",
					ActionDescription:   "Take absolute value",
					SuccessRate:         1.0,
					ApprovalCount:       4,
					AutoApproveEligible: true,
					CreatedAt:           created,
					LastUsedAt:          used,
				},
				{
					PatternKey:        "premium.negative",
					FixID:             "FIX_011",
					ActionDescription: "Quarantine row",
					SuccessRate:       0.25,
					ApprovalCount:     1,
					RejectionCount:    3,
					CreatedAt:         created,
					LastUsedAt:        used,
				},
			},
		},
	})
}

func TestBankSaveLoad_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	// Postgres stores microseconds; use microsecond-aligned fixtures so
	// round-trip equality is exact.
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	used := time.Date(2026, 7, 2, 17, 45, 1, 123456000, time.UTC)
	original := testBankFixture(created, used)

	require.NoError(t, s.Save(ctx, original))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)

	want := original.Patterns()
	got := loaded.Patterns()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Key, got[i].Key)
		assert.Equal(t, want[i].Description, got[i].Description)
		assert.Equal(t, want[i].DQDimension, got[i].DQDimension)
		require.Len(t, got[i].Fixes, len(want[i].Fixes))
		for j := range want[i].Fixes {
			w, g := want[i].Fixes[j], got[i].Fixes[j]
			assert.Equal(t, w.FixID, g.FixID)
			assert.Equal(t, w.ActionDescription, g.ActionDescription)
			assert.Equal(t, w.ActionTemplate, g.ActionTemplate)
			assert.Equal(t, w.SuccessRate, g.SuccessRate, "success rate must round-trip at full precision")
			assert.Equal(t, w.ApprovalCount, g.ApprovalCount)
			assert.Equal(t, w.RejectionCount, g.RejectionCount)
			assert.Equal(t, w.AutoApproveEligible, g.AutoApproveEligible)
			assert.True(t, w.CreatedAt.Equal(g.CreatedAt), "created_at: want %v, got %v", w.CreatedAt, g.CreatedAt)
			assert.True(t, w.LastUsedAt.Equal(g.LastUsedAt), "last_used_at: want %v, got %v", w.LastUsedAt, g.LastUsedAt)
		}
	}
}

func TestBankSave_ReplacesPrevious(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, s.Save(ctx, testBankFixture(now, now)))

	replacement := kb.NewBankFromPatterns([]models.Pattern{{
		Key:         "claim_amount.negative",
		Description: "claim amount below zero",
		Fixes: []models.PrecedentRecord{{
			PatternKey:        "claim_amount.negative",
			FixID:             "FIX_100",
			ActionDescription: "Reject claim row",
			SuccessRate:       1.0,
			ApprovalCount:     1,
			CreatedAt:         now,
			LastUsedAt:        now,
		}},
	}})
	require.NoError(t, s.Save(ctx, replacement))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
	_, ok := loaded.Pattern("claim_amount.negative")
	assert.True(t, ok)
}
