package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/dqbank/internal/kb"
	"github.com/kiranshivaraju/dqbank/pkg/models"
)

// PostgresStore implements the Store interface and kb.Persister using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tenants ---

func (s *PostgresStore) GetDefaultTenant(ctx context.Context) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM tenants WHERE name = 'default' LIMIT 1`,
	).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default tenant: %w", err)
	}
	return &t, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()
	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()
	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// --- Decision audit trail ---

func (s *PostgresStore) CreateDecision(ctx context.Context, rec *models.DecisionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO decisions (id, tenant_id, pattern_key, fix_id, decision, description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.TenantID, rec.PatternKey, rec.FixID, rec.Decision, rec.Description, rec.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create decision: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDecisions(ctx context.Context, filter DecisionFilter) ([]*models.DecisionRecord, int, error) {
	where := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}

	if filter.PatternKey != "" {
		args = append(args, filter.PatternKey)
		where = append(where, fmt.Sprintf("pattern_key = $%d", len(args)))
	}
	if filter.Decision != "" {
		args = append(args, filter.Decision)
		where = append(where, fmt.Sprintf("decision = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM decisions WHERE `+whereClause, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count decisions: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)

	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, pattern_key, fix_id, decision, description, created_at
		 FROM decisions WHERE `+whereClause+
			fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []*models.DecisionRecord
	for rows.Next() {
		var d models.DecisionRecord
		if err := rows.Scan(&d.ID, &d.TenantID, &d.PatternKey, &d.FixID, &d.Decision, &d.Description, &d.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan decision: %w", err)
		}
		out = append(out, &d)
	}
	return out, total, rows.Err()
}

// --- Knowledge bank persistence (kb.Persister) ---

// Load reads every pattern and fix into an in-memory bank.
func (s *PostgresStore) Load(ctx context.Context) (*kb.Bank, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT pattern_key, description, dq_dimension FROM issue_patterns ORDER BY pattern_key`)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	defer rows.Close()

	byKey := make(map[string]*models.Pattern)
	var order []string
	for rows.Next() {
		var p models.Pattern
		if err := rows.Scan(&p.Key, &p.Description, &p.DQDimension); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		byKey[p.Key] = &p
		order = append(order, p.Key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}

	fixRows, err := s.pool.Query(ctx,
		`SELECT pattern_key, fix_id, action_description, action_template, success_rate,
		        approval_count, rejection_count, auto_approve_eligible, created_at, last_used_at
		 FROM precedent_fixes ORDER BY pattern_key, created_at, fix_id`)
	if err != nil {
		return nil, fmt.Errorf("load fixes: %w", err)
	}
	defer fixRows.Close()

	for fixRows.Next() {
		var f models.PrecedentRecord
		if err := fixRows.Scan(&f.PatternKey, &f.FixID, &f.ActionDescription, &f.ActionTemplate,
			&f.SuccessRate, &f.ApprovalCount, &f.RejectionCount, &f.AutoApproveEligible,
			&f.CreatedAt, &f.LastUsedAt); err != nil {
			return nil, fmt.Errorf("scan fix: %w", err)
		}
		p, ok := byKey[f.PatternKey]
		if !ok {
			// Orphan row; skip rather than fail the whole load.
			continue
		}
		p.Fixes = append(p.Fixes, f)
	}
	if err := fixRows.Err(); err != nil {
		return nil, fmt.Errorf("load fixes: %w", err)
	}

	patterns := make([]models.Pattern, 0, len(order))
	for _, key := range order {
		patterns = append(patterns, *byKey[key])
	}
	return kb.NewBankFromPatterns(patterns), nil
}

// Save replaces the persisted bank with the given snapshot in one
// transaction. Banks are small (hundreds of patterns at most), so a full
// rewrite is simpler and safer than row-level diffing.
func (s *PostgresStore) Save(ctx context.Context, bank *kb.Bank) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM precedent_fixes`); err != nil {
		return fmt.Errorf("clear fixes: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM issue_patterns`); err != nil {
		return fmt.Errorf("clear patterns: %w", err)
	}

	for _, p := range bank.Patterns() {
		if _, err := tx.Exec(ctx,
			`INSERT INTO issue_patterns (pattern_key, description, dq_dimension, updated_at)
			 VALUES ($1, $2, $3, NOW())`,
			p.Key, p.Description, p.DQDimension); err != nil {
			return fmt.Errorf("save pattern %s: %w", p.Key, err)
		}
		for _, f := range p.Fixes {
			if _, err := tx.Exec(ctx,
				`INSERT INTO precedent_fixes
				   (pattern_key, fix_id, action_description, action_template, success_rate,
				    approval_count, rejection_count, auto_approve_eligible, created_at, last_used_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				f.PatternKey, f.FixID, f.ActionDescription, f.ActionTemplate, f.SuccessRate,
				f.ApprovalCount, f.RejectionCount, f.AutoApproveEligible, f.CreatedAt, f.LastUsedAt); err != nil {
				return fmt.Errorf("save fix %s/%s: %w", f.PatternKey, f.FixID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
var _ kb.Persister = (*PostgresStore)(nil)
