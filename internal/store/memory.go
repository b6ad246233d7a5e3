package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/dqbank/pkg/models"
)

// MemoryStore is an in-memory Store for the file persistence backend, where
// no relational database is configured. API keys and the decision audit
// trail do not survive a restart; the knowledge bank itself is persisted
// separately through kbfile.
type MemoryStore struct {
	mu        sync.RWMutex
	tenant    models.Tenant
	keys      map[uuid.UUID]*models.APIKey
	decisions []*models.DecisionRecord
}

// NewMemoryStore creates a MemoryStore with a default tenant.
func NewMemoryStore() *MemoryStore {
	now := time.Now().UTC()
	return &MemoryStore{
		tenant: models.Tenant{
			ID:        uuid.New(),
			Name:      "default",
			CreatedAt: now,
			UpdatedAt: now,
		},
		keys: make(map[uuid.UUID]*models.APIKey),
	}
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) GetDefaultTenant(_ context.Context) (*models.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t := m.tenant
	return &t, nil
}

func (m *MemoryStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.APIKey
	for _, k := range m.keys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateAPIKeyLastUsed(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	k.LastUsedAt = &now
	return nil
}

func (m *MemoryStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key.ID]; ok {
		return ErrDuplicateKey
	}
	cp := *key
	m.keys[key.ID] = &cp
	return nil
}

func (m *MemoryStore) ListAPIKeys(_ context.Context, tenantID uuid.UUID) ([]*models.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.APIKey
	for _, k := range m.keys {
		if k.TenantID == tenantID && k.DeletedAt == nil {
			cp := *k
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) RevokeAPIKey(_ context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[id]
	if !ok || k.TenantID != tenantID || k.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	k.DeletedAt = &now
	return nil
}

func (m *MemoryStore) CreateDecision(_ context.Context, rec *models.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.decisions = append(m.decisions, &cp)
	return nil
}

func (m *MemoryStore) ListDecisions(_ context.Context, filter DecisionFilter) ([]*models.DecisionRecord, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*models.DecisionRecord
	for _, d := range m.decisions {
		if filter.TenantID != uuid.Nil && d.TenantID != filter.TenantID {
			continue
		}
		if filter.PatternKey != "" && d.PatternKey != filter.PatternKey {
			continue
		}
		if filter.Decision != "" && d.Decision != filter.Decision {
			continue
		}
		if !filter.Since.IsZero() && d.CreatedAt.Before(filter.Since) {
			continue
		}
		cp := *d
		matched = append(matched, &cp)
	}

	// Newest first, same ordering as the SQL implementation.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	total := len(matched)

	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	start := (page - 1) * limit
	if start >= total {
		return []*models.DecisionRecord{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

var _ Store = (*MemoryStore)(nil)
