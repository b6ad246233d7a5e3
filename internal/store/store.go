package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/dqbank/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through
// here, except knowledge bank persistence, which goes through kb.Persister
// (PostgresStore implements both).
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	CreateDecision(ctx context.Context, rec *models.DecisionRecord) error
	ListDecisions(ctx context.Context, filter DecisionFilter) ([]*models.DecisionRecord, int, error)
}

// DecisionFilter narrows and paginates the decision audit trail.
type DecisionFilter struct {
	TenantID   uuid.UUID
	PatternKey string
	Decision   models.Decision
	Since      time.Time
	Page       int
	Limit      int
}
