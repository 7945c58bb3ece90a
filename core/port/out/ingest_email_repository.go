// Package out defines outbound ports implemented by adapters.
package out

import (
	"context"
	"errors"
	"time"

	"ingest_server/core/domain"
)

// ErrDuplicateEmail is returned by Insert when the (tenant, external id)
// pair already exists, e.g. when two ingestion calls race on the same item.
var ErrDuplicateEmail = errors.New("email already exists")

// EmailRepository is the durable record store for normalized messages.
// Every query carries the tenant filter; cross-tenant leakage is the primary
// safety invariant of this subsystem.
type EmailRepository interface {
	// GetExistingExternalIDs returns the subset of externalIDs already
	// stored for the tenant.
	GetExistingExternalIDs(ctx context.Context, tenantID string, externalIDs []string) (map[string]struct{}, error)

	// Insert stores a new record and assigns its surrogate id.
	// Returns ErrDuplicateEmail if (tenant, external id) already exists.
	Insert(ctx context.Context, record *domain.EmailRecord) error

	// GetByExternalID is a point lookup; returns nil when absent.
	GetByExternalID(ctx context.Context, tenantID, externalID string) (*domain.EmailRecord, error)

	// ListRange returns records for the tenant with timestamp >= since,
	// newest first, capped at limit.
	ListRange(ctx context.Context, tenantID string, since time.Time, limit int) ([]*domain.EmailRecord, error)
}
