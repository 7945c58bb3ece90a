package out

import (
	"context"

	"ingest_server/core/domain"
)

// SyncStateRepository persists mailbox sync cursors, one row per
// (tenant, provider identity key).
type SyncStateRepository interface {
	// GetByKey returns the state row, or nil when none exists yet.
	GetByKey(ctx context.Context, tenantID, providerKey string) (*domain.MailboxSyncState, error)

	// Create inserts a new state row and assigns its id and timestamps.
	Create(ctx context.Context, state *domain.MailboxSyncState) error

	// Update rewrites the mutable fields (provider key, credentials,
	// cursor, last synced at) of an existing row.
	Update(ctx context.Context, state *domain.MailboxSyncState) error
}

// SessionRepository persists full-ingestion sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.IngestionSession) error

	// GetByID returns the session, or nil when the id is unknown.
	GetByID(ctx context.Context, id string) (*domain.IngestionSession, error)

	Update(ctx context.Context, session *domain.IngestionSession) error
}
