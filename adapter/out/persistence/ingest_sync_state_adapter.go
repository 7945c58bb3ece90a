package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
)

// =============================================================================
// SyncStateAdapter - Per-Mailbox Cursor Rows
// =============================================================================

type SyncStateAdapter struct {
	db *sqlx.DB
}

func NewSyncStateAdapter(db *sqlx.DB) *SyncStateAdapter {
	return &SyncStateAdapter{db: db}
}

var _ out.SyncStateRepository = (*SyncStateAdapter)(nil)

// =============================================================================
// Entity
// =============================================================================

type syncStateEntity struct {
	ID           int64          `db:"id"`
	TenantID     string         `db:"tenant_id"`
	ProviderKey  string         `db:"provider_key"`
	AccessToken  sql.NullString `db:"access_token"`
	RefreshToken sql.NullString `db:"refresh_token"`
	LastSyncedAt sql.NullTime   `db:"last_synced_at"`
	Cursor       sql.NullString `db:"cursor"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (e *syncStateEntity) toDomain() *domain.MailboxSyncState {
	state := &domain.MailboxSyncState{
		ID:          e.ID,
		TenantID:    e.TenantID,
		ProviderKey: e.ProviderKey,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if e.AccessToken.Valid {
		state.AccessToken = e.AccessToken.String
	}
	if e.RefreshToken.Valid {
		state.RefreshToken = e.RefreshToken.String
	}
	if e.LastSyncedAt.Valid {
		ts := e.LastSyncedAt.Time
		state.LastSyncedAt = &ts
	}
	if e.Cursor.Valid {
		cur := e.Cursor.String
		state.Cursor = &cur
	}
	return state
}

// =============================================================================
// CRUD
// =============================================================================

func (a *SyncStateAdapter) GetByKey(ctx context.Context, tenantID, providerKey string) (*domain.MailboxSyncState, error) {
	var entity syncStateEntity
	query := `SELECT * FROM mailbox_sync_states WHERE tenant_id = $1 AND provider_key = $2`
	if err := a.db.GetContext(ctx, &entity, query, tenantID, providerKey); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.DatabaseError("get sync state", err)
	}
	return entity.toDomain(), nil
}

func (a *SyncStateAdapter) Create(ctx context.Context, state *domain.MailboxSyncState) error {
	query := `
		INSERT INTO mailbox_sync_states (
			tenant_id, provider_key, access_token, refresh_token,
			last_synced_at, cursor
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := a.db.QueryRowContext(ctx, query,
		state.TenantID,
		state.ProviderKey,
		toNullableString(state.AccessToken),
		toNullableString(state.RefreshToken),
		toNullableTimePtr(state.LastSyncedAt),
		toNullableStringPtr(state.Cursor),
	).Scan(&state.ID, &state.CreatedAt, &state.UpdatedAt)
	if err != nil {
		return apperr.DatabaseError("create sync state", err)
	}
	return nil
}

// Update rewrites the mutable columns including provider_key, which carries
// the lazy migration of legacy bare-provider rows to per-address keys.
func (a *SyncStateAdapter) Update(ctx context.Context, state *domain.MailboxSyncState) error {
	query := `
		UPDATE mailbox_sync_states SET
			provider_key = $1,
			access_token = $2,
			refresh_token = $3,
			last_synced_at = $4,
			cursor = $5,
			updated_at = NOW()
		WHERE id = $6
	`
	_, err := a.db.ExecContext(ctx, query,
		state.ProviderKey,
		toNullableString(state.AccessToken),
		toNullableString(state.RefreshToken),
		toNullableTimePtr(state.LastSyncedAt),
		toNullableStringPtr(state.Cursor),
		state.ID,
	)
	if err != nil {
		return apperr.DatabaseError("update sync state", err)
	}
	return nil
}

// =============================================================================
// Helper functions
// =============================================================================

func toNullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func toNullableStringPtr(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func toNullableTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
