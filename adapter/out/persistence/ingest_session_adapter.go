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
// SessionAdapter - Full-Ingestion Session Rows
// =============================================================================

type SessionAdapter struct {
	db *sqlx.DB
}

func NewSessionAdapter(db *sqlx.DB) *SessionAdapter {
	return &SessionAdapter{db: db}
}

var _ out.SessionRepository = (*SessionAdapter)(nil)

// =============================================================================
// Entity
// =============================================================================

type sessionEntity struct {
	ID              string         `db:"id"`
	TenantID        string         `db:"tenant_id"`
	Provider        string         `db:"provider"`
	Status          string         `db:"status"`
	CheckpointToken sql.NullString `db:"checkpoint_token"`
	ProcessedCount  int            `db:"processed_count"`
	LastError       sql.NullString `db:"last_error"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (e *sessionEntity) toDomain() *domain.IngestionSession {
	sess := &domain.IngestionSession{
		ID:             e.ID,
		TenantID:       e.TenantID,
		Provider:       e.Provider,
		Status:         domain.SessionStatus(e.Status),
		ProcessedCount: e.ProcessedCount,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
	if e.CheckpointToken.Valid {
		token := e.CheckpointToken.String
		sess.CheckpointToken = &token
	}
	if e.LastError.Valid {
		lastErr := e.LastError.String
		sess.LastError = &lastErr
	}
	return sess
}

// =============================================================================
// CRUD
// =============================================================================

func (a *SessionAdapter) Create(ctx context.Context, sess *domain.IngestionSession) error {
	query := `
		INSERT INTO ingestion_sessions (
			id, tenant_id, provider, status, checkpoint_token, processed_count
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := a.db.QueryRowContext(ctx, query,
		sess.ID,
		sess.TenantID,
		sess.Provider,
		string(sess.Status),
		toNullableStringPtr(sess.CheckpointToken),
		sess.ProcessedCount,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return apperr.DatabaseError("create ingestion session", err)
	}
	return nil
}

func (a *SessionAdapter) GetByID(ctx context.Context, id string) (*domain.IngestionSession, error) {
	var entity sessionEntity
	query := `SELECT * FROM ingestion_sessions WHERE id = $1`
	if err := a.db.GetContext(ctx, &entity, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.DatabaseError("get ingestion session", err)
	}
	return entity.toDomain(), nil
}

func (a *SessionAdapter) Update(ctx context.Context, sess *domain.IngestionSession) error {
	query := `
		UPDATE ingestion_sessions SET
			status = $1,
			checkpoint_token = $2,
			processed_count = $3,
			last_error = $4,
			updated_at = NOW()
		WHERE id = $5
	`
	_, err := a.db.ExecContext(ctx, query,
		string(sess.Status),
		toNullableStringPtr(sess.CheckpointToken),
		sess.ProcessedCount,
		toNullableStringPtr(sess.LastError),
		sess.ID,
	)
	if err != nil {
		return apperr.DatabaseError("update ingestion session", err)
	}
	return nil
}
