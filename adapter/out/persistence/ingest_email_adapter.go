package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
)

// =============================================================================
// EmailAdapter - Durable Record Store
// =============================================================================

type EmailAdapter struct {
	db *sqlx.DB
}

func NewEmailAdapter(db *sqlx.DB) *EmailAdapter {
	return &EmailAdapter{db: db}
}

var _ out.EmailRepository = (*EmailAdapter)(nil)

// =============================================================================
// Entity
// =============================================================================

type emailEntity struct {
	ID              int64          `db:"id"`
	TenantID        string         `db:"tenant_id"`
	ExternalID      string         `db:"external_id"`
	ThreadID        string         `db:"thread_id"`
	Subject         sql.NullString `db:"subject"`
	Sender          sql.NullString `db:"sender"`
	Recipients      pq.StringArray `db:"recipients"`
	CC              pq.StringArray `db:"cc"`
	BCC             pq.StringArray `db:"bcc"`
	Body            sql.NullString `db:"body"`
	Labels          pq.StringArray `db:"labels"`
	ReceivedAt      time.Time      `db:"received_at"`
	ImportanceScore float64        `db:"importance_score"`
	IsPromotion     bool           `db:"is_promotion"`
	CreatedAt       time.Time      `db:"created_at"`
}

func (e *emailEntity) toDomain() *domain.EmailRecord {
	record := &domain.EmailRecord{
		ID:              e.ID,
		TenantID:        e.TenantID,
		ExternalID:      e.ExternalID,
		ThreadID:        e.ThreadID,
		Recipients:      []string(e.Recipients),
		CC:              []string(e.CC),
		BCC:             []string(e.BCC),
		Labels:          []string(e.Labels),
		Timestamp:       e.ReceivedAt,
		ImportanceScore: e.ImportanceScore,
		IsPromotion:     e.IsPromotion,
		CreatedAt:       e.CreatedAt,
	}
	if e.Subject.Valid {
		record.Subject = e.Subject.String
	}
	if e.Sender.Valid {
		record.Sender = e.Sender.String
	}
	if e.Body.Valid {
		record.Body = e.Body.String
	}
	return record
}

// =============================================================================
// Queries
// =============================================================================

func (a *EmailAdapter) GetExistingExternalIDs(ctx context.Context, tenantID string, externalIDs []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(externalIDs))
	if len(externalIDs) == 0 {
		return existing, nil
	}

	query := `SELECT external_id FROM emails WHERE tenant_id = $1 AND external_id = ANY($2)`
	var found []string
	if err := a.db.SelectContext(ctx, &found, query, tenantID, pq.Array(externalIDs)); err != nil {
		return nil, apperr.DatabaseError("lookup existing emails", err)
	}
	for _, id := range found {
		existing[id] = struct{}{}
	}
	return existing, nil
}

func (a *EmailAdapter) Insert(ctx context.Context, record *domain.EmailRecord) error {
	query := `
		INSERT INTO emails (
			tenant_id, external_id, thread_id, subject, sender,
			recipients, cc, bcc, body, labels,
			received_at, importance_score, is_promotion
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at
	`
	err := a.db.QueryRowContext(ctx, query,
		record.TenantID,
		record.ExternalID,
		record.ThreadID,
		toNullableString(record.Subject),
		toNullableString(record.Sender),
		pq.Array(record.Recipients),
		pq.Array(record.CC),
		pq.Array(record.BCC),
		toNullableString(record.Body),
		pq.Array(record.Labels),
		record.Timestamp,
		record.ImportanceScore,
		record.IsPromotion,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return out.ErrDuplicateEmail
		}
		return apperr.DatabaseError("insert email", err)
	}
	return nil
}

func (a *EmailAdapter) GetByExternalID(ctx context.Context, tenantID, externalID string) (*domain.EmailRecord, error) {
	var entity emailEntity
	query := `SELECT * FROM emails WHERE tenant_id = $1 AND external_id = $2`
	if err := a.db.GetContext(ctx, &entity, query, tenantID, externalID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.DatabaseError("get email by external id", err)
	}
	return entity.toDomain(), nil
}

func (a *EmailAdapter) ListRange(ctx context.Context, tenantID string, since time.Time, limit int) ([]*domain.EmailRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var entities []emailEntity
	query := `
		SELECT * FROM emails
		WHERE tenant_id = $1 AND received_at >= $2
		ORDER BY received_at DESC
		LIMIT $3
	`
	if err := a.db.SelectContext(ctx, &entities, query, tenantID, since, limit); err != nil {
		return nil, apperr.DatabaseError("list emails", err)
	}

	records := make([]*domain.EmailRecord, len(entities))
	for i := range entities {
		records[i] = entities[i].toDomain()
	}
	return records, nil
}
