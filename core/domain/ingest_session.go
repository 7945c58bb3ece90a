package domain

import "time"

// SessionStatus is the state of a full-ingestion session.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

// IngestionSession is one full-backfill attempt. ProcessedCount only ever
// increases, and completed/failed are terminal: a fresh backfill requires a
// new session row.
type IngestionSession struct {
	ID              string         `json:"id"`
	TenantID        string         `json:"tenant_id"`
	Provider        string         `json:"provider"`
	Status          SessionStatus  `json:"status"`
	CheckpointToken *string        `json:"checkpoint_token"`
	ProcessedCount  int            `json:"processed_count"`
	LastError       *string        `json:"last_error"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// IsInProgress reports whether the session still accepts batches.
func (s *IngestionSession) IsInProgress() bool {
	return s.Status == SessionInProgress
}
