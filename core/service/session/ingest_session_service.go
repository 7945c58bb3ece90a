// Package session implements resumable full-ingestion import sessions.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
	"ingest_server/pkg/logger"
)

// =============================================================================
// SessionService - Resumable Full-History Import
// =============================================================================

// BatchIngestor is the upsert entry point sessions delegate to.
type BatchIngestor interface {
	UpsertBatch(ctx context.Context, tenantID string, items []domain.IngestItem) (int, error)
}

type SessionService struct {
	sessions out.SessionRepository
	ingest   BatchIngestor
	now      func() time.Time
}

func NewSessionService(sessions out.SessionRepository, ingest BatchIngestor) *SessionService {
	return &SessionService{
		sessions: sessions,
		ingest:   ingest,
		now:      time.Now,
	}
}

// Start opens a new import session for the tenant. Every call creates a
// fresh row; resuming an interrupted import means starting a new session
// from the last surviving checkpoint token.
func (s *SessionService) Start(ctx context.Context, tenantID, providerLabel string, initialCheckpoint *string) (*domain.IngestionSession, error) {
	if tenantID == "" {
		return nil, apperr.MissingField("tenant_id")
	}
	if providerLabel == "" {
		return nil, apperr.MissingField("provider")
	}

	now := s.now().UTC()
	sess := &domain.IngestionSession{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		Provider:        providerLabel,
		Status:          domain.SessionInProgress,
		CheckpointToken: initialCheckpoint,
		ProcessedCount:  0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	logger.WithField("tenant_id", tenantID).
		Info("[SessionService.Start] Session %s opened for provider %s", sess.ID, providerLabel)
	return sess, nil
}

// IngestBatch feeds one page of items into the session. The checkpoint token
// is overwritten only when nextCheckpoint is non-nil, so a caller that has no
// new token keeps the previous resume point. When anything fails after the
// session was loaded, the failure is recorded on the session before the error
// is returned.
func (s *SessionService) IngestBatch(
	ctx context.Context,
	sessionID, tenantID string,
	items []domain.IngestItem,
	nextCheckpoint *string,
	markCompleted bool,
) (*domain.IngestionSession, error) {
	sess, err := s.load(ctx, sessionID, tenantID)
	if err != nil {
		return nil, err
	}

	if !sess.IsInProgress() {
		return nil, apperr.InvalidState(
			"session is " + string(sess.Status) + ", no further batches are accepted")
	}

	inserted, err := s.ingest.UpsertBatch(ctx, sess.TenantID, items)
	sess.ProcessedCount += inserted
	if err != nil {
		return s.recordFailure(ctx, sess, err)
	}

	if nextCheckpoint != nil {
		sess.CheckpointToken = nextCheckpoint
	}
	if markCompleted {
		sess.Status = domain.SessionCompleted
	}
	sess.UpdatedAt = s.now().UTC()

	if err := s.sessions.Update(ctx, sess); err != nil {
		return s.recordFailure(ctx, sess, err)
	}
	return sess, nil
}

// Status returns the session for progress polling.
func (s *SessionService) Status(ctx context.Context, sessionID, tenantID string) (*domain.IngestionSession, error) {
	return s.load(ctx, sessionID, tenantID)
}

// load fetches the session and enforces tenant ownership. A session owned by
// another tenant reads as not found so the endpoint leaks no existence
// information across tenants.
func (s *SessionService) load(ctx context.Context, sessionID, tenantID string) (*domain.IngestionSession, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.TenantID != tenantID {
		return nil, apperr.NotFound("session")
	}
	return sess, nil
}

// recordFailure marks the session failed with the error message, persists it
// best-effort, and hands the original error back alongside the session.
func (s *SessionService) recordFailure(ctx context.Context, sess *domain.IngestionSession, cause error) (*domain.IngestionSession, error) {
	msg := cause.Error()
	sess.Status = domain.SessionFailed
	sess.LastError = &msg
	sess.UpdatedAt = s.now().UTC()

	if updErr := s.sessions.Update(ctx, sess); updErr != nil {
		logger.WithError(updErr).
			WithField("tenant_id", sess.TenantID).
			Error("[SessionService] Failed to record session failure for %s", sess.ID)
	}
	return sess, cause
}
