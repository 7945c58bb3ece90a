package session

import (
	"context"
	"errors"
	"testing"

	"ingest_server/core/domain"
	"ingest_server/pkg/apperr"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeSessionRepo struct {
	sessions  map[string]*domain.IngestionSession
	updateErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*domain.IngestionSession)}
}

func (r *fakeSessionRepo) Create(_ context.Context, sess *domain.IngestionSession) error {
	cp := *sess
	r.sessions[sess.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (*domain.IngestionSession, error) {
	sess, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (r *fakeSessionRepo) Update(_ context.Context, sess *domain.IngestionSession) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	cp := *sess
	r.sessions[sess.ID] = &cp
	return nil
}

// fakeIngestor counts distinct external ids across calls, mimicking the
// idempotent upsert: resubmitted ids add zero.
type fakeIngestor struct {
	seen map[string]struct{}
	err  error
}

func newFakeIngestor() *fakeIngestor {
	return &fakeIngestor{seen: make(map[string]struct{})}
}

func (f *fakeIngestor) UpsertBatch(_ context.Context, _ string, items []domain.IngestItem) (int, error) {
	inserted := 0
	for _, it := range items {
		if _, ok := f.seen[it.ExternalID]; ok {
			continue
		}
		f.seen[it.ExternalID] = struct{}{}
		inserted++
	}
	if f.err != nil {
		return inserted, f.err
	}
	return inserted, nil
}

func items(ids ...string) []domain.IngestItem {
	out := make([]domain.IngestItem, len(ids))
	for i, id := range ids {
		out[i] = domain.IngestItem{ExternalID: id, Subject: "s"}
	}
	return out
}

func strptr(s string) *string { return &s }

// =============================================================================
// Tests
// =============================================================================

func TestStartCreatesInProgressSession(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewSessionService(repo, newFakeIngestor())

	sess, err := svc.Start(context.Background(), "t1", "gmail", strptr("page-0"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sess.Status != domain.SessionInProgress {
		t.Errorf("status %s, want in_progress", sess.Status)
	}
	if sess.ProcessedCount != 0 {
		t.Errorf("processed count %d, want 0", sess.ProcessedCount)
	}
	if sess.CheckpointToken == nil || *sess.CheckpointToken != "page-0" {
		t.Errorf("checkpoint %v, want page-0", sess.CheckpointToken)
	}
	if repo.sessions[sess.ID] == nil {
		t.Error("session not persisted")
	}
}

func TestStartRequiresTenantAndProvider(t *testing.T) {
	svc := NewSessionService(newFakeSessionRepo(), newFakeIngestor())

	if _, err := svc.Start(context.Background(), "", "gmail", nil); err == nil {
		t.Error("missing tenant should fail")
	}
	if _, err := svc.Start(context.Background(), "t1", "", nil); err == nil {
		t.Error("missing provider should fail")
	}
}

// Interrupted import resumed by replaying the checkpointed batch: the replay
// inserts nothing and adds zero to processed_count.
func TestIngestBatchResumeScenario(t *testing.T) {
	repo := newFakeSessionRepo()
	ing := newFakeIngestor()
	svc := NewSessionService(repo, ing)
	ctx := context.Background()

	sess, err := svc.Start(ctx, "t1", "gmail", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	sess, err = svc.IngestBatch(ctx, sess.ID, "t1", items("a", "b", "c"), strptr("page-1"), false)
	if err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if sess.ProcessedCount != 3 {
		t.Fatalf("processed %d, want 3", sess.ProcessedCount)
	}

	// Client crashed after the server committed, resends the same page.
	sess, err = svc.IngestBatch(ctx, sess.ID, "t1", items("a", "b", "c"), strptr("page-1"), false)
	if err != nil {
		t.Fatalf("replayed batch: %v", err)
	}
	if sess.ProcessedCount != 3 {
		t.Fatalf("processed %d after replay, want 3", sess.ProcessedCount)
	}

	sess, err = svc.IngestBatch(ctx, sess.ID, "t1", items("d"), nil, true)
	if err != nil {
		t.Fatalf("final batch: %v", err)
	}
	if sess.Status != domain.SessionCompleted {
		t.Errorf("status %s, want completed", sess.Status)
	}
	if sess.ProcessedCount != 4 {
		t.Errorf("processed %d, want 4", sess.ProcessedCount)
	}
	if sess.CheckpointToken == nil || *sess.CheckpointToken != "page-1" {
		t.Errorf("nil next checkpoint must preserve the previous token, got %v", sess.CheckpointToken)
	}
}

func TestIngestBatchUnknownSession(t *testing.T) {
	svc := NewSessionService(newFakeSessionRepo(), newFakeIngestor())

	_, err := svc.IngestBatch(context.Background(), "nope", "t1", items("a"), nil, false)
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("err %v, want not found", err)
	}
}

func TestIngestBatchTenantMismatchReadsAsNotFound(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewSessionService(repo, newFakeIngestor())
	ctx := context.Background()

	sess, _ := svc.Start(ctx, "t1", "gmail", nil)

	_, err := svc.IngestBatch(ctx, sess.ID, "t2", items("a"), nil, false)
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("err %v, want not found (no existence oracle across tenants)", err)
	}

	if _, err := svc.Status(ctx, sess.ID, "t2"); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("status err %v, want not found", err)
	}
}

func TestIngestBatchTerminalSessionRejectsBatches(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewSessionService(repo, newFakeIngestor())
	ctx := context.Background()

	for _, status := range []domain.SessionStatus{domain.SessionCompleted, domain.SessionFailed} {
		sess, _ := svc.Start(ctx, "t1", "gmail", nil)
		repo.sessions[sess.ID].Status = status

		_, err := svc.IngestBatch(ctx, sess.ID, "t1", items("a"), nil, false)
		if !apperr.IsCode(err, apperr.CodeInvalidState) {
			t.Errorf("status %s: err %v, want invalid state", status, err)
		}
	}
}

func TestIngestBatchFailureRecorded(t *testing.T) {
	repo := newFakeSessionRepo()
	ing := newFakeIngestor()
	svc := NewSessionService(repo, ing)
	ctx := context.Background()

	sess, _ := svc.Start(ctx, "t1", "gmail", nil)

	ing.err = errors.New("index write failed")
	got, err := svc.IngestBatch(ctx, sess.ID, "t1", items("a", "b"), strptr("page-1"), false)
	if err == nil {
		t.Fatal("expected the ingest error to propagate")
	}
	if got == nil {
		t.Fatal("failed session must still be returned")
	}
	if got.Status != domain.SessionFailed {
		t.Errorf("status %s, want failed", got.Status)
	}
	if got.LastError == nil || *got.LastError != "index write failed" {
		t.Errorf("last error %v, want the cause message", got.LastError)
	}
	// Partial inserts before the failure still count.
	if got.ProcessedCount != 2 {
		t.Errorf("processed %d, want 2", got.ProcessedCount)
	}

	persisted := repo.sessions[sess.ID]
	if persisted.Status != domain.SessionFailed || persisted.LastError == nil {
		t.Error("failure must be persisted before returning")
	}
}

func TestStatusReturnsSession(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewSessionService(repo, newFakeIngestor())
	ctx := context.Background()

	sess, _ := svc.Start(ctx, "t1", "outlook", nil)

	got, err := svc.Status(ctx, sess.ID, "t1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.ID != sess.ID || got.Provider != "outlook" {
		t.Errorf("got %+v, want the started session", got)
	}
}
