package mailsync

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
)

// =============================================================================
// Fakes
// =============================================================================

type fetchCall struct {
	creds  domain.Credentials
	since  *time.Time
	cursor *domain.Cursor
}

type fakeProvider struct {
	name  domain.Provider
	page  *out.ProviderPage
	err   error
	calls []fetchCall
}

func (p *fakeProvider) Provider() domain.Provider { return p.name }

func (p *fakeProvider) FetchPage(_ context.Context, creds domain.Credentials, since *time.Time, cursor *domain.Cursor) (*out.ProviderPage, error) {
	p.calls = append(p.calls, fetchCall{creds: creds, since: since, cursor: cursor})
	if p.err != nil {
		return nil, p.err
	}
	if p.page != nil {
		return p.page, nil
	}
	return &out.ProviderPage{}, nil
}

type fakeStateRepo struct {
	states map[string]*domain.MailboxSyncState // tenant + "/" + key
	nextID int64
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[string]*domain.MailboxSyncState)}
}

func (r *fakeStateRepo) GetByKey(_ context.Context, tenantID, providerKey string) (*domain.MailboxSyncState, error) {
	st, ok := r.states[tenantID+"/"+providerKey]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (r *fakeStateRepo) Create(_ context.Context, st *domain.MailboxSyncState) error {
	r.nextID++
	st.ID = r.nextID
	cp := *st
	r.states[st.TenantID+"/"+st.ProviderKey] = &cp
	return nil
}

func (r *fakeStateRepo) Update(_ context.Context, st *domain.MailboxSyncState) error {
	for k, old := range r.states {
		if old.ID == st.ID {
			delete(r.states, k)
			break
		}
	}
	cp := *st
	r.states[st.TenantID+"/"+st.ProviderKey] = &cp
	return nil
}

type countingIngestor struct {
	batches [][]domain.IngestItem
}

func (f *countingIngestor) UpsertBatch(_ context.Context, _ string, items []domain.IngestItem) (int, error) {
	f.batches = append(f.batches, items)
	return len(items), nil
}

type fakeLocker struct {
	keys     []string
	released int
}

func (l *fakeLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.keys = append(l.keys, key)
	return func() { l.released++ }, nil
}

func newService(p *fakeProvider, states *fakeStateRepo, ing Ingestor, locker *fakeLocker) *SyncService {
	svc := NewSyncService(p, states, ing, locker, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func gmailCreds() domain.Credentials {
	return domain.Credentials{AccessToken: "tok", RefreshToken: "ref"}
}

func pageWith(cursor string, latest time.Time, ids ...string) *out.ProviderPage {
	page := &out.ProviderPage{}
	for _, id := range ids {
		page.Items = append(page.Items, domain.IngestItem{ExternalID: id, Timestamp: latest})
	}
	if cursor != "" {
		page.NextCursor = &domain.Cursor{Provider: domain.ProviderGmail, Value: cursor}
	}
	if !latest.IsZero() {
		page.LatestTimestamp = &latest
	}
	return page
}

// =============================================================================
// Tests
// =============================================================================

func TestInitialImportBootstrapsByWindow(t *testing.T) {
	latest := time.Date(2024, 6, 14, 9, 0, 0, 0, time.UTC)
	provider := &fakeProvider{name: domain.ProviderGmail, page: pageWith("h-100", latest, "a", "b")}
	states := newFakeStateRepo()
	ing := &countingIngestor{}
	locker := &fakeLocker{}
	svc := newService(provider, states, ing, locker)

	result, err := svc.InitialImport(context.Background(), "t1", gmailCreds(), 30)
	if err != nil {
		t.Fatalf("initial import: %v", err)
	}

	call := provider.calls[0]
	if call.cursor != nil {
		t.Error("initial import must not pass a cursor")
	}
	if call.since == nil {
		t.Fatal("initial import must pass a since window")
	}
	wantSince := time.Date(2024, 5, 16, 12, 0, 0, 0, time.UTC)
	if !call.since.Equal(wantSince) {
		t.Errorf("since %v, want %v", call.since, wantSince)
	}

	if result.IngestedCount != 2 {
		t.Errorf("ingested %d, want 2", result.IngestedCount)
	}
	st := states.states["t1/gmail"]
	if st == nil {
		t.Fatal("state row not created")
	}
	if st.Cursor == nil || *st.Cursor != "h-100" {
		t.Errorf("cursor %v, want h-100", st.Cursor)
	}
	if st.LastSyncedAt == nil || !st.LastSyncedAt.Equal(latest) {
		t.Errorf("last synced %v, want %v", st.LastSyncedAt, latest)
	}
	if st.AccessToken != "tok" || st.RefreshToken != "ref" {
		t.Error("credentials not stored on the state row")
	}
	if locker.released != 1 {
		t.Error("lock not released")
	}
}

func TestInitialImportRequiresCredentials(t *testing.T) {
	svc := newService(&fakeProvider{name: domain.ProviderGmail}, newFakeStateRepo(), &countingIngestor{}, &fakeLocker{})

	_, err := svc.InitialImport(context.Background(), "t1", domain.Credentials{}, 30)
	if !apperr.IsCode(err, apperr.CodeConfigError) {
		t.Fatalf("err %v, want config error", err)
	}
}

func TestIncrementalSyncUsesStoredCursor(t *testing.T) {
	provider := &fakeProvider{name: domain.ProviderGmail, page: pageWith("h-200", time.Time{})}
	states := newFakeStateRepo()
	cursor := "h-100"
	states.states["t1/gmail"] = &domain.MailboxSyncState{
		ID: 1, TenantID: "t1", ProviderKey: "gmail",
		AccessToken: "stored-tok", Cursor: &cursor,
	}
	svc := newService(provider, states, &countingIngestor{}, &fakeLocker{})

	_, err := svc.IncrementalSync(context.Background(), "t1", nil, "", 7)
	if err != nil {
		t.Fatalf("incremental: %v", err)
	}

	call := provider.calls[0]
	if call.since != nil {
		t.Error("cursor-mode fetch must not pass a since window")
	}
	if call.cursor == nil || call.cursor.Value != "h-100" {
		t.Fatalf("cursor %v, want h-100", call.cursor)
	}
	if call.cursor.Provider != domain.ProviderGmail {
		t.Errorf("cursor tag %s, want gmail", call.cursor.Provider)
	}
	if call.creds.AccessToken != "stored-tok" {
		t.Errorf("creds %q, want stored credentials", call.creds.AccessToken)
	}
}

func TestIncrementalSyncOverrideCredentialsWin(t *testing.T) {
	provider := &fakeProvider{name: domain.ProviderGmail}
	states := newFakeStateRepo()
	states.states["t1/gmail"] = &domain.MailboxSyncState{
		ID: 1, TenantID: "t1", ProviderKey: "gmail", AccessToken: "stored-tok",
	}
	svc := newService(provider, states, &countingIngestor{}, &fakeLocker{})

	override := &domain.Credentials{AccessToken: "fresh-tok"}
	if _, err := svc.IncrementalSync(context.Background(), "t1", override, "", 7); err != nil {
		t.Fatalf("incremental: %v", err)
	}
	if provider.calls[0].creds.AccessToken != "fresh-tok" {
		t.Errorf("creds %q, want the override", provider.calls[0].creds.AccessToken)
	}
}

func TestIncrementalSyncNoCredentialsAnywhere(t *testing.T) {
	svc := newService(&fakeProvider{name: domain.ProviderGmail}, newFakeStateRepo(), &countingIngestor{}, &fakeLocker{})

	_, err := svc.IncrementalSync(context.Background(), "t1", nil, "", 7)
	if !apperr.IsCode(err, apperr.CodeConfigError) {
		t.Fatalf("err %v, want config error", err)
	}
}

func TestIncrementalSyncFallbackWindow(t *testing.T) {
	provider := &fakeProvider{name: domain.ProviderGmail}
	states := newFakeStateRepo()
	states.states["t1/gmail"] = &domain.MailboxSyncState{
		ID: 1, TenantID: "t1", ProviderKey: "gmail", AccessToken: "tok",
	}
	svc := newService(provider, states, &countingIngestor{}, &fakeLocker{})

	if _, err := svc.IncrementalSync(context.Background(), "t1", nil, "", 0); err != nil {
		t.Fatalf("incremental: %v", err)
	}

	call := provider.calls[0]
	if call.since == nil {
		t.Fatal("no cursor means since-mode")
	}
	wantSince := time.Date(2024, 6, 8, 12, 0, 0, 0, time.UTC)
	if !call.since.Equal(wantSince) {
		t.Errorf("since %v, want the default 7 day window ending at now (%v)", call.since, wantSince)
	}
}

func TestIncrementalSyncPrefersLastSyncedAtOverWindow(t *testing.T) {
	provider := &fakeProvider{name: domain.ProviderGmail}
	states := newFakeStateRepo()
	last := time.Date(2024, 6, 13, 3, 0, 0, 0, time.UTC)
	states.states["t1/gmail"] = &domain.MailboxSyncState{
		ID: 1, TenantID: "t1", ProviderKey: "gmail", AccessToken: "tok", LastSyncedAt: &last,
	}
	svc := newService(provider, states, &countingIngestor{}, &fakeLocker{})

	if _, err := svc.IncrementalSync(context.Background(), "t1", nil, "", 7); err != nil {
		t.Fatalf("incremental: %v", err)
	}
	if got := provider.calls[0].since; got == nil || !got.Equal(last) {
		t.Errorf("since %v, want last_synced_at %v", got, last)
	}
}

func TestZeroItemPageLeavesStateUntouched(t *testing.T) {
	provider := &fakeProvider{name: domain.ProviderGmail, page: &out.ProviderPage{}}
	states := newFakeStateRepo()
	cursor := "h-100"
	last := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	states.states["t1/gmail"] = &domain.MailboxSyncState{
		ID: 1, TenantID: "t1", ProviderKey: "gmail",
		AccessToken: "tok", Cursor: &cursor, LastSyncedAt: &last,
	}
	svc := newService(provider, states, &countingIngestor{}, &fakeLocker{})

	result, err := svc.IncrementalSync(context.Background(), "t1", nil, "", 7)
	if err != nil {
		t.Fatalf("incremental: %v", err)
	}
	if result.IngestedCount != 0 {
		t.Errorf("ingested %d, want 0", result.IngestedCount)
	}

	st := states.states["t1/gmail"]
	if st.Cursor == nil || *st.Cursor != "h-100" {
		t.Errorf("cursor %v, want h-100 untouched", st.Cursor)
	}
	if st.LastSyncedAt == nil || !st.LastSyncedAt.Equal(last) {
		t.Errorf("last synced %v, want %v untouched", st.LastSyncedAt, last)
	}
}

func TestNilNextCursorDoesNotClobberStoredCursor(t *testing.T) {
	latest := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	page := pageWith("", latest, "a")
	provider := &fakeProvider{name: domain.ProviderGmail, page: page}
	states := newFakeStateRepo()
	cursor := "h-100"
	states.states["t1/gmail"] = &domain.MailboxSyncState{
		ID: 1, TenantID: "t1", ProviderKey: "gmail", AccessToken: "tok", Cursor: &cursor,
	}
	svc := newService(provider, states, &countingIngestor{}, &fakeLocker{})

	if _, err := svc.IncrementalSync(context.Background(), "t1", nil, "", 7); err != nil {
		t.Fatalf("incremental: %v", err)
	}
	st := states.states["t1/gmail"]
	if st.Cursor == nil || *st.Cursor != "h-100" {
		t.Errorf("cursor %v, nil page cursor must not clobber it", st.Cursor)
	}
	if st.LastSyncedAt == nil || !st.LastSyncedAt.Equal(latest) {
		t.Errorf("last synced %v, want %v", st.LastSyncedAt, latest)
	}
}

func TestSyncRequiredClearsCursor(t *testing.T) {
	provider := &fakeProvider{
		name: domain.ProviderGmail,
		err:  apperr.SyncRequired("gmail", nil),
	}
	states := newFakeStateRepo()
	cursor := "h-stale"
	states.states["t1/gmail"] = &domain.MailboxSyncState{
		ID: 1, TenantID: "t1", ProviderKey: "gmail", AccessToken: "tok", Cursor: &cursor,
	}
	svc := newService(provider, states, &countingIngestor{}, &fakeLocker{})

	_, err := svc.IncrementalSync(context.Background(), "t1", nil, "", 7)
	if !apperr.IsCode(err, apperr.CodeSyncRequired) {
		t.Fatalf("err %v, want sync required to propagate", err)
	}
	if states.states["t1/gmail"].Cursor != nil {
		t.Error("stale cursor must be cleared and persisted")
	}
}

func TestOutlookStateKeyPerAddress(t *testing.T) {
	provider := &fakeProvider{name: domain.ProviderOutlook, page: &out.ProviderPage{}}
	states := newFakeStateRepo()
	ing := &countingIngestor{}
	locker := &fakeLocker{}
	svc := newService(provider, states, ing, locker)

	creds := domain.Credentials{AccessToken: "tok", Address: "User@Example.com"}
	if _, err := svc.InitialImport(context.Background(), "t1", creds, 30); err != nil {
		t.Fatalf("initial import: %v", err)
	}

	if states.states["t1/outlook:user@example.com"] == nil {
		t.Error("outlook state must key per lowercased address")
	}
	if locker.keys[0] != "t1:outlook:user@example.com" {
		t.Errorf("lock key %q, want tenant-scoped address key", locker.keys[0])
	}
}

func TestOutlookLegacyRowMigration(t *testing.T) {
	provider := &fakeProvider{name: domain.ProviderOutlook, page: &out.ProviderPage{}}
	states := newFakeStateRepo()
	cursor := "delta-old"
	states.states["t1/outlook"] = &domain.MailboxSyncState{
		ID: 1, TenantID: "t1", ProviderKey: "outlook", AccessToken: "tok", Cursor: &cursor,
	}
	svc := newService(provider, states, &countingIngestor{}, &fakeLocker{})

	_, err := svc.IncrementalSync(context.Background(), "t1", nil, "user@example.com", 7)
	if err != nil {
		t.Fatalf("incremental: %v", err)
	}

	if states.states["t1/outlook"] != nil {
		t.Error("legacy bare row should be rewritten to the address key")
	}
	migrated := states.states["t1/outlook:user@example.com"]
	if migrated == nil {
		t.Fatal("migrated row missing")
	}
	// Migrated cursor stays in use: the fetch ran in cursor-mode.
	if provider.calls[0].cursor == nil || provider.calls[0].cursor.Value != "delta-old" {
		t.Errorf("cursor %v, want the migrated delta-old", provider.calls[0].cursor)
	}
}
