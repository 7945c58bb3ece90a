// Package mailsync orchestrates provider-driven mailbox synchronization:
// bootstrap imports over a time window and cursor-based incremental pulls.
package mailsync

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
)

const (
	DefaultInitialDays  = 30
	DefaultFallbackDays = 7
)

// Ingestor is the upsert entry point sync runs feed fetched pages into.
type Ingestor interface {
	UpsertBatch(ctx context.Context, tenantID string, items []domain.IngestItem) (int, error)
}

// SyncService drives one mail provider. Instantiate once per provider and
// share the state repository between instances.
type SyncService struct {
	provider out.MailProvider
	states   out.SyncStateRepository
	ingest   Ingestor
	locker   out.SyncLocker
	log      zerolog.Logger
	now      func() time.Time
}

func NewSyncService(
	provider out.MailProvider,
	states out.SyncStateRepository,
	ingest Ingestor,
	locker out.SyncLocker,
	log zerolog.Logger,
) *SyncService {
	return &SyncService{
		provider: provider,
		states:   states,
		ingest:   ingest,
		locker:   locker,
		log:      log,
		now:      time.Now,
	}
}

// InitialImport pulls the trailing daysBack window for the mailbox and
// stores the provider's live cursor so later runs can go incremental.
// A non-positive daysBack falls back to 30.
func (s *SyncService) InitialImport(ctx context.Context, tenantID string, creds domain.Credentials, daysBack int) (*domain.SyncResult, error) {
	if tenantID == "" {
		return nil, apperr.MissingField("tenant_id")
	}
	if creds.AccessToken == "" {
		return nil, apperr.ConfigError("no credentials supplied for initial import")
	}
	if daysBack <= 0 {
		daysBack = DefaultInitialDays
	}

	key := domain.SyncStateKey(s.provider.Provider(), creds.Address)
	release, err := s.locker.Acquire(ctx, tenantID+":"+key)
	if err != nil {
		return nil, err
	}
	defer release()

	state, err := s.getOrCreateState(ctx, tenantID, key, creds)
	if err != nil {
		return nil, err
	}

	since := s.now().UTC().AddDate(0, 0, -daysBack)
	return s.runPage(ctx, state, creds, &since, nil)
}

// IncrementalSync pulls everything new since the stored cursor. Explicit
// creds override the stored ones; with neither the run is a config error.
// Without a cursor the run bootstraps from last_synced_at, or from a
// trailing fallbackDays window (default 7) when the state is fresh.
func (s *SyncService) IncrementalSync(ctx context.Context, tenantID string, creds *domain.Credentials, address string, fallbackDays int) (*domain.SyncResult, error) {
	if tenantID == "" {
		return nil, apperr.MissingField("tenant_id")
	}
	if fallbackDays <= 0 {
		fallbackDays = DefaultFallbackDays
	}
	if address == "" && creds != nil {
		address = creds.Address
	}

	key := domain.SyncStateKey(s.provider.Provider(), address)
	release, err := s.locker.Acquire(ctx, tenantID+":"+key)
	if err != nil {
		return nil, err
	}
	defer release()

	state, err := s.findState(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}

	effective := s.resolveCredentials(creds, state)
	if effective == nil {
		return nil, apperr.ConfigError("no credentials supplied and none stored for " + key)
	}

	if state == nil {
		state, err = s.getOrCreateState(ctx, tenantID, key, *effective)
		if err != nil {
			return nil, err
		}
	}

	if state.Cursor != nil {
		cursor := &domain.Cursor{Provider: s.provider.Provider(), Value: *state.Cursor}
		result, err := s.runPage(ctx, state, *effective, nil, cursor)
		if err != nil && apperr.IsCode(err, apperr.CodeSyncRequired) {
			// The provider invalidated the cursor. Clear it so the next
			// run bootstraps by window, and surface the error.
			state.Cursor = nil
			state.UpdatedAt = s.now().UTC()
			if updErr := s.states.Update(ctx, state); updErr != nil {
				s.log.Error().Err(updErr).
					Str("tenant_id", state.TenantID).
					Str("provider_key", state.ProviderKey).
					Msg("failed to clear invalidated cursor")
			}
			return nil, err
		}
		return result, err
	}

	since := s.now().UTC().AddDate(0, 0, -fallbackDays)
	if state.LastSyncedAt != nil {
		since = *state.LastSyncedAt
	}
	return s.runPage(ctx, state, *effective, &since, nil)
}

// runPage fetches one fully drained page, upserts it, and only then moves
// the persisted state forward. A failed upsert leaves the cursor where it
// was so the next run refetches the same page.
func (s *SyncService) runPage(ctx context.Context, state *domain.MailboxSyncState, creds domain.Credentials, since *time.Time, cursor *domain.Cursor) (*domain.SyncResult, error) {
	page, err := s.provider.FetchPage(ctx, creds, since, cursor)
	if err != nil {
		return nil, err
	}

	count, err := s.ingest.UpsertBatch(ctx, state.TenantID, page.Items)
	if err != nil {
		return nil, err
	}

	state.AccessToken = creds.AccessToken
	if creds.RefreshToken != "" {
		state.RefreshToken = creds.RefreshToken
	}
	if page.NextCursor != nil {
		state.Cursor = &page.NextCursor.Value
	}
	if len(page.Items) > 0 && page.LatestTimestamp != nil {
		if state.LastSyncedAt == nil || page.LatestTimestamp.After(*state.LastSyncedAt) {
			ts := *page.LatestTimestamp
			state.LastSyncedAt = &ts
		}
	}
	state.UpdatedAt = s.now().UTC()

	if err := s.states.Update(ctx, state); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("tenant_id", state.TenantID).
		Str("provider_key", state.ProviderKey).
		Int("fetched", len(page.Items)).
		Int("ingested", count).
		Msg("sync page applied")

	return &domain.SyncResult{
		IngestedCount: count,
		Cursor:        state.Cursor,
		LastSyncedAt:  state.LastSyncedAt,
	}, nil
}

// findState looks up the state row, lazily migrating a legacy bare
// "outlook" row to the per-address key format.
func (s *SyncService) findState(ctx context.Context, tenantID, key string) (*domain.MailboxSyncState, error) {
	state, err := s.states.GetByKey(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	if state != nil {
		return state, nil
	}

	if s.provider.Provider() == domain.ProviderOutlook && key != string(domain.ProviderOutlook) {
		legacy, err := s.states.GetByKey(ctx, tenantID, string(domain.ProviderOutlook))
		if err != nil {
			return nil, err
		}
		if legacy != nil {
			legacy.ProviderKey = key
			legacy.UpdatedAt = s.now().UTC()
			if err := s.states.Update(ctx, legacy); err != nil {
				return nil, err
			}
			s.log.Info().
				Str("tenant_id", tenantID).
				Str("provider_key", key).
				Msg("migrated legacy outlook sync state")
			return legacy, nil
		}
	}
	return nil, nil
}

func (s *SyncService) getOrCreateState(ctx context.Context, tenantID, key string, creds domain.Credentials) (*domain.MailboxSyncState, error) {
	state, err := s.findState(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	if state != nil {
		return state, nil
	}

	now := s.now().UTC()
	state = &domain.MailboxSyncState{
		TenantID:     tenantID,
		ProviderKey:  key,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.states.Create(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// resolveCredentials prefers the explicit override, then the stored tokens.
func (s *SyncService) resolveCredentials(override *domain.Credentials, state *domain.MailboxSyncState) *domain.Credentials {
	if override != nil && override.AccessToken != "" {
		return override
	}
	if state != nil && state.AccessToken != "" {
		return &domain.Credentials{
			AccessToken:  state.AccessToken,
			RefreshToken: state.RefreshToken,
		}
	}
	return nil
}
