// Package ingest implements the durable email record store operations:
// idempotent batch upsert with synchronous search-index projection.
package ingest

import (
	"context"
	"errors"
	"time"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/logger"
)

// =============================================================================
// IngestService - Idempotent Batch Upsert
// =============================================================================

// EmailIndexer projects a persisted email into the secondary search index.
type EmailIndexer interface {
	IndexEmail(ctx context.Context, email *domain.EmailRecord) error
}

type IngestService struct {
	emailRepo out.EmailRepository
	indexer   EmailIndexer
}

func NewIngestService(emailRepo out.EmailRepository, indexer EmailIndexer) *IngestService {
	return &IngestService{
		emailRepo: emailRepo,
		indexer:   indexer,
	}
}

// UpsertBatch inserts the items not yet present for the tenant and projects
// each inserted record into the search index before counting it. Items
// already stored are skipped without touching the stored record, so
// resubmitting a batch is a no-op. Returns the number of newly inserted
// records; on error the count covers exactly the items fully processed
// before the failure.
func (s *IngestService) UpsertBatch(ctx context.Context, tenantID string, items []domain.IngestItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	// Collapse in-batch duplicates, first occurrence wins. Items without an
	// external id cannot be deduplicated and are dropped.
	seen := make(map[string]struct{}, len(items))
	candidates := make([]domain.IngestItem, 0, len(items))
	for _, it := range items {
		if it.ExternalID == "" {
			continue
		}
		if _, dup := seen[it.ExternalID]; dup {
			continue
		}
		seen[it.ExternalID] = struct{}{}
		candidates = append(candidates, it)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	externalIDs := make([]string, 0, len(candidates))
	for _, it := range candidates {
		externalIDs = append(externalIDs, it.ExternalID)
	}

	existing, err := s.emailRepo.GetExistingExternalIDs(ctx, tenantID, externalIDs)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	inserted := 0
	for i := range candidates {
		it := &candidates[i]
		if _, ok := existing[it.ExternalID]; ok {
			continue
		}

		record := it.ToRecord(tenantID)
		if err := s.emailRepo.Insert(ctx, record); err != nil {
			// Lost a concurrent-insert race for the same external id.
			// The record is durable either way, skip without counting.
			if errors.Is(err, out.ErrDuplicateEmail) {
				continue
			}
			return inserted, err
		}

		if err := s.indexer.IndexEmail(ctx, record); err != nil {
			return inserted, err
		}
		inserted++
	}

	if inserted > 0 {
		logger.WithField("tenant_id", tenantID).
			WithDuration(time.Since(start)).
			Info("[IngestService.UpsertBatch] Inserted %d/%d items", inserted, len(items))
	}
	return inserted, nil
}

// IngestItems is the direct push path with no session bookkeeping.
func (s *IngestService) IngestItems(ctx context.Context, tenantID string, items []domain.IngestItem) (int, error) {
	return s.UpsertBatch(ctx, tenantID, items)
}
