package out

import (
	"context"
	"time"

	"ingest_server/core/domain"
)

// ProviderPage is one fully-drained page from a mail provider: the client
// keeps following continuation tokens until the provider stops returning
// them, so a single FetchPage call may perform many remote requests.
type ProviderPage struct {
	Items           []domain.IngestItem
	NextCursor      *domain.Cursor
	LatestTimestamp *time.Time
}

// MailProvider normalizes a remote mailbox API into a uniform fetch
// contract. Exactly one of since/cursor drives the call: cursor present
// means an incremental fetch relative to the last known position, cursor
// absent means a bulk listing floored at since.
//
// A mid-page failure fails the whole page attempt; partial results are
// never returned as success.
type MailProvider interface {
	Provider() domain.Provider
	FetchPage(ctx context.Context, creds domain.Credentials, since *time.Time, cursor *domain.Cursor) (*ProviderPage, error)
}
