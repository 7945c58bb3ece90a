package out

import (
	"context"
	"time"
)

// ChunkDocument is one search-index document, keyed by
// (TenantID, EmailID, ChunkIndex). All chunks of an email share the parent
// metadata so hits can be rendered without a second lookup.
type ChunkDocument struct {
	TenantID    string
	EmailID     int64
	ChunkIndex  int
	Content     string
	Embedding   []float32
	Subject     string
	Sender      string
	Labels      []string
	Timestamp   time.Time
	IsPromotion bool
}

// SearchIndex is the external index service. Writes are idempotent per
// document key so re-indexing after a crash converges.
type SearchIndex interface {
	EnsureIndex(ctx context.Context) error
	IndexDocument(ctx context.Context, doc *ChunkDocument) error
}

// Embedder computes a vector for a chunk of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions is the vector size, used for the zero-vector fallback
	// when embedding fails.
	Dimensions() int
}

// SyncLocker serializes writers of a single sync-state row. Acquire blocks
// until the lock is held or ctx expires; the returned function releases it.
type SyncLocker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}
