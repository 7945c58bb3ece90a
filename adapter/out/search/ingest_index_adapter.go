// Package search implements the external search index and embedding adapters.
package search

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
)

// =============================================================================
// MongoDB Chunk Index Adapter
// =============================================================================

const collectionEmailChunks = "email_chunks"

// ChunkIndexAdapter implements out.SearchIndex on a MongoDB collection.
type ChunkIndexAdapter struct {
	collection *mongo.Collection
}

// NewClient creates a MongoDB client for the search index.
func NewClient(url string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(url).
		SetMaxPoolSize(100).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, nil
}

// NewChunkIndexAdapter creates a new chunk index adapter.
func NewChunkIndexAdapter(db *mongo.Database) *ChunkIndexAdapter {
	return &ChunkIndexAdapter{
		collection: db.Collection(collectionEmailChunks),
	}
}

var _ out.SearchIndex = (*ChunkIndexAdapter)(nil)

// EnsureIndex creates the unique key index for chunk documents.
func (a *ChunkIndexAdapter) EnsureIndex(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "email_id", Value: 1},
				{Key: "chunk_index", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return apperr.IndexingError("failed to create chunk indexes", err)
	}
	return nil
}

// =============================================================================
// Document Model
// =============================================================================

type chunkDocument struct {
	TenantID    string    `bson:"tenant_id"`
	EmailID     int64     `bson:"email_id"`
	ChunkIndex  int       `bson:"chunk_index"`
	Content     string    `bson:"content"`
	Embedding   []float32 `bson:"embedding"`
	Subject     string    `bson:"subject,omitempty"`
	Sender      string    `bson:"sender,omitempty"`
	Labels      []string  `bson:"labels,omitempty"`
	Timestamp   time.Time `bson:"timestamp"`
	IsPromotion bool      `bson:"is_promotion"`
	IndexedAt   time.Time `bson:"indexed_at"`
}

// =============================================================================
// Operations
// =============================================================================

// IndexDocument upserts one chunk by its (tenant_id, email_id, chunk_index)
// key, so replays of an already indexed email converge instead of piling up
// duplicates.
func (a *ChunkIndexAdapter) IndexDocument(ctx context.Context, doc *out.ChunkDocument) error {
	mongoDoc := chunkDocument{
		TenantID:    doc.TenantID,
		EmailID:     doc.EmailID,
		ChunkIndex:  doc.ChunkIndex,
		Content:     doc.Content,
		Embedding:   doc.Embedding,
		Subject:     doc.Subject,
		Sender:      doc.Sender,
		Labels:      doc.Labels,
		Timestamp:   doc.Timestamp,
		IsPromotion: doc.IsPromotion,
		IndexedAt:   time.Now().UTC(),
	}

	filter := bson.M{
		"tenant_id":   doc.TenantID,
		"email_id":    doc.EmailID,
		"chunk_index": doc.ChunkIndex,
	}
	opts := options.Replace().SetUpsert(true)

	if _, err := a.collection.ReplaceOne(ctx, filter, mongoDoc, opts); err != nil {
		return apperr.IndexingError("failed to write chunk document", err)
	}
	return nil
}
