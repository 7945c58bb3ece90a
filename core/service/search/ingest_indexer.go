// Package search projects persisted emails into the secondary search index:
// script normalization, fixed-size chunking, embedding, and chunk writes.
package search

import (
	"context"
	"strings"

	"ingest_server/core/domain"
	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
	"ingest_server/pkg/logger"
)

const (
	DefaultChunkSize = 800

	// Embedding input cap in runes, subject prefix included.
	maxEmbedInput = 8000
)

// =============================================================================
// Indexer - Chunk + Embed + Write
// =============================================================================

type Indexer struct {
	index     out.SearchIndex
	embedder  out.Embedder
	chunkSize int
}

func NewIndexer(index out.SearchIndex, embedder out.Embedder, chunkSize int) *Indexer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Indexer{
		index:     index,
		embedder:  embedder,
		chunkSize: chunkSize,
	}
}

// IndexEmail writes one index document per body chunk. An empty body still
// produces a single empty-chunk document so the email stays findable by its
// subject metadata. A chunk write failure fails the whole record; embedding
// failures degrade to a zero vector instead.
func (ix *Indexer) IndexEmail(ctx context.Context, email *domain.EmailRecord) error {
	body := NormalizeScript(email.Body)
	chunks := chunkRunes(body, ix.chunkSize)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	for i, chunk := range chunks {
		embedding := ix.embed(ctx, prepareText(email.Subject, chunk))

		doc := &out.ChunkDocument{
			TenantID:    email.TenantID,
			EmailID:     email.ID,
			ChunkIndex:  i,
			Content:     chunk,
			Embedding:   embedding,
			Subject:     email.Subject,
			Sender:      email.Sender,
			Labels:      email.Labels,
			Timestamp:   email.Timestamp,
			IsPromotion: email.IsPromotion,
		}
		if err := ix.index.IndexDocument(ctx, doc); err != nil {
			return apperr.IndexingError("failed to write chunk document", err)
		}
	}
	return nil
}

// embed returns the chunk vector, or a zero vector of the model dimension
// when the embedding call fails. The document is still written so the email
// remains findable by metadata.
func (ix *Indexer) embed(ctx context.Context, text string) []float32 {
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		logger.WithError(err).Warn("[Indexer] Embedding failed, falling back to zero vector")
		return make([]float32, ix.embedder.Dimensions())
	}
	return vec
}

// prepareText joins subject and chunk for embedding, capped to the model's
// input limit.
func prepareText(subject, chunk string) string {
	var b strings.Builder
	if subject != "" {
		b.WriteString(subject)
		b.WriteString("\n\n")
	}
	b.WriteString(chunk)

	runes := []rune(b.String())
	if len(runes) > maxEmbedInput {
		return string(runes[:maxEmbedInput])
	}
	return b.String()
}

// chunkRunes splits text into fixed-size rune windows. Splitting on runes
// keeps multi-byte scripts intact at chunk boundaries.
func chunkRunes(text string, size int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
