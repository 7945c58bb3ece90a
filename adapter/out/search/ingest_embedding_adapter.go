package search

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"
	"ingest_server/pkg/httputil"
)

// =============================================================================
// OpenAI Embedding Adapter
// =============================================================================

// EmbeddingAdapter implements out.Embedder on the OpenAI embeddings API.
type EmbeddingAdapter struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	timeout    time.Duration
}

// EmbeddingConfig holds embedding API configuration.
type EmbeddingConfig struct {
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// NewEmbeddingAdapter creates a new embedding adapter.
func NewEmbeddingAdapter(cfg *EmbeddingConfig) *EmbeddingAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.HTTPClient = httputil.OpenAIClient()

	model := openai.EmbeddingModel(cfg.Model)
	if cfg.Model == "" {
		model = openai.LargeEmbedding3
	}

	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = 3072
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &EmbeddingAdapter{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		dimensions: dimensions,
		timeout:    timeout,
	}
}

var _ out.Embedder = (*EmbeddingAdapter)(nil)

// Embed computes the vector for one chunk of text.
func (a *EmbeddingAdapter) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: a.model,
		Input: []string{text},
	})
	if err != nil {
		return nil, apperr.ProviderError("openai", "embedding request failed", err)
	}
	if len(resp.Data) == 0 {
		return nil, apperr.ProviderError("openai", "embedding response was empty", nil)
	}

	return resp.Data[0].Embedding, nil
}

// Dimensions returns the configured vector size.
func (a *EmbeddingAdapter) Dimensions() int {
	return a.dimensions
}
