package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"github.com/Epistemic-Technology/research-library/internal/config"
	"github.com/Epistemic-Technology/research-library/internal/logger"
	"github.com/Epistemic-Technology/research-library/internal/storage"
)

const embeddingsProvider = "embeddings"

// Embedder turns text into vectors. The same model must be used at ingest
// and at query time.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedAll(ctx context.Context, texts []string, onBatch func(batch int, vectors [][]float32) error) error
	Model() string
}

// EmbeddingClient calls an OpenAI-compatible embeddings endpoint in fixed-size
// batches. Batches are paced by limiter; 429 responses are retried.
type EmbeddingClient struct {
	client    openai.Client
	model     string
	batchSize int
	limiter   *rate.Limiter
	retry     RetryPolicy
	log       logger.Logger
}

var _ Embedder = (*EmbeddingClient)(nil)

// NewEmbeddingClient builds a client from cfg
func NewEmbeddingClient(cfg config.EmbeddingConfig, log logger.Logger) (*EmbeddingClient, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigError{Msg: "Set OPENAI_API_KEY for embeddings."}
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are handled by RateLimitedCall
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = config.DefaultEmbedModel
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	limit := rate.Inf
	if cfg.BatchDelay > 0 {
		limit = rate.Every(cfg.BatchDelay)
	}

	return &EmbeddingClient{
		client:    openai.NewClient(opts...),
		model:     model,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(limit, 1),
		retry:     DefaultRetryPolicy,
		log:       log.With("embeddings"),
	}, nil
}

// Model returns the embedding model name
func (c *EmbeddingClient) Model() string {
	return c.model
}

// EmbedBatch makes one embeddings request. Vectors are returned in input
// order regardless of the order the API lists them in.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := RateLimitedCall(ctx, c.retry, c.log, func(ctx context.Context) (*openai.CreateEmbeddingResponse, error) {
		resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
			Model: openai.EmbeddingModel(c.model),
		})
		if err != nil {
			return nil, toUpstreamError(embeddingsProvider, err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings API returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		idx := int(d.Index)
		if idx < 0 || idx >= len(texts) {
			return nil, fmt.Errorf("embeddings API returned out of range index %d", idx)
		}
		if vectors[idx] != nil {
			return nil, fmt.Errorf("embeddings API returned duplicate index %d", idx)
		}
		vectors[idx] = storage.Float64To32(d.Embedding)
	}
	return vectors, nil
}

// Embed embeds a single query string
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedAll embeds texts in batches, handing each batch to onBatch before the
// next request is made. The first failure aborts the run; batches already
// delivered are not rolled back. Batch numbers start at 1.
func (c *EmbeddingClient) EmbedAll(ctx context.Context, texts []string, onBatch func(batch int, vectors [][]float32) error) error {
	batch := 0
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		batch++

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		vectors, err := c.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("failed to embed batch %d: %w", batch, err)
		}
		c.log.Debug("Embedded batch %d (%d texts)", batch, len(vectors))

		if onBatch != nil {
			if err := onBatch(batch, vectors); err != nil {
				return err
			}
		}
	}
	return nil
}
