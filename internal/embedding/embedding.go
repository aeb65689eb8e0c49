package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/prashantji77/youtube-video-summarizer/internal/config"
	"github.com/prashantji77/youtube-video-summarizer/internal/models"
)

// ErrMalformedEmbedding is returned when the embedder answers with vectors
// that cannot be indexed.
var ErrMalformedEmbedding = errors.New("malformed embedding")

// Embedder is a langchaingo embedder that also names the embedding space it
// produces. Vectors from different models must never be compared.
type Embedder interface {
	embeddings.Embedder
	Model() string
}

// ModelEmbedder attaches a model identity to a langchaingo embedder.
type ModelEmbedder struct {
	embeddings.Embedder
	model string
}

func NewModelEmbedder(e embeddings.Embedder, model string) *ModelEmbedder {
	return &ModelEmbedder{Embedder: e, model: model}
}

func (e *ModelEmbedder) Model() string { return e.model }

// NewEmbedder creates the process-wide embedder for the configured provider.
func NewEmbedder(cfg *config.LLMConfig) (*ModelEmbedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating embedder")

	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama embedding client: %w", err)
		}
		client = llm
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithEmbeddingModel(cfg.Model),
			openai.WithToken(strings.TrimPrefix(cfg.APIKey(), "Bearer ")),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai embedding client: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}

	opts := []embeddings.Option{embeddings.WithStripNewLines(false)}
	if cfg.BatchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(cfg.BatchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return NewModelEmbedder(embedder, cfg.Provider+"/"+cfg.Model), nil
}

// GenerateEmbedding embeds every chunk in one batched call and checks that
// the result can be indexed: one vector per chunk, all of one dimension, none
// of zero length.
func GenerateEmbedding(ctx context.Context, embedder embeddings.Embedder, chunks []models.Chunk) ([]models.ChunkEmbedding, error) {
	if len(chunks) == 0 {
		log.Ctx(ctx).Info().Msg("No chunks to embed")
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks", ErrMalformedEmbedding, len(vectors), len(chunks))
	}

	dim := len(vectors[0])
	chunkEmbeddings := make([]models.ChunkEmbedding, len(chunks))
	for i, chunk := range chunks {
		if err := CheckVector(vectors[i], dim); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", chunk.ChunkID, err)
		}
		chunkEmbeddings[i] = models.ChunkEmbedding{
			Chunk:     chunk,
			Embedding: vectors[i],
		}
	}
	return chunkEmbeddings, nil
}

// CheckVector reports whether v is a usable vector of the given dimension.
func CheckVector(v []float32, dim int) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", ErrMalformedEmbedding)
	}
	if len(v) != dim {
		return fmt.Errorf("%w: dimension %d, expected %d", ErrMalformedEmbedding, len(v), dim)
	}
	var norm float64
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("%w: non-finite component", ErrMalformedEmbedding)
		}
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return fmt.Errorf("%w: zero vector", ErrMalformedEmbedding)
	}
	return nil
}
