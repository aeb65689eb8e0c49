package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prashantji77/youtube-video-summarizer/internal/chromemdb"
	"github.com/prashantji77/youtube-video-summarizer/internal/config"
	"github.com/prashantji77/youtube-video-summarizer/internal/embedding"
	"github.com/prashantji77/youtube-video-summarizer/internal/llmservice"
	"github.com/prashantji77/youtube-video-summarizer/internal/models"
	"github.com/prashantji77/youtube-video-summarizer/internal/parser"
)

// Pipeline answers a question about one transcript. Each call chunks,
// embeds, indexes, retrieves, assembles and generates in that order and
// keeps nothing afterwards. The embedder and generator are shared and never
// modified, so one Pipeline serves concurrent requests.
type Pipeline struct {
	embedder  embedding.Embedder
	generator llmservice.Generator
	retriever *Retriever
	prompt    PromptBuilder

	chunkSize       int
	chunkOverlap    int
	topK            int
	embedTimeout    time.Duration
	generateTimeout time.Duration
}

func NewPipeline(embedder embedding.Embedder, generator llmservice.Generator, cfg *config.Config) (*Pipeline, error) {
	if embedder == nil || generator == nil {
		return nil, misconfigured(PhaseChunk, errors.New("embedder and generator are required"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, misconfigured(PhaseChunk, err)
	}
	return &Pipeline{
		embedder:        embedder,
		generator:       generator,
		retriever:       NewRetriever(embedder, cfg.EmbedLLM.Timeout()),
		prompt:          NewPromptBuilder(),
		chunkSize:       cfg.RAG.ChunkSize,
		chunkOverlap:    cfg.RAG.ChunkOverlap,
		topK:            cfg.RAG.TopK,
		embedTimeout:    cfg.EmbedLLM.Timeout(),
		generateTimeout: cfg.InferenceLLM.Timeout(),
	}, nil
}

// Answer returns the model's answer to question, grounded in transcript.
func (p *Pipeline) Answer(ctx context.Context, transcript, question string) (string, error) {
	res, err := p.Run(ctx, transcript, question)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// Run is Answer plus the retrieved context, for callers that log or display
// what the answer was based on.
func (p *Pipeline) Run(ctx context.Context, transcript, question string) (*models.PromptResponse, error) {
	logger := log.Ctx(ctx)
	started := time.Now()

	chunks, err := p.Chunk(transcript)
	if err != nil {
		return nil, err
	}

	embedded, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	index, err := chromemdb.NewIndex(ctx, p.embedder.Model(), embedded)
	if err != nil {
		return nil, misconfigured(PhaseIndex, err)
	}
	logger.Debug().
		Int("chunks", len(chunks)).
		Dur("elapsed", time.Since(started)).
		Msg("Indexed transcript")

	retrieved, err := p.retriever.Retrieve(ctx, question, index, p.topK)
	if err != nil {
		return nil, err
	}

	prompt, err := p.prompt.Build(retrieved, question)
	if err != nil {
		return nil, misconfigured(PhaseAssemble, err)
	}

	answer, err := p.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int("chunks", len(chunks)).
		Int("retrieved", len(retrieved.Chunks)).
		Dur("elapsed", time.Since(started)).
		Msg("Answered question")

	return &models.PromptResponse{
		Query:      question,
		Source:     retrieved.Text,
		Content:    answer,
		Retrieved:  retrieved.Chunks,
		ChunkCount: len(chunks),
	}, nil
}

// Chunk splits the transcript with the configured window. A transcript with
// no visible text is rejected before any model is called.
func (p *Pipeline) Chunk(transcript string) ([]models.Chunk, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, noContent(PhaseChunk, errors.New("transcript is empty"))
	}
	chunks, err := parser.Split(transcript, p.chunkSize, p.chunkOverlap)
	if err != nil {
		return nil, misconfigured(PhaseChunk, err)
	}
	if len(chunks) == 0 {
		return nil, noContent(PhaseChunk, errors.New("chunking produced no chunks"))
	}
	return chunks, nil
}

func (p *Pipeline) embedChunks(ctx context.Context, chunks []models.Chunk) ([]models.ChunkEmbedding, error) {
	callCtx, cancel := withTimeout(ctx, p.embedTimeout)
	defer cancel()

	embedded, err := embedding.GenerateEmbedding(callCtx, p.embedder, chunks)
	if err != nil {
		return nil, upstream(PhaseEmbed, err)
	}
	return embedded, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt Prompt) (string, error) {
	callCtx, cancel := withTimeout(ctx, p.generateTimeout)
	defer cancel()

	raw, err := llmservice.GenerateContent(callCtx, p.generator, string(prompt))
	if err != nil {
		return "", upstream(PhaseGenerate, fmt.Errorf("generate answer: %w", err))
	}
	return CleanAnswer(raw), nil
}
