package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prashantji77/youtube-video-summarizer/internal/chromemdb"
	"github.com/prashantji77/youtube-video-summarizer/internal/embedding"
	"github.com/prashantji77/youtube-video-summarizer/internal/models"
)

// RetrievedContext holds the top-k chunks for a query, most relevant first,
// and their texts joined into one block.
type RetrievedContext struct {
	Chunks []models.ScoredChunk
	Text   string
}

// Retriever embeds a query and looks it up in an index built by the same
// embedder.
type Retriever struct {
	embedder embedding.Embedder
	timeout  time.Duration
}

// NewRetriever returns a retriever. A zero timeout leaves the query
// embedding bounded only by ctx.
func NewRetriever(embedder embedding.Embedder, timeout time.Duration) *Retriever {
	return &Retriever{embedder: embedder, timeout: timeout}
}

func (r *Retriever) Retrieve(ctx context.Context, query string, index *chromemdb.Index, k int) (RetrievedContext, error) {
	if k <= 0 {
		return RetrievedContext{}, misconfigured(PhaseRetrieve, fmt.Errorf("%w: got %d", chromemdb.ErrInvalidK, k))
	}
	if r.embedder.Model() != index.Model() {
		return RetrievedContext{}, misconfigured(PhaseRetrieve,
			fmt.Errorf("index built with %q, query embedded with %q", index.Model(), r.embedder.Model()))
	}
	if index.Count() == 0 {
		return RetrievedContext{}, nil
	}

	callCtx, cancel := withTimeout(ctx, r.timeout)
	vector, err := r.embedder.EmbedQuery(callCtx, query)
	cancel()
	if err != nil {
		return RetrievedContext{}, upstream(PhaseRetrieve, err)
	}
	if len(vector) == 0 {
		return RetrievedContext{}, upstream(PhaseRetrieve, fmt.Errorf("%w: empty query vector", embedding.ErrMalformedEmbedding))
	}

	chunks, err := index.Query(ctx, vector, k)
	switch {
	case err == nil:
	case errors.Is(err, chromemdb.ErrInvalidVector):
		return RetrievedContext{}, upstream(PhaseRetrieve, err)
	default:
		// dimension mismatch: same model name, different vector space
		return RetrievedContext{}, misconfigured(PhaseRetrieve, err)
	}

	return RetrievedContext{
		Chunks: chunks,
		Text:   AssembleContext(chunks),
	}, nil
}

// AssembleContext joins chunk texts in the given order with a blank line.
func AssembleContext(chunks []models.ScoredChunk) string {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	return strings.Join(texts, models.ContextSeparator)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
