package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"github.com/prashantji77/youtube-video-summarizer/internal/models"
)

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidK          = errors.New("k must be greater than zero")
	ErrInvalidVector     = errors.New("vector is zero or has non-finite components")
	ErrDuplicateChunk    = errors.New("duplicate chunk id")
)

const (
	collectionName = "transcript"

	metaStart = "start_offset"
	metaEnd   = "end_offset"
)

// Index is a request-scoped vector index over the chunks of one transcript.
// It lives in a private in-memory chromem-go DB and is never persisted or
// shared. An Index is read-only once built.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	chunks     []models.Chunk
	model      string
	dimension  int
}

// NewIndex builds an index from embedded chunks. model names the embedding
// space the vectors come from; queries must come from the same space.
func NewIndex(ctx context.Context, model string, items []models.ChunkEmbedding) (*Index, error) {
	db := chromem.NewDB()
	// embeddings are always supplied, so the collection never needs its own
	// embedding func
	c, err := db.CreateCollection(collectionName, map[string]string{"model": model}, noEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	idx := &Index{db: db, collection: c, model: model}
	if len(items) == 0 {
		return idx, nil
	}

	idx.dimension = len(items[0].Embedding)
	idx.chunks = make([]models.Chunk, len(items))
	docs := make([]chromem.Document, len(items))
	seen := make(map[int]struct{}, len(items))
	for i, item := range items {
		if _, ok := seen[item.ChunkID]; ok {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateChunk, item.ChunkID)
		}
		seen[item.ChunkID] = struct{}{}
		idx.chunks[i] = item.Chunk
		if len(item.Embedding) != idx.dimension {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, index has %d",
				ErrDimensionMismatch, item.ChunkID, len(item.Embedding), idx.dimension)
		}
		// chromem normalizes on insert; a zero vector would turn into NaNs
		if isZero(item.Embedding) || !isFinite(item.Embedding) {
			return nil, fmt.Errorf("%w: chunk %d", ErrInvalidVector, item.ChunkID)
		}
		docs[i] = chromem.Document{
			ID:      strconv.Itoa(item.ChunkID),
			Content: item.Content,
			Metadata: map[string]string{
				metaStart: strconv.Itoa(item.StartOffset),
				metaEnd:   strconv.Itoa(item.EndOffset),
			},
			Embedding: item.Embedding,
		}
	}

	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}

	log.Ctx(ctx).Debug().
		Int("chunks", len(items)).
		Int("dimension", idx.dimension).
		Str("model", model).
		Msg("Built vector index")
	return idx, nil
}

func (i *Index) Model() string  { return i.model }
func (i *Index) Dimension() int { return i.dimension }
func (i *Index) Count() int     { return len(i.chunks) }

// Query returns the min(k, Count()) chunks most similar to vector by cosine
// similarity, best first. Equal scores keep ascending chunk order.
func (i *Index) Query(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(i.chunks) == 0 {
		return nil, nil
	}
	if len(vector) != i.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(vector), i.dimension)
	}
	if !isFinite(vector) {
		return nil, ErrInvalidVector
	}

	var ranked []models.ScoredChunk
	if isZero(vector) {
		// no direction to compare against; every chunk ties at zero
		ranked = make([]models.ScoredChunk, len(i.chunks))
		for n, chunk := range i.chunks {
			ranked[n] = models.ScoredChunk{Chunk: chunk}
		}
	} else {
		// chromem's top-n selection does not order ties, so score every
		// document and rank them here
		results, err := i.collection.QueryEmbedding(ctx, vector, len(i.chunks), nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to query by similarity: %w", err)
		}
		ranked = make([]models.ScoredChunk, 0, len(results))
		for _, r := range results {
			sc, err := toScoredChunk(r.ID, r.Content, r.Metadata, r.Similarity)
			if err != nil {
				return nil, err
			}
			ranked = append(ranked, sc)
		}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].Similarity != ranked[b].Similarity {
			return ranked[a].Similarity > ranked[b].Similarity
		}
		return ranked[a].ChunkID < ranked[b].ChunkID
	})
	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked, nil
}

func toScoredChunk(id, content string, meta map[string]string, similarity float32) (models.ScoredChunk, error) {
	chunkID, err := strconv.Atoi(id)
	if err != nil {
		return models.ScoredChunk{}, fmt.Errorf("unexpected document id %q: %w", id, err)
	}
	start, _ := strconv.Atoi(meta[metaStart])
	end, _ := strconv.Atoi(meta[metaEnd])
	return models.ScoredChunk{
		Chunk: models.Chunk{
			ChunkID:     chunkID,
			Content:     content,
			StartOffset: start,
			EndOffset:   end,
		},
		Similarity: similarity,
	}, nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func isFinite(v []float32) bool {
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return false
		}
	}
	return true
}

func noEmbeddingFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("documents must be added with precomputed embeddings")
}
