package models

// Chunk is a contiguous window of the transcript. Offsets count characters
// (runes), EndOffset is exclusive.
type Chunk struct {
	ChunkID     int    `json:"chunk_id"`
	Content     string `json:"content"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// ChunkEmbedding pairs a chunk with the vector the embedder produced for it.
type ChunkEmbedding struct {
	Chunk
	Embedding []float32 `json:"-"`
}

// ScoredChunk is a chunk returned by a similarity query.
type ScoredChunk struct {
	Chunk
	Similarity float32 `json:"similarity"`
}

type PromptResponse struct {
	Query      string        `json:"query"`
	Source     string        `json:"source"`
	Content    string        `json:"content"`
	Retrieved  []ScoredChunk `json:"retrieved"`
	ChunkCount int           `json:"chunk_count"`
}
