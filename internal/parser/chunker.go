package parser

import (
	"errors"
	"fmt"

	"github.com/prashantji77/youtube-video-summarizer/internal/models"
)

var ErrInvalidChunkParams = errors.New("invalid chunk parameters")

// Split slides a window of chunkSize characters over text, advancing by
// chunkSize-overlap each step. The last chunk is cut at the end of the text.
// Every character lands in at least one chunk and neighbouring chunks share
// exactly overlap characters.
func Split(text string, chunkSize, overlap int) ([]models.Chunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be > 0, got %d", ErrInvalidChunkParams, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidChunkParams, chunkSize, overlap)
	}

	// offsets are in characters, not bytes
	runes := []rune(text)
	contentLen := len(runes)
	if contentLen == 0 {
		return nil, nil
	}

	step := chunkSize - overlap
	chunks := make([]models.Chunk, 0, contentLen/step+1)
	for start := 0; ; start += step {
		end := min(start+chunkSize, contentLen)
		chunks = append(chunks, models.Chunk{
			ChunkID:     len(chunks),
			Content:     string(runes[start:end]),
			StartOffset: start,
			EndOffset:   end,
		})
		if end == contentLen {
			break
		}
	}
	return chunks, nil
}
