package rag

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

var wordRe = regexp.MustCompile(`\p{L}+`)

// bagOfWords embeds text as counts over a fixed vocabulary plus one constant
// bias component, so no vector is ever zero.
type bagOfWords struct {
	mu         sync.Mutex
	model      string
	vocab      map[string]int
	docCalls   int
	queryCalls int
	docErr     error
	queryErr   error
	// extraDims pads query vectors, simulating a changed embedding space
	extraDims int
}

func newBagOfWords(model string, words ...string) *bagOfWords {
	vocab := make(map[string]int, len(words))
	for i, w := range words {
		vocab[w] = i
	}
	return &bagOfWords{model: model, vocab: vocab}
}

func (b *bagOfWords) Model() string { return b.model }

func (b *bagOfWords) vector(text string) []float32 {
	v := make([]float32, len(b.vocab)+1)
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if i, ok := b.vocab[w]; ok {
			v[i]++
		}
	}
	v[len(b.vocab)] = 1
	return v
}

func (b *bagOfWords) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docCalls++
	if b.docErr != nil {
		return nil, b.docErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = b.vector(t)
	}
	return out, nil
}

func (b *bagOfWords) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queryCalls++
	if b.queryErr != nil {
		return nil, b.queryErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := b.vector(text)
	for range b.extraDims {
		v = append(v, 1)
	}
	return v, nil
}

func (b *bagOfWords) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.docCalls + b.queryCalls
}

// shortVectors returns one vector fewer than asked for.
type shortVectors struct{ *bagOfWords }

func (s shortVectors) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := s.bagOfWords.EmbedDocuments(ctx, texts)
	if err != nil || len(out) == 0 {
		return out, err
	}
	return out[:len(out)-1], nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	answer  string
	err     error
	block   bool
}

func (g *fakeGenerator) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	g.mu.Lock()
	for _, m := range messages {
		for _, part := range m.Parts {
			if text, ok := part.(llms.TextContent); ok {
				g.prompts = append(g.prompts, text.Text)
			}
		}
	}
	g.mu.Unlock()

	if g.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if g.err != nil {
		return nil, g.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: g.answer}}}, nil
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}
