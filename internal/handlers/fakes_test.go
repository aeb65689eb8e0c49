package handlers

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"
)

type failingEmbedder struct{ err error }

func (f failingEmbedder) Model() string { return "test/failing" }

func (f failingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	return nil, f.err
}

func (f failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, f.err
}

type noGenerator struct{}

func (noGenerator) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, errors.New("generator must not be called")
}
