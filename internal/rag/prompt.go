package rag

import (
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/prashantji77/youtube-video-summarizer/internal/models"
)

type Prompt string

var thinkTagRe = regexp.MustCompile(models.ThinkTag)

// PromptBuilder fills the fixed answer template with the retrieved context
// and the question. Nothing else reaches the model.
type PromptBuilder struct {
	template prompts.PromptTemplate
}

func NewPromptBuilder() PromptBuilder {
	return PromptBuilder{
		template: prompts.NewPromptTemplate(
			models.AnswerPromptTemplate,
			[]string{models.PromptContextVar, models.PromptQuestionVar},
		),
	}
}

func (b PromptBuilder) Build(retrieved RetrievedContext, question string) (Prompt, error) {
	out, err := b.template.Format(map[string]any{
		models.PromptContextVar:  retrieved.Text,
		models.PromptQuestionVar: question,
	})
	if err != nil {
		return "", err
	}
	return Prompt(out), nil
}

// CleanAnswer drops reasoning blocks some models wrap around their answer
// and trims surrounding whitespace.
func CleanAnswer(raw string) string {
	return strings.TrimSpace(thinkTagRe.ReplaceAllString(raw, ""))
}
