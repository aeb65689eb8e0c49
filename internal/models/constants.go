package models

const (
	// ContextSeparator joins retrieved chunks into one context block.
	ContextSeparator = "\n\n"
	ThinkTag         = `(?s)<think>.*?</think>`

	PromptContextVar  = "context"
	PromptQuestionVar = "question"
)

var (
	// AnswerPromptTemplate is rendered with the langchaingo go-template
	// formatter. The model is told to stay inside the supplied transcript
	// context and to admit when it cannot answer.
	AnswerPromptTemplate = `You are a helpful assistant.
Answer only from the provided transcript context.
If the context is insufficient, just say you don't know.

{{.context}}
Question: {{.question}}
`
)
