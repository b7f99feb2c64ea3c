package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/meridiansearch/meridian/domain/search"
)

// Context assembly bounds for RAG prompts.
const (
	maxAskSources      = 8
	maxSourceRunes     = 2000
	askSystemDirective = "You are a search assistant. Answer the question using only the " +
		"numbered sources below. Cite sources as [n]. If the sources do not " +
		"contain the answer, say so."
)

// ChatCompleter is the completion endpoint contract.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Answer is a grounded response with the sources it cites.
type Answer struct {
	Text    string
	Sources []search.Result
}

// Ask answers questions over the index: a hybrid search supplies the
// context, an external completion endpoint writes the answer.
type Ask struct {
	search *Search
	chat   ChatCompleter
	model  string
	logger *slog.Logger
}

// NewAsk creates an Ask service. A nil chat client makes Answer return
// ErrLLMNotConfigured.
func NewAsk(searchService *Search, chat ChatCompleter, model string, logger *slog.Logger) *Ask {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ask{search: searchService, chat: chat, model: model, logger: logger}
}

// Answer runs retrieval-augmented generation for one question.
func (a *Ask) Answer(ctx context.Context, question string, limit int, user search.UserContext) (Answer, error) {
	if a.chat == nil {
		return Answer{}, ErrLLMNotConfigured
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	if limit <= 0 || limit > maxAskSources {
		limit = maxAskSources
	}

	req := search.NewRequest(question, search.ModeHybrid, limit).WithUser(user)
	response, err := a.search.Search(ctx, req)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve context: %w", err)
	}
	sources := response.Results()

	completion, err := a.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: askSystemDirective},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(question, sources)},
		},
	})
	if err != nil {
		return Answer{}, fmt.Errorf("completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Answer{}, fmt.Errorf("completion: no choices returned")
	}

	return Answer{
		Text:    strings.TrimSpace(completion.Choices[0].Message.Content),
		Sources: sources,
	}, nil
}

// buildPrompt renders the question plus numbered source excerpts.
func buildPrompt(question string, sources []search.Result) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nSources:\n")
	if len(sources) == 0 {
		b.WriteString("(none)\n")
	}
	for i, result := range sources {
		doc := result.Document()
		fmt.Fprintf(&b, "[%d] %s\n", i+1, doc.Title())
		if url := doc.URL(); url != "" {
			b.WriteString(url)
			b.WriteByte('\n')
		}
		b.WriteString(truncateRunes(doc.Content(), maxSourceRunes))
		b.WriteString("\n\n")
	}
	return b.String()
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
