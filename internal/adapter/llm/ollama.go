package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaBackend serves completions from an Ollama server.
type OllamaBackend struct {
	client *ollama.Client
	params Params
}

var _ Completer = (*OllamaBackend)(nil)

// NewOllamaClient creates an Ollama client for baseURL.
func NewOllamaClient(baseURL string, timeout time.Duration) (*ollama.Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}
	return ollama.NewClient(u, &http.Client{Timeout: timeout}), nil
}

// NewOllamaBackend binds generation parameters to an Ollama client.
func NewOllamaBackend(client *ollama.Client, params Params) *OllamaBackend {
	return &OllamaBackend{client: client, params: params}
}

// Complete implements Completer.
func (b *OllamaBackend) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	msgs := make([]ollama.Message, len(messages))
	for i, m := range messages {
		msgs[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}

	stream := false
	req := &ollama.ChatRequest{
		Model:    b.params.Model,
		Messages: msgs,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": b.params.Temperature,
		},
	}
	if b.params.MaxTokens > 0 {
		req.Options["num_predict"] = b.params.MaxTokens
	}

	var content strings.Builder
	var usage *Usage
	err := b.client.Chat(ctx, req, func(res ollama.ChatResponse) error {
		content.WriteString(res.Message.Content)
		if res.Done {
			usage = &Usage{
				PromptTokens:     res.PromptEvalCount,
				CompletionTokens: res.EvalCount,
				TotalTokens:      res.PromptEvalCount + res.EvalCount,
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat failed: %w", err)
	}

	return &Completion{Content: content.String(), Model: b.params.Model, Usage: usage}, nil
}
