package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiBackend serves completions through the Gemini API.
type GeminiBackend struct {
	client *genai.Client
	params Params
}

var _ Completer = (*GeminiBackend)(nil)

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return client, nil
}

// NewGeminiBackend binds generation parameters to a Gemini client.
func NewGeminiBackend(client *genai.Client, params Params) *GeminiBackend {
	return &GeminiBackend{client: client, params: params}
}

// Complete implements Completer. System messages become the system instruction.
func (b *GeminiBackend) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("gemini request has no user content")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(b.params.Temperature)),
	}
	if b.params.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(b.params.MaxTokens)
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	res, err := b.client.Models.GenerateContent(ctx, b.params.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return nil, fmt.Errorf("gemini returned empty text")
	}

	out := &Completion{Content: text, Model: b.params.Model}
	if u := res.UsageMetadata; u != nil {
		out.Usage = &Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}
