package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a scripted Completer for tests and offline runs.
// Queued responses are served first; after that it echoes the last user message.
type MockClient struct {
	mu        sync.Mutex
	responses []MockResponse
	calls     [][]Message
	// Func, when set, answers every call the queue does not.
	Func func(ctx context.Context, messages []Message) (*Completion, error)
}

// MockResponse is one scripted reply.
type MockResponse struct {
	Content string
	Err     error
}

var _ Completer = (*MockClient)(nil)

// NewMockClient creates a mock client answering with the given contents in order.
func NewMockClient(contents ...string) *MockClient {
	m := &MockClient{}
	for _, c := range contents {
		m.responses = append(m.responses, MockResponse{Content: c})
	}
	return m
}

// Enqueue appends scripted replies.
func (m *MockClient) Enqueue(responses ...MockResponse) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, responses...)
	return m
}

// Complete returns the next scripted reply.
func (m *MockClient) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, append([]Message(nil), messages...))
	var next *MockResponse
	if len(m.responses) > 0 {
		next = &m.responses[0]
		m.responses = m.responses[1:]
	}
	fn := m.Func
	m.mu.Unlock()

	if next != nil {
		if next.Err != nil {
			return nil, next.Err
		}
		return &Completion{Content: next.Content, Model: "mock"}, nil
	}
	if fn != nil {
		return fn(ctx, messages)
	}
	return &Completion{Content: generateMockResponse(messages), Model: "mock"}, nil
}

// Calls returns a copy of every message list received so far.
func (m *MockClient) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]Message, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many completions were requested.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func generateMockResponse(messages []Message) string {
	var lastUserMessage string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			lastUserMessage = messages[i].Content
			break
		}
	}

	if lastUserMessage == "" {
		return "[MOCK] This is a mock response from the LLM client."
	}

	return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(lastUserMessage, 100))
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
