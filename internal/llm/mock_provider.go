package llm

import (
	"context"
	"strings"
)

// MockProvider returns deterministic, configurable responses with no
// network calls, for tests and the agent's mock-executor story
// (spec.md §4.12).
type MockProvider struct {
	// ChatFunc, if set, overrides the default echo behaviour.
	ChatFunc func(ctx context.Context, messages []Message, tools []ToolSpec, cfg Config) (Response, error)
	// StreamTokens is split on spaces and emitted one delta per item
	// when Stream is called; ChatFunc does not affect Stream. When empty,
	// Stream splits the default echo response instead.
	StreamTokens string
	Healthy      bool
}

// NewMockProvider builds a MockProvider that, by default, echoes the
// last user message's content.
func NewMockProvider() *MockProvider {
	return &MockProvider{Healthy: true}
}

func (m *MockProvider) defaultResponse(messages []Message) Response {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return Response{Content: "Final Answer: " + messages[i].Content}
		}
	}
	return Response{Content: "Final Answer: (no user message)"}
}

func (m *MockProvider) Chat(ctx context.Context, messages []Message, cfg Config) (Response, error) {
	return m.ChatWithTools(ctx, messages, nil, cfg)
}

func (m *MockProvider) ChatWithTools(ctx context.Context, messages []Message, tools []ToolSpec, cfg Config) (Response, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, messages, tools, cfg)
	}
	return m.defaultResponse(messages), nil
}

func (m *MockProvider) Stream(ctx context.Context, messages []Message, cfg Config) (<-chan StreamEvent, error) {
	text := m.StreamTokens
	if text == "" {
		text = m.defaultResponse(messages).Content
	}
	tokens := strings.Fields(text)

	ch := make(chan StreamEvent, 100)
	go func() {
		defer close(ch)
		for _, tok := range tokens {
			select {
			case ch <- StreamEvent{Delta: tok + " "}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case ch <- StreamEvent{Done: true}:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

func (m *MockProvider) SupportsVision() bool { return false }

func (m *MockProvider) Health(ctx context.Context) bool { return m.Healthy }
