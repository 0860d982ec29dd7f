// Package llm is the LLM Provider Abstraction of spec.md §4.10: a
// polymorphic contract over chat/chat_with_tools/stream/vision/health,
// implemented by a google.golang.org/genai-backed provider (grounded in
// the teacher's internal/embedding/genai.go client-construction idiom)
// and a deterministic MockProvider for tests and the agent's
// injectable-executor story.
package llm

import (
	"context"
)

// Role is a chat message's speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ImageBlock embeds a vision input, per spec.md §4.10's
// "url or inline base64 with declared media type".
type ImageBlock struct {
	URL       string
	Data      string // base64, mutually exclusive with URL
	MediaType string
}

// ToolCall is a structured tool invocation a provider surfaced, whether
// native or parsed from textual markers upstream.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Message is one chat turn.
type Message struct {
	Role       Role
	Content    string
	Images     []ImageBlock
	ToolCalls  []ToolCall
	ToolCallID string // set on a RoleTool message: which call this answers
}

// ToolSpec describes one callable tool for chat_with_tools, independent
// of internal/tools.ToolDefinition so this package has no dependency on
// the tool registry.
type ToolSpec struct {
	Name        string
	Description string
	Schema      any // JSON-schema-shaped value
}

// Config tunes a single call.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Usage reports token accounting, when the provider exposes it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a completed chat call's result.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *Usage
}

// StreamEvent is one item of a Stream's lazy token-delta sequence. Done
// is set, with Delta empty, on the final event the producer sends before
// closing the channel.
type StreamEvent struct {
	Delta string
	Err   error
	Done  bool
}

// Provider is the capability set spec.md §4.10 requires. Not every
// provider need implement every method meaningfully — SupportsVision
// advertises which do.
type Provider interface {
	Chat(ctx context.Context, messages []Message, cfg Config) (Response, error)
	ChatWithTools(ctx context.Context, messages []Message, tools []ToolSpec, cfg Config) (Response, error)
	Stream(ctx context.Context, messages []Message, cfg Config) (<-chan StreamEvent, error)
	SupportsVision() bool
	Health(ctx context.Context) bool
}
