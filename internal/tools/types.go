// Package tools holds the Tool Registry of spec.md §4.11: a lookup of
// ToolDefinitions the Agent Orchestrator consumes to build
// chat_with_tools calls and dispatch Action steps.
package tools

import (
	"context"
)

// Category classifies a tool for listing/filtering.
type Category string

const (
	CategoryBrowser Category = "/browser"
	CategoryKG      Category = "/kg"
	CategoryParse   Category = "/parse"
	CategoryForm    Category = "/form"
	CategoryGeneral Category = "/general"
)

// Property describes a single parameter's JSON schema.
type Property struct {
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Default     any            `json:"default,omitempty"`
	Enum        []any          `json:"enum,omitempty"`
	Items       *PropertyItems `json:"items,omitempty"`
}

// PropertyItems describes an array property's element schema.
type PropertyItems struct {
	Type string `json:"type"`
}

// ParamsSchema is the JSON-schema-shaped argument contract spec.md §4.11
// requires so that providers with native tool-use can consume it, and so
// the orchestrator can validate arguments before dispatching.
type ParamsSchema struct {
	Required   []string            `json:"required"`
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc runs a tool and returns its string observation.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// ToolDefinition is one callable tool, held by the Registry and exposed
// to the LLM's tool-calling surface.
type ToolDefinition struct {
	Name            string
	Description     string
	Category        Category
	Execute         ExecuteFunc
	Schema          ParamsSchema
	Priority        int
	RequiresContext bool
}

// Validate checks the definition is well-formed before registration.
func (t *ToolDefinition) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// WithPriority returns a copy of t with the given priority.
func (t *ToolDefinition) WithPriority(priority int) *ToolDefinition {
	c := *t
	c.Priority = priority
	return &c
}

// ToolResult wraps one tool invocation's outcome with timing, for the
// agent's history entries.
type ToolResult struct {
	ToolName   string
	Result     string
	Error      error
	DurationMs int64
}

// IsSuccess reports whether the tool executed without error.
func (r *ToolResult) IsSuccess() bool {
	return r.Error == nil
}
