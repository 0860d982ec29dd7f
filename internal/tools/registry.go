package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/semanticbrowser/kb/internal/logging"
)

// Registry holds every registered ToolDefinition, thread-safe for
// concurrent agent tasks.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]*ToolDefinition
	byCategory map[Category][]*ToolDefinition
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:      make(map[string]*ToolDefinition),
		byCategory: make(map[Category][]*ToolDefinition),
	}
}

// Register adds a tool. Returns ErrToolAlreadyRegistered for a duplicate
// name.
func (r *Registry) Register(tool *ToolDefinition) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, tool.Name)
	}
	if tool.Priority == 0 {
		tool.Priority = 50
	}

	r.tools[tool.Name] = tool
	r.byCategory[tool.Category] = append(r.byCategory[tool.Category], tool)

	logging.Get(logging.CategoryTools).Debug("registered tool %s (category=%s, priority=%d)", tool.Name, tool.Category, tool.Priority)
	return nil
}

// MustRegister registers a tool and panics on error; for static
// registration at startup.
func (r *Registry) MustRegister(tool *ToolDefinition) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", tool.Name, err))
	}
}

// Get returns a tool by name, or nil.
func (r *Registry) Get(name string) *ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// GetByCategory returns a category's tools sorted by descending
// priority.
func (r *Registry) GetByCategory(category Category) []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ToolDefinition, len(r.byCategory[category]))
	copy(out, r.byCategory[category])
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// GetMultiple returns the tools matching names, silently skipping any
// that are not registered.
func (r *Registry) GetMultiple(names []string) []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ToolDefinition, 0, len(names))
	for _, name := range names {
		if tool, ok := r.tools[name]; ok {
			out = append(out, tool)
		}
	}
	return out
}

// List returns every registered tool, for the LLM's tool-calling
// surface (spec.md §4.11).
func (r *Registry) List() []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns every registered tool name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute looks up name and runs it with args.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	tool := r.Get(name)
	if tool == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return r.ExecuteTool(ctx, tool, args)
}

// ExecuteTool checks that every argument named in tool.Schema.Required
// is present, then runs it. Argument types and properties not listed in
// the schema are not checked.
func (r *Registry) ExecuteTool(ctx context.Context, tool *ToolDefinition, args map[string]any) (*ToolResult, error) {
	start := time.Now()

	if err := r.validateArgs(tool, args); err != nil {
		return &ToolResult{ToolName: tool.Name, Error: err, DurationMs: time.Since(start).Milliseconds()}, err
	}

	logging.Get(logging.CategoryTools).Debug("executing tool %s", tool.Name)
	result, err := tool.Execute(ctx, args)
	duration := time.Since(start)
	logging.Get(logging.CategoryTools).Debug("tool %s completed in %v (success=%v)", tool.Name, duration, err == nil)

	return &ToolResult{
		ToolName:   tool.Name,
		Result:     result,
		Error:      err,
		DurationMs: duration.Milliseconds(),
	}, err
}

func (r *Registry) validateArgs(tool *ToolDefinition, args map[string]any) error {
	for _, required := range tool.Schema.Required {
		if _, ok := args[required]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingRequiredArg, required)
		}
	}
	return nil
}
