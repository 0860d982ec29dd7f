package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryIsEmpty(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, 0, reg.Count())
}

func TestRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	tool := &ToolDefinition{
		Name:     "test_tool",
		Category: CategoryGeneral,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			return "success", nil
		},
	}
	require.NoError(t, reg.Register(tool))

	got := reg.Get("test_tool")
	require.NotNil(t, got)
	assert.Equal(t, "test_tool", got.Name)
	assert.Equal(t, 50, got.Priority, "priority defaults to 50")
}

func TestRegisterDuplicateFails(t *testing.T) {
	reg := NewRegistry()
	tool := &ToolDefinition{
		Name:     "dupe",
		Category: CategoryGeneral,
		Execute:  func(ctx context.Context, args map[string]any) (string, error) { return "", nil },
	}
	require.NoError(t, reg.Register(tool))
	assert.ErrorIs(t, reg.Register(tool), ErrToolAlreadyRegistered)
}

func TestRegisterValidation(t *testing.T) {
	reg := NewRegistry()

	err := reg.Register(&ToolDefinition{Name: "", Execute: func(ctx context.Context, args map[string]any) (string, error) { return "", nil }})
	assert.ErrorIs(t, err, ErrToolNameEmpty)

	err = reg.Register(&ToolDefinition{Name: "test", Execute: nil})
	assert.ErrorIs(t, err, ErrToolExecuteNil)
}

func TestGetByCategorySortedByPriority(t *testing.T) {
	reg := NewRegistry()
	defs := []*ToolDefinition{
		{Name: "browser_click", Category: CategoryBrowser, Priority: 80, Execute: func(ctx context.Context, args map[string]any) (string, error) { return "", nil }},
		{Name: "browser_navigate", Category: CategoryBrowser, Priority: 60, Execute: func(ctx context.Context, args map[string]any) (string, error) { return "", nil }},
		{Name: "query_kg", Category: CategoryKG, Priority: 50, Execute: func(ctx context.Context, args map[string]any) (string, error) { return "", nil }},
	}
	for _, d := range defs {
		reg.MustRegister(d)
	}

	browserTools := reg.GetByCategory(CategoryBrowser)
	require.Len(t, browserTools, 2)
	assert.Equal(t, "browser_click", browserTools[0].Name, "higher priority first")
}

func TestExecuteValidatesRequiredArgsAndDispatches(t *testing.T) {
	reg := NewRegistry()
	tool := &ToolDefinition{
		Name:     "echo",
		Category: CategoryGeneral,
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			msg, _ := args["message"].(string)
			return "Echo: " + msg, nil
		},
		Schema: ParamsSchema{Required: []string{"message"}},
	}
	reg.MustRegister(tool)

	result, err := reg.Execute(context.Background(), "echo", map[string]any{"message": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Echo: hello", result.Result)
	assert.True(t, result.IsSuccess())

	_, err = reg.Execute(context.Background(), "echo", map[string]any{})
	assert.ErrorIs(t, err, ErrMissingRequiredArg)

	_, err = reg.Execute(context.Background(), "nonexistent", map[string]any{})
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestListReturnsAllToolsSortedByName(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&ToolDefinition{Name: "zeta", Category: CategoryGeneral, Execute: func(ctx context.Context, args map[string]any) (string, error) { return "", nil }})
	reg.MustRegister(&ToolDefinition{Name: "alpha", Category: CategoryGeneral, Execute: func(ctx context.Context, args map[string]any) (string, error) { return "", nil }})

	all := reg.List()
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, "zeta", all[1].Name)
}
