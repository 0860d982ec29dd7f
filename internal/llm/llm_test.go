package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProviderChatEchoesLastUserMessage(t *testing.T) {
	p := NewMockProvider()
	resp, err := p.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be helpful"},
		{Role: RoleUser, Content: "what is 2+2?"},
	}, Config{})
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "what is 2+2?")
}

func TestMockProviderChatFuncOverride(t *testing.T) {
	p := NewMockProvider()
	p.ChatFunc = func(ctx context.Context, messages []Message, tools []ToolSpec, cfg Config) (Response, error) {
		return Response{ToolCalls: []ToolCall{{Name: "browser_navigate", Arguments: map[string]any{"url": "https://example.com"}}}}, nil
	}
	resp, err := p.ChatWithTools(context.Background(), nil, []ToolSpec{{Name: "browser_navigate"}}, Config{})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "browser_navigate", resp.ToolCalls[0].Name)
}

func TestMockProviderStreamEmitsTokensThenDone(t *testing.T) {
	p := NewMockProvider()
	p.StreamTokens = "one two three"

	ch, err := p.Stream(context.Background(), nil, Config{})
	require.NoError(t, err)

	var deltas []string
	var sawDone bool
	for ev := range ch {
		if ev.Done {
			sawDone = true
			continue
		}
		deltas = append(deltas, ev.Delta)
	}
	assert.True(t, sawDone)
	assert.Len(t, deltas, 3)
}

func TestMockProviderStreamStopsOnContextCancel(t *testing.T) {
	p := NewMockProvider()
	p.StreamTokens = "a b c d e f g h i j k l m n o p"

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := p.Stream(ctx, nil, Config{})
	require.NoError(t, err)

	<-ch
	cancel()

	timeout := time.After(time.Second)
	drained := false
	for !drained {
		select {
		case _, ok := <-ch:
			if !ok {
				drained = true
			}
		case <-timeout:
			t.Fatal("stream did not close after context cancellation")
		}
	}
}

func TestMockProviderHealthDefaultsToHealthy(t *testing.T) {
	p := NewMockProvider()
	assert.True(t, p.Health(context.Background()))
}

func TestMockProviderSupportsVisionFalse(t *testing.T) {
	p := NewMockProvider()
	assert.False(t, p.SupportsVision())
}
