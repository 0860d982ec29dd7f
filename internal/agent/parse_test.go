package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semanticbrowser/kb/internal/llm"
)

func TestParseResponsePrefersNativeToolCallOverText(t *testing.T) {
	resp := llm.Response{
		Content:   "Final Answer: ignored",
		ToolCalls: []llm.ToolCall{{Name: "browser_navigate", Arguments: map[string]any{"url": "https://x"}}},
	}
	dec := parseResponse(resp)
	require.True(t, dec.hasAction)
	assert.Equal(t, "browser_navigate", dec.action)
	assert.Equal(t, "https://x", dec.actionInput["url"])
}

func TestParseResponseUsesLastNativeToolCall(t *testing.T) {
	resp := llm.Response{ToolCalls: []llm.ToolCall{
		{Name: "first"},
		{Name: "second", Arguments: map[string]any{"k": "v"}},
	}}
	dec := parseResponse(resp)
	assert.Equal(t, "second", dec.action)
}

func TestParseTextDecisionFinalAnswer(t *testing.T) {
	dec := parseTextDecision("I now know the answer.\nFinal Answer: the sky is blue")
	require.True(t, dec.hasFinal)
	assert.Equal(t, "the sky is blue", dec.final)
	assert.False(t, dec.hasAction)
}

func TestParseTextDecisionAction(t *testing.T) {
	content := "I should look at the page.\nAction: browser_navigate\nAction Input: {\"url\": \"https://example.com\"}"
	dec := parseTextDecision(content)
	require.True(t, dec.hasAction)
	assert.Equal(t, "browser_navigate", dec.action)
	assert.Equal(t, "https://example.com", dec.actionInput["url"])
	assert.Equal(t, "I should look at the page.", dec.thought)
}

func TestParseTextDecisionLastMarkerWinsWhenFinalFollowsAction(t *testing.T) {
	content := "Action: browser_navigate\nAction Input: {}\nObservation: done\nFinal Answer: all set"
	dec := parseTextDecision(content)
	require.True(t, dec.hasFinal)
	assert.Equal(t, "all set", dec.final)
}

func TestParseTextDecisionLastMarkerWinsWhenActionFollowsFinal(t *testing.T) {
	content := "Final Answer: nope, need more data\nAction: browser_click\nAction Input: {\"selector\": \"#x\"}"
	dec := parseTextDecision(content)
	require.True(t, dec.hasAction)
	assert.Equal(t, "browser_click", dec.action)
}

func TestParseTextDecisionNoMarkersIsNeitherActionNorFinal(t *testing.T) {
	dec := parseTextDecision("just thinking out loud")
	assert.False(t, dec.hasAction)
	assert.False(t, dec.hasFinal)
}

func TestParseActionInputToleratesTrailingNarration(t *testing.T) {
	input := parseActionInput(` {"selector": "#email", "value": "a@b.com"}
Observation: the model hallucinated this line`)
	require.NotNil(t, input)
	assert.Equal(t, "#email", input["selector"])
	assert.Equal(t, "a@b.com", input["value"])
}

func TestParseActionInputReturnsNilWithoutJSON(t *testing.T) {
	assert.Nil(t, parseActionInput("no json here"))
}
