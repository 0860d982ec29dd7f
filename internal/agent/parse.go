package agent

import (
	"encoding/json"
	"strings"

	"github.com/semanticbrowser/kb/internal/llm"
)

// decision is what one LLM turn resolved to: either a tool call to make
// or a final answer to return. Exactly one of hasAction/hasFinal is true
// when a marker was parsed; neither is set when none was found.
type decision struct {
	thought     string
	action      string
	actionInput map[string]any
	final       string
	hasAction   bool
	hasFinal    bool
}

const (
	markerAction      = "Action:"
	markerActionInput = "Action Input:"
	markerFinalAnswer = "Final Answer:"
)

// parseResponse resolves one LLM response into a decision. Native
// structured tool calls (resp.ToolCalls) take priority, using the last
// call when a provider returns several in one turn; otherwise the
// textual Action:/Action Input:/Final Answer: markers are parsed from
// resp.Content, with whichever marker occurs last in the text winning
// when both are present.
func parseResponse(resp llm.Response) decision {
	if len(resp.ToolCalls) > 0 {
		tc := resp.ToolCalls[len(resp.ToolCalls)-1]
		return decision{action: tc.Name, actionInput: tc.Arguments, hasAction: true}
	}
	return parseTextDecision(resp.Content)
}

func parseTextDecision(content string) decision {
	finalIdx := strings.LastIndex(content, markerFinalAnswer)
	actionIdx := strings.LastIndex(content, markerAction)

	if finalIdx == -1 && actionIdx == -1 {
		return decision{thought: strings.TrimSpace(content)}
	}

	if finalIdx > actionIdx {
		return decision{
			thought:  strings.TrimSpace(content[:finalIdx]),
			final:    strings.TrimSpace(content[finalIdx+len(markerFinalAnswer):]),
			hasFinal: true,
		}
	}

	thought := strings.TrimSpace(content[:actionIdx])
	rest := content[actionIdx+len(markerAction):]

	inputIdx := strings.Index(rest, markerActionInput)
	actionName := rest
	var input map[string]any
	if inputIdx >= 0 {
		actionName = rest[:inputIdx]
		input = parseActionInput(rest[inputIdx+len(markerActionInput):])
	}
	actionName = strings.TrimSpace(firstLine(actionName))

	return decision{
		thought:     thought,
		action:      actionName,
		actionInput: input,
		hasAction:   actionName != "",
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// parseActionInput extracts the first brace-balanced JSON object after
// an "Action Input:" marker and decodes it, tolerating trailing
// narration (e.g. a following "Observation:" line an LLM hallucinated).
func parseActionInput(s string) map[string]any {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return nil
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				var out map[string]any
				if err := json.Unmarshal([]byte(s[start:i+1]), &out); err != nil {
					return nil
				}
				return out
			}
		}
	}
	return nil
}
