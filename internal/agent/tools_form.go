package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/semanticbrowser/kb/internal/formfill"
	"github.com/semanticbrowser/kb/internal/tools"
)

// FormTools builds the fill_form tool of spec.md §4.11, wrapping the
// Smart Form Filler over whichever tab exec bound to the calling task.
func FormTools(exec BrowserExecutor) []*tools.ToolDefinition {
	return []*tools.ToolDefinition{fillFormTool(exec)}
}

func fillFormTool(exec BrowserExecutor) *tools.ToolDefinition {
	return &tools.ToolDefinition{
		Name:        "fill_form",
		Description: "Discover and fill the form fields on the current page best matching a map of field hint to value (e.g. {\"email\": \"a@b.com\"}).",
		Category:    tools.CategoryForm,
		Schema: tools.ParamsSchema{
			Required: []string{"hints"},
			Properties: map[string]tools.Property{
				"hints": {Type: "object", Description: "Map of field hint (label/name/placeholder guess) to the value to enter"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			raw, ok := args["hints"].(map[string]any)
			if !ok {
				return "", fmt.Errorf("%w: hints must be an object of hint to value", tools.ErrInvalidArgType)
			}
			hints := make(map[string]string, len(raw))
			for k, v := range raw {
				s, ok := v.(string)
				if !ok {
					return "", fmt.Errorf("%w: hints values must be strings", tools.ErrInvalidArgType)
				}
				hints[k] = s
			}

			tab, err := exec.Tab(ctx, taskIDFrom(args))
			if err != nil {
				return "", err
			}

			report, err := formfill.Fill(tab, hints)
			if err != nil {
				return "", err
			}

			out, err := json.Marshal(report)
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}
