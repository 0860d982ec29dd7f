package agent

import (
	"context"
	"fmt"

	"github.com/semanticbrowser/kb/internal/coreops"
	"github.com/semanticbrowser/kb/internal/tools"
)

// ParseTools builds the parse_html tool of spec.md §4.11, sharing
// coreops.ParseHTML with the /parse HTTP handler and the MCP server so
// an agent can ingest a page it just fetched with browser_get_content
// without leaving the tool-calling loop, through the exact same
// validate→parse→annotate→insert pipeline every other caller uses.
func ParseTools(deps coreops.Deps) []*tools.ToolDefinition {
	return []*tools.ToolDefinition{parseHTMLTool(deps)}
}

func parseHTMLTool(deps coreops.Deps) *tools.ToolDefinition {
	return &tools.ToolDefinition{
		Name:        "parse_html",
		Description: "Parse HTML into structured data (title, microdata, JSON-LD, Open Graph) and named entities, inserting the resulting triples into the knowledge graph.",
		Category:    tools.CategoryParse,
		Schema: tools.ParamsSchema{
			Required: []string{"html"},
			Properties: map[string]tools.Property{
				"html": {Type: "string", Description: "Raw HTML document"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			raw, err := stringArg(args, "html")
			if err != nil {
				return "", err
			}
			result, err := coreops.ParseHTML(deps, []byte(raw))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("title=%q entities=%d triples_inserted=%d", result.Title, len(result.Entities), result.TriplesInserted), nil
		},
	}
}
