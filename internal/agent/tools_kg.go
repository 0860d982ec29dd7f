package agent

import (
	"context"
	"strings"

	"github.com/semanticbrowser/kb/internal/coreops"
	"github.com/semanticbrowser/kb/internal/tools"
)

// KGTools builds the query_kg tool of spec.md §4.11, sharing
// coreops.QueryKG with the HTTP /query handler and the MCP server so the
// agent's observation and an operator's curl response never disagree.
func KGTools(deps coreops.Deps) []*tools.ToolDefinition {
	return []*tools.ToolDefinition{queryKGTool(deps)}
}

func queryKGTool(deps coreops.Deps) *tools.ToolDefinition {
	return &tools.ToolDefinition{
		Name:        "query_kg",
		Description: "Run a SPARQL 1.1 SELECT, ASK, CONSTRUCT, DESCRIBE, INSERT DATA, or DELETE DATA query against the knowledge graph.",
		Category:    tools.CategoryKG,
		Schema: tools.ParamsSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {Type: "string", Description: "SPARQL query text"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			query, err := stringArg(args, "query")
			if err != nil {
				return "", err
			}
			out, err := coreops.QueryKG(deps, query)
			if err != nil {
				return "", err
			}
			return strings.Join(out, "\n"), nil
		},
	}
}
