// Package mcpserver implements spec.md §4.13/§6's MCP surface: a
// newline-delimited JSON-RPC 2.0 server over stdin/stdout exposing
// semanticbrowser.parse_html, semanticbrowser.query_kg, and
// semanticbrowser.browse_url — the same three core operations
// internal/httpapi and internal/agent's tools dispatch to, via
// internal/coreops. Framing (one JSON object per line, read-loop over a
// buffered scanner, flush-after-write) is grounded in the teacher's
// internal/mcp/transport_stdio.go client, mirrored server-side: this
// reads where that wrote, and writes where that read.
package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/semanticbrowser/kb/internal/browser"
	"github.com/semanticbrowser/kb/internal/coreops"
	"github.com/semanticbrowser/kb/internal/logging"
)

const serverName = "semanticbrowser-kb"

// Server dispatches JSON-RPC requests to the core operations. Pool may
// be nil if browse_url is not needed (e.g. a deployment with no browser
// configured); calling browse_url against a nil Pool fails cleanly.
type Server struct {
	Deps    coreops.Deps
	Pool    *browser.Pool
	Version string
}

func (s *Server) log() *logging.Logger { return logging.Get(logging.CategoryMCP) }

// Serve reads newline-delimited JSON-RPC requests from r and writes
// responses to w until r is exhausted or ctx is cancelled. Each line is
// handled to completion before the next is read — MCP stdio traffic is
// one client issuing one request at a time.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	bw := bufio.NewWriter(w)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.handleLine(ctx, line)
		if resp == nil {
			continue // notification: no response expected
		}
		if err := writeResponse(bw, resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func writeResponse(bw *bufio.Writer, resp *response) error {
	encoded, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if _, err := bw.Write(encoded); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	return bw.Flush()
}

func (s *Server) handleLine(ctx context.Context, line []byte) *response {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return &response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "invalid JSON: " + err.Error()}}
	}
	if req.Method == "" {
		return &response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidRequest, Message: "missing method"}}
	}

	var result any
	var callErr error
	switch req.Method {
	case "initialize":
		result = s.initialize()
	case "tools/list":
		result = s.toolsList()
	case "tools/call":
		result, callErr = s.toolsCall(ctx, req.Params)
	default:
		return &response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeMethodNotFound, Message: "unknown method: " + req.Method}}
	}

	if callErr != nil {
		s.log().Warn("mcp: method %s failed: %v", req.Method, callErr)
		return &response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInternalError, Message: callErr.Error()}}
	}
	return &response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) initialize() initializeResult {
	return initializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    capabilities{Tools: true},
		ServerInfo:      serverInfo{Name: serverName, Version: s.Version},
	}
}

func (s *Server) toolsList() toolsListResult {
	return toolsListResult{Tools: []toolSchema{
		{
			Name:        "semanticbrowser.parse_html",
			Description: "Parse HTML into structured data and named entities, inserting the resulting triples into the knowledge graph.",
			InputSchema: inputSchema{
				Type:       "object",
				Required:   []string{"html"},
				Properties: map[string]propertyDef{"html": {Type: "string", Description: "Raw HTML document"}},
			},
		},
		{
			Name:        "semanticbrowser.query_kg",
			Description: "Run a SPARQL 1.1 query against the knowledge graph.",
			InputSchema: inputSchema{
				Type:       "object",
				Required:   []string{"query"},
				Properties: map[string]propertyDef{"query": {Type: "string", Description: "SPARQL query text"}},
			},
		},
		{
			Name:        "semanticbrowser.browse_url",
			Description: "Navigate a pooled browser tab to a URL, parse the page, insert its triples, and optionally score its text against a query.",
			InputSchema: inputSchema{
				Type:     "object",
				Required: []string{"url"},
				Properties: map[string]propertyDef{
					"url":   {Type: "string", Description: "Absolute http(s) URL to load"},
					"query": {Type: "string", Description: "Optional text to score the page's content against"},
				},
			},
		},
	}}
}

func (s *Server) toolsCall(ctx context.Context, raw json.RawMessage) (callResult, error) {
	var params callParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return callResult{}, fmt.Errorf("invalid tools/call params: %w", err)
	}

	switch params.Name {
	case "semanticbrowser.parse_html":
		return s.callParseHTML(params.Arguments)
	case "semanticbrowser.query_kg":
		return s.callQueryKG(params.Arguments)
	case "semanticbrowser.browse_url":
		return s.callBrowseURL(ctx, params.Arguments)
	default:
		return callResult{}, fmt.Errorf("unknown tool: %s", params.Name)
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument: %s", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %s must be a string", key)
	}
	return s, nil
}

func (s *Server) callParseHTML(args map[string]any) (callResult, error) {
	html, err := stringArg(args, "html")
	if err != nil {
		return callResult{}, err
	}
	result, err := coreops.ParseHTML(s.Deps, []byte(html))
	if err != nil {
		return callResult{}, err
	}
	summary := fmt.Sprintf("parsed %q: %d entities, %d triples inserted", result.Title, len(result.Entities), result.TriplesInserted)
	return callResult{Content: []contentBlock{{Type: "text", Text: summary}}, StructuredContent: result}, nil
}

func (s *Server) callQueryKG(args map[string]any) (callResult, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return callResult{}, err
	}
	rows, err := coreops.QueryKG(s.Deps, query)
	if err != nil {
		return callResult{}, err
	}
	summary := fmt.Sprintf("%d result row(s)", len(rows))
	return callResult{Content: []contentBlock{{Type: "text", Text: summary}}, StructuredContent: map[string]any{"results": rows}}, nil
}

func (s *Server) callBrowseURL(ctx context.Context, args map[string]any) (callResult, error) {
	if s.Pool == nil {
		return callResult{}, fmt.Errorf("browse_url unavailable: no browser pool configured")
	}
	url, err := stringArg(args, "url")
	if err != nil {
		return callResult{}, err
	}
	query, _ := args["query"].(string)

	tab, release, err := s.Pool.Acquire(ctx)
	if err != nil {
		return callResult{}, err
	}
	defer release()

	result, err := coreops.BrowseURL(s.Deps, tab, url, query)
	if err != nil {
		return callResult{}, err
	}
	summary := fmt.Sprintf("browsed %q: title=%q, %d query matches", url, result.Snapshot.Title, len(result.Snapshot.QueryMatches))
	return callResult{Content: []contentBlock{{Type: "text", Text: summary}}, StructuredContent: result}, nil
}
