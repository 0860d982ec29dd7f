package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semanticbrowser/kb/internal/annotator"
	"github.com/semanticbrowser/kb/internal/coreops"
	"github.com/semanticbrowser/kb/internal/htmlparser"
	"github.com/semanticbrowser/kb/internal/kg"
	"github.com/semanticbrowser/kb/internal/validator"
)

func testServer() *Server {
	return &Server{
		Deps: coreops.Deps{
			Engine:     kg.NewEngine(),
			Annotator:  annotator.New(nil),
			Limits:     validator.DefaultLimits(),
			ParserOpts: htmlparser.DefaultOptions(),
		},
		Version: "test",
	}
}

func sendLine(t *testing.T, s *Server, req string) response {
	t.Helper()
	var out bytes.Buffer
	err := s.Serve(context.Background(), strings.NewReader(req+"\n"), &out)
	require.NoError(t, err)

	var resp response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	return resp
}

func TestInitializeAnnouncesProtocolVersionAndToolsCapability(t *testing.T) {
	resp := sendLine(t, testServer(), `{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	require.Nil(t, resp.Error)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result initializeResult
	require.NoError(t, json.Unmarshal(raw, &result))

	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.True(t, result.Capabilities.Tools)
}

func TestToolsListReturnsThreeNamespacedTools(t *testing.T) {
	resp := sendLine(t, testServer(), `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.Nil(t, resp.Error)

	raw, _ := json.Marshal(resp.Result)
	var result toolsListResult
	require.NoError(t, json.Unmarshal(raw, &result))

	require.Len(t, result.Tools, 3)
	names := []string{result.Tools[0].Name, result.Tools[1].Name, result.Tools[2].Name}
	assert.Contains(t, names, "semanticbrowser.parse_html")
	assert.Contains(t, names, "semanticbrowser.query_kg")
	assert.Contains(t, names, "semanticbrowser.browse_url")
}

func TestToolsCallParseHTMLInsertsTriples(t *testing.T) {
	s := testServer()
	req := `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"semanticbrowser.parse_html","arguments":{"html":"<html><head><title>Hi</title></head><body>hello</body></html>"}}}`
	resp := sendLine(t, s, req)
	require.Nil(t, resp.Error)
	assert.Positive(t, s.Deps.Engine.Count())
}

func TestToolsCallQueryKGReturnsAskResult(t *testing.T) {
	s := testServer()
	_, err := s.Deps.Engine.Insert(kg.Triple{Subject: kg.IRI("http://x/s"), Predicate: kg.IRI("http://x/p"), Object: kg.IRI("http://x/o")})
	require.NoError(t, err)

	req := `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"semanticbrowser.query_kg","arguments":{"query":"ASK { <http://x/s> <http://x/p> <http://x/o> }"}}}`
	resp := sendLine(t, s, req)
	require.Nil(t, resp.Error)
}

func TestToolsCallBrowseURLWithoutPoolFails(t *testing.T) {
	resp := sendLine(t, testServer(), `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"semanticbrowser.browse_url","arguments":{"url":"https://example.com"}}}`)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "no browser pool")
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	resp := sendLine(t, testServer(), `{"jsonrpc":"2.0","id":6,"method":"nonexistent"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestInvalidJSONReturnsParseError(t *testing.T) {
	resp := sendLine(t, testServer(), `not json at all`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeParseError, resp.Error.Code)
}
