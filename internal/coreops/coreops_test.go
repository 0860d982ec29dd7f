package coreops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semanticbrowser/kb/internal/annotator"
	"github.com/semanticbrowser/kb/internal/htmlparser"
	"github.com/semanticbrowser/kb/internal/kg"
	"github.com/semanticbrowser/kb/internal/validator"
)

func testDeps() Deps {
	return Deps{
		Engine:     kg.NewEngine(),
		Annotator:  annotator.New(nil),
		Limits:     validator.DefaultLimits(),
		ParserOpts: htmlparser.DefaultOptions(),
	}
}

func TestParseHTMLInsertsTriplesAndReturnsTitle(t *testing.T) {
	d := testDeps()
	html := `<html><head><title>Acme Corp</title></head><body>Acme Corp announced Jane Smith as CEO.</body></html>`

	result, err := ParseHTML(d, []byte(html))
	require.NoError(t, err)
	assert.True(t, result.HasTitle)
	assert.Equal(t, "Acme Corp", result.Title)
	assert.Positive(t, d.Engine.Count())
}

func TestParseHTMLRejectsOversizedInput(t *testing.T) {
	d := testDeps()
	d.Limits.MaxHTMLSizeBytes = 4
	_, err := ParseHTML(d, []byte(`<html></html>`))
	require.Error(t, err)
}

func TestQueryKGRendersAskResult(t *testing.T) {
	d := testDeps()
	_, err := d.Engine.Insert(kg.Triple{Subject: kg.IRI("http://x/s"), Predicate: kg.IRI("http://x/p"), Object: kg.IRI("http://x/o")})
	require.NoError(t, err)

	out, err := QueryKG(d, `ASK { <http://x/s> <http://x/p> <http://x/o> }`)
	require.NoError(t, err)
	assert.Equal(t, []string{"true"}, out)
}

func TestQueryKGRejectsOverlongQuery(t *testing.T) {
	d := testDeps()
	d.Limits.MaxQueryLength = 5
	_, err := QueryKG(d, `ASK { <http://x/s> <http://x/p> <http://x/o> }`)
	require.Error(t, err)
}

func TestTopMatchingSentencesScoresByTokenOverlap(t *testing.T) {
	text := "Acme Corp makes widgets. Jane Smith leads engineering. The weather today is sunny."
	matches := topMatchingSentences(text, "Jane Smith engineering", 5)
	require.NotEmpty(t, matches)
	assert.Contains(t, matches[0], "Jane Smith")
}

func TestTopMatchingSentencesEmptyQueryReturnsNil(t *testing.T) {
	assert.Nil(t, topMatchingSentences("some text here", "", 5))
}

func TestTopMatchingSentencesCapsAtTopN(t *testing.T) {
	text := "cat dog. cat bird. cat fish. cat mouse. cat frog. cat bear."
	matches := topMatchingSentences(text, "cat", 3)
	assert.Len(t, matches, 3)
}
