package kg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertIdempotent(t *testing.T) {
	e := NewEngine()
	tr := Triple{Subject: IRI("http://ex/a"), Predicate: IRI("http://ex/p"), Object: Literal{Value: "v"}}

	inserted, err := e.Insert(tr)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = e.Insert(tr)
	require.NoError(t, err)
	assert.False(t, inserted, "re-inserting an existing triple must be a no-op")
	assert.Equal(t, 1, e.Count())
}

func TestInsertThenDeleteRestoresState(t *testing.T) {
	e := NewEngine()
	tr := Triple{Subject: IRI("http://ex/a"), Predicate: IRI("http://ex/p"), Object: Literal{Value: "v"}}

	_, err := e.Insert(tr)
	require.NoError(t, err)
	assert.True(t, e.Has(tr))

	removed, err := e.Delete(tr)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, e.Has(tr))
	assert.Equal(t, 0, e.Count())
}

func TestInsertDataThenAsk(t *testing.T) {
	e := NewEngine()
	res, err := e.Query(`INSERT DATA { <http://ex/a> <http://ex/p> "v" }`)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Affected, 1)

	res, err = e.Query(`ASK { <http://ex/a> <http://ex/p> "v" }`)
	require.NoError(t, err)
	assert.True(t, res.IsBoolean)
	assert.True(t, res.Boolean)
}

func TestSelectOverMicrodataLikeTriples(t *testing.T) {
	e := NewEngine()
	_, err := e.InsertBatch([]Triple{
		{Subject: BlankNode("b1"), Predicate: RDFType, Object: IRI("http://schema.org/Person")},
		{Subject: BlankNode("b1"), Predicate: IRI("http://schema.org/name"), Object: Literal{Value: "Alice"}},
	})
	require.NoError(t, err)

	res, err := e.Query(`SELECT ?n WHERE { ?s <http://schema.org/name> ?n }`)
	require.NoError(t, err)
	require.Len(t, res.Solutions, 1)
	lit, ok := res.Solutions[0]["n"].(Literal)
	require.True(t, ok)
	assert.Equal(t, "Alice", lit.Value)
}

func TestInferRulesTransitiveClosureAndFixpoint(t *testing.T) {
	e := NewEngine()
	_, err := e.InsertBatch([]Triple{
		{Subject: IRI("http://ex/C1"), Predicate: RDFSSubClassOf, Object: IRI("http://ex/C2")},
		{Subject: IRI("http://ex/C2"), Predicate: RDFSSubClassOf, Object: IRI("http://ex/C3")},
		{Subject: IRI("http://ex/x"), Predicate: RDFType, Object: IRI("http://ex/C1")},
	})
	require.NoError(t, err)

	inserted, _, err := e.InferRules(DefaultMaxInferIterations)
	require.NoError(t, err)
	assert.Greater(t, inserted, 0)

	res, err := e.Query(`ASK { <http://ex/x> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://ex/C3> }`)
	require.NoError(t, err)
	assert.True(t, res.Boolean)

	second, _, err := e.InferRules(DefaultMaxInferIterations)
	require.NoError(t, err)
	assert.Equal(t, 0, second, "a second infer_rules() call must insert zero new triples")
}

func TestRoundTripParseEmitQuery(t *testing.T) {
	e := NewEngine()
	triples := []Triple{
		{Subject: BlankNode("b1"), Predicate: RDFType, Object: IRI("http://schema.org/Person")},
		{Subject: BlankNode("b1"), Predicate: IRI("http://schema.org/name"), Object: Literal{Value: "Alice"}},
	}
	n, err := e.InsertBatch(triples)
	require.NoError(t, err)
	assert.Equal(t, len(triples), n)

	res, err := e.Query(`SELECT * WHERE { ?s ?p ?o }`)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(res.Solutions), len(triples))
}
