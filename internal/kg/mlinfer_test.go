package kg

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semanticbrowser/kb/internal/mlinference"
)

// testPredictor builds a tiny, well-separated 1-dimensional TransE table
// so PredictTails' ranking is deterministic: tails close to h+r score
// high, everything else scores low.
func testPredictor(t *testing.T) *mlinference.Engine {
	t.Helper()
	entities := &mlinference.EmbeddingTable{
		Dim:  1,
		Rows: [][]float32{{0}, {1}, {5}, {10}},
		IRIToRow: map[string]int{
			"e:alice": 0,
			"e:bob":   1,
			"e:carol": 2,
			"e:dave":  3,
		},
		RowToIRI: []string{"e:alice", "e:bob", "e:carol", "e:dave"},
	}
	relations := &mlinference.EmbeddingTable{
		Dim:      1,
		Rows:     [][]float32{{1}},
		IRIToRow: map[string]int{"r:knows": 0},
		RowToIRI: []string{"r:knows"},
	}
	return &mlinference.Engine{Entities: entities, Relations: relations, Kind: mlinference.TransE}
}

func TestMLInferInsertsOnlyPredictionsAboveThreshold(t *testing.T) {
	e := NewEngine()
	predictor := testPredictor(t)

	inserted, err := e.MLInfer(predictor, 4, 5, 0.6, 1000)
	require.NoError(t, err)
	assert.Greater(t, inserted, 0)

	for _, tr := range e.All() {
		if tr.Predicate == MLConfidence {
			conf, ok := tr.Object.(Literal)
			require.True(t, ok)
			f, parseErr := strconv.ParseFloat(conf.Value, 64)
			require.NoError(t, parseErr)
			assert.GreaterOrEqual(t, f, 0.6)
		}
	}
}

func TestMLInferRespectsMaxInserts(t *testing.T) {
	e := NewEngine()
	predictor := testPredictor(t)

	inserted, err := e.MLInfer(predictor, 4, 5, 0.0, 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, inserted, 2)
}

func TestMLInferSkipsAlreadyPresentTriples(t *testing.T) {
	e := NewEngine()
	predictor := testPredictor(t)

	_, err := e.Insert(Triple{Subject: IRI("e:alice"), Predicate: IRI("r:knows"), Object: IRI("e:bob")})
	require.NoError(t, err)
	before := e.Count()

	_, err = e.MLInfer(predictor, 4, 5, 0.0, 1000)
	require.NoError(t, err)

	var aliceBobCount int
	for _, tr := range e.All() {
		if tr.Subject == IRI("e:alice") && tr.Predicate == IRI("r:knows") && tr.Object == IRI("e:bob") {
			aliceBobCount++
		}
	}
	assert.Equal(t, 1, aliceBobCount)
	assert.GreaterOrEqual(t, e.Count(), before)
}

func TestMLInferAnnotatesEachInsertedTripleWithReifiedConfidence(t *testing.T) {
	e := NewEngine()
	predictor := testPredictor(t)

	inserted, err := e.MLInfer(predictor, 4, 1, 0.0, 1000)
	require.NoError(t, err)
	require.Greater(t, inserted, 0)

	var confidenceFacts int
	for _, tr := range e.All() {
		if tr.Predicate == MLConfidence {
			confidenceFacts++
		}
	}
	assert.Equal(t, inserted, confidenceFacts)
}

func TestMLInferWithThresholdAboveEveryScoreInsertsNothing(t *testing.T) {
	e := NewEngine()
	predictor := testPredictor(t)

	inserted, err := e.MLInfer(predictor, 4, 5, 1.1, 1000)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
}
