package annotator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnotateRegexFallbackFindsCapitalizedPhrase(t *testing.T) {
	entities := annotateRegex("I met John Smith at the conference yesterday.")
	require.Len(t, entities, 1)
	assert.Equal(t, "John Smith", entities[0].Text)
	assert.Equal(t, "ENTITY", entities[0].Label)
	assert.Equal(t, 0.5, entities[0].Confidence)
}

func TestAnnotateUsesRegexWhenNoMLStrategyConfigured(t *testing.T) {
	a := New(nil)
	entities := a.Annotate("Jane Doe works at Acme Corp.")
	assert.NotEmpty(t, entities)
	for _, e := range entities {
		assert.Equal(t, "ENTITY", e.Label)
	}
}

func TestCollapseBIOEndsSpanAtO(t *testing.T) {
	preds := []TokenPrediction{
		{Start: 0, End: 4, Tag: "B-PERSON", Confidence: 0.9},
		{Start: 5, End: 10, Tag: "I-PERSON", Confidence: 0.8},
		{Start: 11, End: 15, Tag: "O", Confidence: 0.99},
	}
	text := "John Smith here"
	entities := collapseBIO(preds, 0, text)
	require.Len(t, entities, 1)
	assert.Equal(t, "PERSON", entities[0].Label)
	assert.Equal(t, "John Smith", entities[0].Text)
}

func TestCollapseBIOEndsSpanAtDifferentlyTypedB(t *testing.T) {
	preds := []TokenPrediction{
		{Start: 0, End: 4, Tag: "B-PERSON", Confidence: 0.9},
		{Start: 5, End: 10, Tag: "B-ORG", Confidence: 0.7},
	}
	text := "John Acme"
	entities := collapseBIO(preds, 0, text)
	require.Len(t, entities, 2)
	assert.Equal(t, "PERSON", entities[0].Label)
	assert.Equal(t, "ORG", entities[1].Label)
}

func TestMergeOverlappingKeepsHigherConfidence(t *testing.T) {
	low := Entity{Start: 0, End: 10, Label: "PERSON", Text: "John Smith", Confidence: 0.4}
	high := Entity{Start: 5, End: 15, Label: "PERSON", Text: "Smith here", Confidence: 0.9}

	kept := mergeOverlapping([]Entity{low, high})
	require.Len(t, kept, 1)
	assert.Equal(t, high, kept[0])
}

func TestMergeOverlappingKeepsDisjointSpans(t *testing.T) {
	a := Entity{Start: 0, End: 5, Confidence: 0.5}
	b := Entity{Start: 10, End: 15, Confidence: 0.5}
	kept := mergeOverlapping([]Entity{a, b})
	assert.Len(t, kept, 2)
}

func TestSplitWindowsSingleWindowWhenShort(t *testing.T) {
	windows := splitWindows("short text here", 512, 64)
	require.Len(t, windows, 1)
	assert.Equal(t, 0, windows[0].start)
}

func TestSplitWindowsProducesOverlappingWindowsForLongText(t *testing.T) {
	words := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		words = append(words, "word")
	}
	text := joinWords(words)

	windows := splitWindows(text, 10, 2)
	require.Greater(t, len(windows), 1)
	// Consecutive windows must overlap in byte range.
	for i := 1; i < len(windows); i++ {
		assert.Less(t, windows[i].start, windows[i-1].end)
	}
}

func joinWords(words []string) string {
	out := ""
	for i, w := range words {
		if i > 0 {
			out += " "
		}
		out += w
	}
	return out
}

type fakeMLStrategy struct {
	preds   []TokenPrediction
	err     error
	maxTok  int
	overlap int
}

func (f fakeMLStrategy) Infer(string) ([]TokenPrediction, error) { return f.preds, f.err }
func (f fakeMLStrategy) MaxTokens() int                          { return f.maxTok }
func (f fakeMLStrategy) OverlapTokens() int                      { return f.overlap }

func TestAnnotateFallsBackToRegexWhenMLFails(t *testing.T) {
	a := New(fakeMLStrategy{err: errors.New("model unavailable"), maxTok: 512, overlap: 64})
	entities := a.Annotate("Jane Doe lives in Paris.")
	assert.NotEmpty(t, entities)
	for _, e := range entities {
		assert.Equal(t, "ENTITY", e.Label)
	}
}

func TestAnnotateUsesMLWhenAvailable(t *testing.T) {
	text := "Acme Corp"
	a := New(fakeMLStrategy{
		preds: []TokenPrediction{
			{Start: 0, End: 4, Tag: "B-ORG", Confidence: 0.95},
			{Start: 5, End: 9, Tag: "I-ORG", Confidence: 0.9},
		},
		maxTok:  512,
		overlap: 64,
	})
	entities := a.Annotate(text)
	require.Len(t, entities, 1)
	assert.Equal(t, "ORG", entities[0].Label)
	assert.Equal(t, "Acme Corp", entities[0].Text)
}
