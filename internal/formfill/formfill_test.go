package formfill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScorePrefersCloserDescriptorMatch(t *testing.T) {
	email := FieldDescriptor{Name: "email", Placeholder: "you@example.com"}
	phone := FieldDescriptor{Name: "phone", Placeholder: "555-0100"}

	assert.Greater(t, score("email address", email), score("email address", phone))
}

func TestScoreZeroForEmptyHintOrField(t *testing.T) {
	assert.Equal(t, float64(0), score("", FieldDescriptor{Name: "email"}))
	assert.Equal(t, float64(0), score("email", FieldDescriptor{}))
}

func TestMatchReturnsAmbiguousOnTie(t *testing.T) {
	fields := []FieldDescriptor{
		{Selector: "#a", Name: "name", LabelText: "name"},
		{Selector: "#b", Name: "name", LabelText: "name"},
	}
	_, reason, ok := match("name", fields, map[string]bool{})
	assert.False(t, ok)
	assert.Contains(t, reason, "ambiguous")
}

func TestMatchSkipsClaimedFields(t *testing.T) {
	fields := []FieldDescriptor{
		{Selector: "#email", Name: "email"},
	}
	claimed := map[string]bool{"#email": true}
	_, reason, ok := match("email", fields, claimed)
	assert.False(t, ok)
	assert.Contains(t, reason, "no matching field")
}

func TestMatchRejectsCandidateUnderThreshold(t *testing.T) {
	fields := []FieldDescriptor{
		{Selector: "#unrelated", Name: "color_theme"},
	}
	_, reason, ok := match("email address", fields, map[string]bool{})
	assert.False(t, ok)
	assert.Contains(t, reason, "no matching field")
}

func TestJaccardOverlap(t *testing.T) {
	a := tokenSet("email address field")
	b := tokenSet("email address")
	require.Greater(t, jaccard(a, b), 0.5)
	assert.Equal(t, float64(0), jaccard(map[string]bool{}, b))
}
