package fixset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ValidSet(t *testing.T) {
	input := `{
		"id": "batch-1",
		"fixes": [
			{
				"id": "fix-1",
				"issue_id": "issue-1",
				"location": {"path": "src/main.go", "span": {"start": 10, "end": 13}},
				"original_text": "foo",
				"replacement_text": "bar",
				"confidence": 0.9,
				"category": "correctness"
			}
		]
	}`

	set, err := Parse([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, "batch-1", set.ID)
	require.Len(t, set.Fixes, 1)
	assert.Equal(t, "fix-1", set.Fixes[0].ID)
	assert.Equal(t, "src/main.go", set.Fixes[0].Location.Path)
}

func TestParse_SynthesizesMissingIDs(t *testing.T) {
	input := `{
		"fixes": [
			{
				"issue_id": "issue-7",
				"location": {"path": "a.go", "span": {"start": 5, "end": 8}},
				"original_text": "old",
				"replacement_text": "new",
				"confidence": 0.5
			}
		]
	}`

	set, err := Parse([]byte(input))
	require.NoError(t, err)
	assert.NotEmpty(t, set.ID, "set id should be generated")
	assert.Equal(t, "issue-7-5-8", set.Fixes[0].ID)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "empty set",
			input: `{"id": "b", "fixes": []}`,
		},
		{
			name: "inverted span",
			input: `{"fixes": [{"issue_id": "i", "location": {"path": "a.go",
				"span": {"start": 10, "end": 5}}, "original_text": "", "replacement_text": "x", "confidence": 0.5}]}`,
		},
		{
			name: "negative offset",
			input: `{"fixes": [{"issue_id": "i", "location": {"path": "a.go",
				"span": {"start": -1, "end": 5}}, "original_text": "abcdef", "replacement_text": "x", "confidence": 0.5}]}`,
		},
		{
			name: "confidence out of range",
			input: `{"fixes": [{"issue_id": "i", "location": {"path": "a.go",
				"span": {"start": 0, "end": 3}}, "original_text": "abc", "replacement_text": "x", "confidence": 1.5}]}`,
		},
		{
			name: "absolute path",
			input: `{"fixes": [{"issue_id": "i", "location": {"path": "/etc/passwd",
				"span": {"start": 0, "end": 3}}, "original_text": "abc", "replacement_text": "x", "confidence": 0.5}]}`,
		},
		{
			name: "path escapes root",
			input: `{"fixes": [{"issue_id": "i", "location": {"path": "../outside.go",
				"span": {"start": 0, "end": 3}}, "original_text": "abc", "replacement_text": "x", "confidence": 0.5}]}`,
		},
		{
			name: "span and original_text length mismatch",
			input: `{"fixes": [{"issue_id": "i", "location": {"path": "a.go",
				"span": {"start": 0, "end": 3}}, "original_text": "abcdef", "replacement_text": "x", "confidence": 0.5}]}`,
		},
		{
			name: "duplicate ids",
			input: `{"fixes": [
				{"id": "f", "issue_id": "i", "location": {"path": "a.go", "span": {"start": 0, "end": 1}}, "original_text": "a", "replacement_text": "x", "confidence": 0.5},
				{"id": "f", "issue_id": "i", "location": {"path": "a.go", "span": {"start": 2, "end": 3}}, "original_text": "c", "replacement_text": "y", "confidence": 0.5}
			]}`,
		},
		{
			name:  "unknown field",
			input: `{"fixes": [], "surprise": true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}
