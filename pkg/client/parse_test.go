package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalysisResult(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		label string
		boxW  float64
	}{
		{
			name:  "plain",
			raw:   `{"primary":{"label":"cat","confidence":0.9,"box":{"x":0.1,"y":0.2,"w":0.5,"h":0.6}}}`,
			label: "cat",
			boxW:  0.5,
		},
		{
			name: "fenced with comments",
			raw: "```json\n" + `{
  // the subject
  "primary": {"label": "dog", "box": {"x": 0, "y": 0, "w": 0.4, "h": 0.4},},
  /* extra */ "tags": ["a", "b",],
}` + "\n```",
			label: "dog",
			boxW:  0.4,
		},
		{
			name:  "surrounded by prose",
			raw:   `Sure! Here it is: {"primary":{"label":"car","box":{"w":0.3}}} Hope that helps.`,
			label: "car",
			boxW:  0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseAnalysisResult(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.label, res.Primary.Label)
			assert.InDelta(t, tt.boxW, res.Primary.Box.W, 1e-9)
		})
	}
}

func TestParseAnalysisResultErrors(t *testing.T) {
	_, err := ParseAnalysisResult("I cannot see an image.")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = ParseAnalysisResult(`{"primary": {"label": }`)
	assert.Error(t, err)
}
