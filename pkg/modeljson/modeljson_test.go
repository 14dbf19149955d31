package modeljson

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"faces":[]}`, `{"faces":[]}`},
		{"fenced", "```json\n{\"faces\":[]}\n```", `{"faces":[]}`},
		{"prose around", `Sure! Here you go: {"faces":[]} Hope it helps.`, `{"faces":[]}`},
		{"trailing comma", `{"faces":[{"confidence":0.9,},]}`, `{"faces":[{"confidence":0.9}]}`},
		{"block comment", `{"faces":/* none */[]}`, `{"faces":[]}`},
		{"line comment", "{\n// faces\n\"faces\":[]\n}", "{\n\n\"faces\":[]\n}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestParseFaceDetection(t *testing.T) {
	raw := "```json\n" + `{
  "faces": [
    {"confidence": 0.92, "box": {"x": 0.4, "y": 0.3, "w": 0.2, "h": 0.25}},
    {"confidence": 0.10, "box": {"x": 0.1, "y": 0.1, "w": 0, "h": 0.1}},
  ]
}` + "\n```"

	det, err := ParseFaceDetection(raw)
	require.NoError(t, err)
	require.Len(t, det.Faces, 1)
	assert.InDelta(t, 0.92, det.Faces[0].Confidence, 1e-9)
	assert.InDelta(t, 0.25, det.Faces[0].Box.H, 1e-9)
}

func TestParseFaceDetectionEmpty(t *testing.T) {
	det, err := ParseFaceDetection(`{"faces": []}`)
	require.NoError(t, err)
	assert.Empty(t, det.Faces)
}

func TestParseFaceDetectionErrors(t *testing.T) {
	_, err := ParseFaceDetection("I cannot see any image.")
	assert.True(t, errors.Is(err, ErrNoJSON))

	_, err = ParseFaceDetection(`{"faces": "lots"}`)
	assert.Error(t, err)
}
