package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected *DetectedCar
	}{
		{
			name:     "all fields",
			line:     "Bone Shaker | Hot Wheels | Mainline | Black | 1:64",
			expected: &DetectedCar{Name: "Bone Shaker", Brand: "Hot Wheels", Series: "Mainline", Color: "Black", Scale: "1:64"},
		},
		{
			name:     "name and brand only",
			line:     "GT40 | Hot Wheels",
			expected: &DetectedCar{Name: "GT40", Brand: "Hot Wheels"},
		},
		{
			name:     "unknown placeholders are blanked",
			line:     "GT40 | Hot Wheels | unknown | - | Unknown",
			expected: &DetectedCar{Name: "GT40", Brand: "Hot Wheels"},
		},
		{
			// Lines without a pipe separator are indistinguishable from
			// preamble; require at least one | for a line to count.
			name:     "bare text without pipe",
			line:     "This photo shows a toy car.",
			expected: nil,
		},
		{
			name:     "empty line",
			line:     "",
			expected: nil,
		},
		{
			name:     "blank name",
			line:     " | Hot Wheels",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLine(tt.line))
		})
	}
}

func TestParseResponseSkipsPreamble(t *testing.T) {
	raw := "Here is what I can identify:\n\n" +
		"Bone Shaker | Hot Wheels | Mainline | Black | 1:64\n" +
		"Twin Mill | Hot Wheels | | Green | 1:64\n"

	cars := ParseResponse(raw)
	assert.Len(t, cars, 2)
	assert.Equal(t, "Bone Shaker", cars[0].Name)
	assert.Equal(t, "Green", cars[1].Color)
	assert.Empty(t, cars[1].Series)
}

func TestParseResponseEmpty(t *testing.T) {
	assert.Empty(t, ParseResponse(""))
	assert.Empty(t, ParseResponse("no cars visible"))
}
