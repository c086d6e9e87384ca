package ocr

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

// unknownBlock is a shape Normalize does not understand.
type unknownBlock struct{}

func (unknownBlock) Kind() string { return "unknown" }

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		output   Output
		wantText string
		wantConf float64
	}{
		{
			name:     "nil output",
			output:   nil,
			wantText: "",
			wantConf: 0,
		},
		{
			name:     "empty output",
			output:   Output{},
			wantText: "",
			wantConf: 0,
		},
		{
			name: "list shaped lines",
			output: Output{Lines{
				{Box: image.Rect(0, 0, 10, 10), Text: "Invoice", Score: 0.9},
				{Box: image.Rect(0, 12, 10, 22), Text: "Total 100", Score: 0.7},
			}},
			wantText: "Invoice Total 100",
			wantConf: 0.8,
		},
		{
			name:     "dict shaped records",
			output:   Output{Record{Text: "VAT", Score: 0.5}, Record{Text: "15%", Score: 1.0}},
			wantText: "VAT 15%",
			wantConf: 0.75,
		},
		{
			name: "mixed shapes keep encounter order",
			output: Output{
				Record{Text: "A", Score: 0.2},
				Lines{{Text: "B", Score: 0.4}, {Text: "C", Score: 0.6}},
				Record{Text: "D", Score: 0.8},
			},
			wantText: "A B C D",
			wantConf: 0.5,
		},
		{
			name:     "unknown blocks are ignored",
			output:   Output{unknownBlock{}, Record{Text: "only", Score: 0.4}, unknownBlock{}},
			wantText: "only",
			wantConf: 0.4,
		},
		{
			name:     "only unknown blocks",
			output:   Output{unknownBlock{}},
			wantText: "",
			wantConf: 0,
		},
		{
			name:     "empty lines block",
			output:   Output{Lines{}},
			wantText: "",
			wantConf: 0,
		},
		{
			name:     "result is trimmed",
			output:   Output{Record{Text: "  padded", Score: 1}, Record{Text: "text  ", Score: 1}},
			wantText: "padded text",
			wantConf: 1,
		},
		{
			name:     "pointer shapes",
			output:   Output{&Record{Text: "x", Score: 0.3}, &Lines{{Text: "y", Score: 0.5}}},
			wantText: "x y",
			wantConf: 0.4,
		},
		{
			name:     "empty texts still count towards the mean",
			output:   Output{Record{Text: "word", Score: 0.9}, Record{Text: "", Score: 0.1}},
			wantText: "word",
			wantConf: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, conf := Normalize(tt.output)
			assert.Equal(t, tt.wantText, text)
			assert.InDelta(t, tt.wantConf, conf, 1e-9)
		})
	}
}

func TestBlockKinds(t *testing.T) {
	assert.Equal(t, "lines", Lines{}.Kind())
	assert.Equal(t, "record", Record{}.Kind())
}
