package pipeline

import (
	"strings"
	"time"
)

// Pass is the normalized outcome of one language pass.
type Pass struct {
	Language   string        `json:"language" yaml:"language"`
	Engine     string        `json:"engine" yaml:"engine"`
	Text       string        `json:"text" yaml:"text"`
	Confidence float64       `json:"confidence" yaml:"confidence"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

// Merged is the combination of two passes.
type Merged struct {
	Text       string  `json:"text" yaml:"text"`
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Language is the language of the pass whose text comes first.
	Language string `json:"language" yaml:"language"`
}

// Merge combines two language passes.
//
// The pass with the higher confidence leads: its text comes first, followed
// by a space and the other pass's text, and its confidence becomes the
// merged confidence. Ties go to primary. The joined text is trimmed, so an
// empty pass leaves no stray space.
func Merge(primary, secondary Pass) Merged {
	lead, tail := primary, secondary
	if secondary.Confidence > primary.Confidence {
		lead, tail = secondary, primary
	}

	return Merged{
		Text:       strings.TrimSpace(lead.Text + " " + tail.Text),
		Confidence: lead.Confidence,
		Language:   lead.Language,
	}
}
