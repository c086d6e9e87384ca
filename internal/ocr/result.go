package ocr

import "image"

// Block is one unit of engine output. Concrete shapes are Lines and Record.
type Block interface {
	// Kind names the shape, for logging.
	Kind() string
}

// Line is a single recognized line: where it is, what it says and how sure
// the engine is about it.
type Line struct {
	Box   image.Rectangle `json:"box"`
	Text  string          `json:"text"`
	Score float64         `json:"score"`
}

// Lines is the list-shaped block.
type Lines []Line

// Kind implements Block.
func (Lines) Kind() string { return "lines" }

// Record is the dict-shaped block: a text and its score with no geometry.
type Record struct {
	Text  string  `json:"rec_text"`
	Score float64 `json:"rec_score"`
}

// Kind implements Block.
func (Record) Kind() string { return "record" }

// Output is everything one engine call produced, in reading order.
type Output []Block
