//go:build !cgo || !tesseract

package ocr

import (
	"context"
	"fmt"
)

// TesseractEngine is a stub for builds without cgo or the tesseract tag.
type TesseractEngine struct{}

// NewTesseractEngine creates a stub engine that reports unavailability.
func NewTesseractEngine(Options) *TesseractEngine {
	return &TesseractEngine{}
}

// Name implements Engine. It matches the cgo build so metrics and logs keep
// the same label.
func (e *TesseractEngine) Name() string {
	return "gosseract"
}

// Available implements Engine. The binding is not linked in, so it is never available.
func (e *TesseractEngine) Available() bool {
	return false
}

// Recognize implements Engine by always failing with ErrEngineUnavailable.
func (e *TesseractEngine) Recognize(context.Context, string, string) (Output, error) {
	return nil, fmt.Errorf("built without Tesseract support: %w", ErrEngineUnavailable)
}
