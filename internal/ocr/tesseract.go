//go:build cgo && tesseract

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine recognizes text in-process through the gosseract binding.
type TesseractEngine struct {
	opts Options
}

// NewTesseractEngine creates the in-process engine.
func NewTesseractEngine(opts Options) *TesseractEngine {
	return &TesseractEngine{opts: opts}
}

// Name implements Engine.
func (e *TesseractEngine) Name() string {
	return "gosseract"
}

// Available implements Engine. The binding is linked in, so it is always
// considered available; missing language data surfaces from Recognize.
func (e *TesseractEngine) Available() bool {
	return true
}

// Recognize performs OCR on an image file and returns one Lines block.
//
// Parameters:
//   - ctx: Checked before the engine starts. A running gosseract call cannot
//     be interrupted.
//   - imagePath: Path to the image file. Supports PNG, JPEG, TIFF, BMP.
//   - language: Tesseract language code (e.g., "eng" or "ara"). The
//     corresponding language data must be installed.
//
// Returns:
//   - Output: A single Lines block with one entry per text line, in reading
//     order. Line confidence is converted from 0-100 to 0.0-1.0 and lines
//     without text are dropped.
//   - error: Non-nil if the engine cannot be configured or recognition fails.
//
// A fresh client is created per call because gosseract clients are not safe
// for concurrent use.
func (e *TesseractEngine) Recognize(ctx context.Context, imagePath, language string) (Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if e.opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.opts.TessdataPrefix); err != nil {
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}

	if err := client.SetLanguage(language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}

	if err := client.SetPageSegMode(gosseract.PageSegMode(e.opts.PageSegMode())); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	if err := client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	lines := make(Lines, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		lines = append(lines, Line{
			Box:   box.Box,
			Text:  text,
			Score: box.Confidence / 100.0,
		})
	}

	return Output{lines}, nil
}
