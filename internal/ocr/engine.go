package ocr

import (
	"context"
	"errors"
	"time"
)

// ErrEngineUnavailable is returned by engines that cannot run in this build
// or on this host.
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

// Engine is one entry point into the external OCR engine.
type Engine interface {
	// Name identifies the engine in logs and metrics.
	Name() string

	// Available reports whether Recognize can be expected to work.
	Available() bool

	// Recognize reads the image file at imagePath using the given Tesseract
	// language code ("eng", "ara", ...). Scores in the output are 0.0-1.0.
	Recognize(ctx context.Context, imagePath, language string) (Output, error)
}

// Page segmentation modes passed to Tesseract.
const (
	// PSMAutoOSD is automatic page segmentation with orientation and script detection.
	PSMAutoOSD = 1

	// PSMAuto is automatic page segmentation without orientation detection.
	PSMAuto = 3
)

// Options configures both engines.
type Options struct {
	// TessdataPrefix is the directory holding *.traineddata files. Empty uses
	// the engine's built-in default (TESSDATA_PREFIX or the install location).
	TessdataPrefix string

	// Orientation enables text-line orientation detection.
	Orientation bool

	// BinaryPath is the tesseract executable used by CLIEngine. Empty searches PATH.
	BinaryPath string

	// Timeout bounds a single CLIEngine run. 0 means no limit beyond the context.
	Timeout time.Duration
}

// DefaultOptions returns options with orientation detection enabled.
func DefaultOptions() Options {
	return Options{
		Orientation: true,
		Timeout:     60 * time.Second,
	}
}

// PageSegMode returns the Tesseract page segmentation mode for these options.
func (o Options) PageSegMode() int {
	if o.Orientation {
		return PSMAutoOSD
	}
	return PSMAuto
}

// IsUnavailable reports whether err means an engine could not run at all.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrEngineUnavailable)
}
