package ocr

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Recognition is the output of one language pass and the engine that produced it.
type Recognition struct {
	Output Output
	Engine string
}

// FallbackFunc is called each time the primary engine fails and the fallback
// engine is tried instead.
type FallbackFunc func(primary, language string, err error)

// RecognizerOption configures a Recognizer.
type RecognizerOption func(*Recognizer)

// WithFallbackHook registers fn to be called whenever the fallback is used.
func WithFallbackHook(fn FallbackFunc) RecognizerOption {
	return func(r *Recognizer) {
		r.onFallback = fn
	}
}

// Recognizer calls the primary engine and, if that fails, the fallback engine.
//
// Both engines are expected to be equivalent; which one served a pass is
// reported in Recognition.Engine. A Recognizer holds no per-call state and is
// safe for concurrent use as long as its engines are.
type Recognizer struct {
	primary    Engine
	fallback   Engine
	onFallback FallbackFunc
}

// NewRecognizer returns a Recognizer over primary and fallback. fallback may
// be nil, in which case primary errors are returned directly.
func NewRecognizer(primary, fallback Engine, opts ...RecognizerOption) *Recognizer {
	r := &Recognizer{
		primary:  primary,
		fallback: fallback,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recognize runs one language pass over the image at imagePath.
//
// The primary engine is skipped when it reports itself unavailable. Any
// primary failure is logged (at debug level when the engine is merely
// unavailable) and the fallback is tried. When both fail the
// returned error wraps both causes.
func (r *Recognizer) Recognize(ctx context.Context, imagePath, language string) (*Recognition, error) {
	first := r.try(ctx, r.primary, imagePath, language)
	if first.err == nil {
		return first.rec, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("recognition cancelled: %w", err)
	}
	if r.fallback == nil {
		return nil, first.err
	}

	// An engine left out of the build is expected, not a failure worth a warning.
	event := log.Warn()
	if IsUnavailable(first.err) {
		event = log.Debug()
	}
	event.
		Err(first.err).
		Str("engine", engineName(r.primary)).
		Str("fallback", r.fallback.Name()).
		Str("language", language).
		Msg("Primary OCR engine failed, using fallback")

	if r.onFallback != nil {
		r.onFallback(engineName(r.primary), language, first.err)
	}

	second := r.try(ctx, r.fallback, imagePath, language)
	if second.err == nil {
		return second.rec, nil
	}

	return nil, errors.Join(first.err, second.err)
}

// Available reports whether at least one engine can run.
func (r *Recognizer) Available() bool {
	if r.primary != nil && r.primary.Available() {
		return true
	}
	return r.fallback != nil && r.fallback.Available()
}

// Engines reports the availability of each configured engine by name.
func (r *Recognizer) Engines() map[string]bool {
	engines := make(map[string]bool, 2)
	for _, e := range []Engine{r.primary, r.fallback} {
		if e != nil {
			engines[e.Name()] = e.Available()
		}
	}
	return engines
}

func engineName(e Engine) string {
	if e == nil {
		return "none"
	}
	return e.Name()
}

type attempt struct {
	rec *Recognition
	err error
}

func (r *Recognizer) try(ctx context.Context, e Engine, imagePath, language string) attempt {
	if e == nil {
		return attempt{err: ErrEngineUnavailable}
	}
	if !e.Available() {
		return attempt{err: fmt.Errorf("%s: %w", e.Name(), ErrEngineUnavailable)}
	}

	out, err := e.Recognize(ctx, imagePath, language)
	if err != nil {
		return attempt{err: fmt.Errorf("%s: %w", e.Name(), err)}
	}
	return attempt{rec: &Recognition{Output: out, Engine: e.Name()}}
}
