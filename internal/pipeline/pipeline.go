// Package pipeline turns an uploaded image into merged OCR text.
//
// A run decodes the payload, preprocesses the image, writes it to a private
// temporary PNG, recognizes it once per language, normalizes each pass,
// merges the two passes and optionally extracts invoice fields from the
// merged text. The temporary file is removed before the run returns, whether
// or not it succeeded.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ironsheep/invoice-ocr/internal/imaging"
	"github.com/ironsheep/invoice-ocr/internal/invoice"
	"github.com/ironsheep/invoice-ocr/internal/ocr"
)

// Recognizer runs one language pass over an image file.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath, language string) (*ocr.Recognition, error)
}

// Observer is told about every completed pass.
type Observer interface {
	ObservePass(p Pass)
}

// Config controls a Pipeline.
type Config struct {
	// PrimaryLanguage is recognized first and wins confidence ties.
	PrimaryLanguage string

	// SecondaryLanguage is recognized second.
	SecondaryLanguage string

	Preprocess imaging.PreprocessOptions

	// TempDir holds the per-request PNG files. Empty uses os.TempDir().
	TempDir string

	// ExtractInvoice enables invoice field extraction on the merged text.
	ExtractInvoice bool
}

// DefaultConfig returns English as primary and Arabic as secondary language
// with the default preprocessing chain and invoice extraction enabled.
func DefaultConfig() Config {
	return Config{
		PrimaryLanguage:   "eng",
		SecondaryLanguage: "ara",
		Preprocess:        imaging.DefaultPreprocessOptions(),
		ExtractInvoice:    true,
	}
}

// ImageInfo describes the uploaded image.
type ImageInfo struct {
	Format    string `json:"format" yaml:"format"`
	Width     int    `json:"width" yaml:"width"`
	Height    int    `json:"height" yaml:"height"`
	SizeBytes int    `json:"size_bytes" yaml:"size_bytes"`
}

// Result is the outcome of a successful run.
type Result struct {
	Merged `yaml:",inline"`

	// Passes holds the primary pass followed by the secondary pass.
	Passes []Pass `json:"passes" yaml:"passes"`

	// Invoice is nil when extraction is disabled.
	Invoice *invoice.Fields `json:"invoice,omitempty" yaml:"invoice,omitempty"`

	Image ImageInfo `json:"image" yaml:"image"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver reports every pass to o.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// WithTracer sets the tracer used for pipeline spans. The global tracer
// provider is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = t
	}
}

// Pipeline runs the OCR flow. It keeps no state between runs and may be
// shared by concurrent requests.
type Pipeline struct {
	cfg        Config
	recognizer Recognizer
	observer   Observer
	tracer     trace.Tracer
}

// New creates a Pipeline that recognizes text with rec.
func New(rec Recognizer, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		recognizer: rec,
		tracer:     otel.Tracer("invoice-ocr/pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Engines reports engine availability when the recognizer can tell, and nil otherwise.
func (p *Pipeline) Engines() map[string]bool {
	if r, ok := p.recognizer.(interface{ Engines() map[string]bool }); ok {
		return r.Engines()
	}
	return nil
}

// RunPayload decodes a base64 image payload (optionally a data URL) and runs it.
func (p *Pipeline) RunPayload(ctx context.Context, payload string) (*Result, error) {
	decoded, err := imaging.DecodePayload(payload, p.cfg.Preprocess.MaxInputPixels)
	if err != nil {
		return nil, err
	}
	return p.RunDecoded(ctx, decoded)
}

// RunFile reads and runs an image file.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	decoded, err := imaging.DecodeImage(data, p.cfg.Preprocess.MaxInputPixels)
	if err != nil {
		return nil, err
	}
	return p.RunDecoded(ctx, decoded)
}

// RunDecoded runs an already decoded upload.
func (p *Pipeline) RunDecoded(ctx context.Context, decoded *imaging.DecodedImage) (*Result, error) {
	res, err := p.RunImage(ctx, decoded.Image)
	if err != nil {
		return nil, err
	}
	res.Image = ImageInfo{
		Format:    decoded.Format,
		Width:     decoded.Width,
		Height:    decoded.Height,
		SizeBytes: decoded.SizeBytes,
	}
	return res, nil
}

// RunImage preprocesses img, recognizes it in both languages and merges the passes.
func (p *Pipeline) RunImage(ctx context.Context, img image.Image) (res *Result, err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("ocr.primary_language", p.cfg.PrimaryLanguage),
		attribute.String("ocr.secondary_language", p.cfg.SecondaryLanguage),
	))
	defer func() {
		endSpan(span, err)
	}()

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, imaging.ErrEmptyImage
	}

	path, err := p.prepare(ctx, img)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn().Err(rmErr).Str("path", path).Msg("Failed to remove temporary image")
		}
	}()

	primary, err := p.runPass(ctx, path, p.cfg.PrimaryLanguage)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	secondary, err := p.runPass(ctx, path, p.cfg.SecondaryLanguage)
	if err != nil {
		return nil, err
	}

	merged := Merge(primary, secondary)
	res = &Result{
		Merged: merged,
		Passes: []Pass{primary, secondary},
	}

	if p.cfg.ExtractInvoice {
		fields := invoice.Extract(merged.Text)
		res.Invoice = &fields
	}

	span.SetAttributes(
		attribute.String("ocr.winning_language", merged.Language),
		attribute.Float64("ocr.confidence", merged.Confidence),
		attribute.Int("ocr.text_length", len(merged.Text)),
	)

	return res, nil
}

// prepare preprocesses img and writes it to a new temporary PNG.
func (p *Pipeline) prepare(ctx context.Context, img image.Image) (string, error) {
	_, span := p.tracer.Start(ctx, "pipeline.preprocess")
	defer span.End()

	start := time.Now()
	processed := imaging.Preprocess(img, p.cfg.Preprocess)

	path, err := imaging.WriteTempPNG(processed, p.cfg.TempDir, "ocr-request")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to prepare image: %w", err)
	}

	log.Debug().
		Int("width", processed.Bounds().Dx()).
		Int("height", processed.Bounds().Dy()).
		Dur("duration", time.Since(start)).
		Msg("Image preprocessed")

	return path, nil
}

// runPass recognizes the image at path in one language and normalizes the output.
func (p *Pipeline) runPass(ctx context.Context, path, language string) (pass Pass, err error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.pass", trace.WithAttributes(
		attribute.String("ocr.language", language),
	))
	defer func() {
		endSpan(span, err)
	}()

	start := time.Now()
	rec, err := p.recognizer.Recognize(ctx, path, language)
	if err != nil {
		return Pass{}, fmt.Errorf("ocr pass %q failed: %w", language, err)
	}

	text, conf := ocr.Normalize(rec.Output)
	pass = Pass{
		Language:   language,
		Engine:     rec.Engine,
		Text:       text,
		Confidence: conf,
		Duration:   time.Since(start),
	}

	span.SetAttributes(
		attribute.String("ocr.engine", pass.Engine),
		attribute.Float64("ocr.confidence", pass.Confidence),
	)

	log.Debug().
		Str("language", language).
		Str("engine", pass.Engine).
		Float64("confidence", pass.Confidence).
		Interface("block_kinds", blockKinds(rec.Output)).
		Dur("duration", pass.Duration).
		Msg("OCR pass complete")

	if p.observer != nil {
		p.observer.ObservePass(pass)
	}

	return pass, nil
}

// blockKinds counts the blocks of out per shape.
func blockKinds(out ocr.Output) map[string]int {
	kinds := make(map[string]int)
	for _, b := range out {
		if b == nil {
			continue
		}
		kinds[b.Kind()]++
	}
	return kinds
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
