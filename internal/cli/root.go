// Package cli provides the cobra commands of the invoice-ocr binary.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ironsheep/invoice-ocr/internal/config"
	"github.com/ironsheep/invoice-ocr/internal/observability"
	"github.com/ironsheep/invoice-ocr/internal/ocr"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configFile string
	debug      bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "invoice-ocr",
		Short: "OCR service for English and Arabic invoices",
		Long: `invoice-ocr reads text from invoice images with Tesseract.

Each image is preprocessed, recognized once in English and once in Arabic,
and the two results are merged by confidence. Invoice totals and VAT are
extracted from the merged text.

Get started:
  invoice-ocr serve              Start the HTTP API on :5000
  invoice-ocr scan invoice.png   Recognize a local file`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "",
		"config file (default searches ./invoice-ocr.yaml, ./config, /etc/invoice-ocr)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false,
		"enable debug logging")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newScanCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads configuration and installs the global logger it describes.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: o.configFile})
	if err != nil {
		return nil, err
	}
	if o.debug {
		cfg.Debug = true
	}

	logger, err := newLogger(os.Stderr, cfg.Log, cfg.Debug)
	if err != nil {
		return nil, err
	}
	log.Logger = logger

	return cfg, nil
}

// newLogger builds a zerolog logger writing to w. Console format is meant
// for terminals, json for log collectors. debug forces the debug level.
func newLogger(w io.Writer, lc config.LogConfig, debug bool) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if lc.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(lc.Level))
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
		}
		level = parsed
	}
	if debug {
		level = zerolog.DebugLevel
	}

	var out io.Writer = w
	if lc.Format != "json" {
		out = zerolog.ConsoleWriter{Out: w}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// newRecognizer wires the in-process engine as primary and the tesseract
// binary as fallback. m may be nil.
func newRecognizer(cfg *config.Config, m *observability.Metrics) *ocr.Recognizer {
	opts := cfg.OCR.EngineOptions()

	var recOpts []ocr.RecognizerOption
	if m != nil {
		recOpts = append(recOpts, ocr.WithFallbackHook(m.RecordFallback))
	}

	rec := ocr.NewRecognizer(ocr.NewTesseractEngine(opts), ocr.NewCLIEngine(opts), recOpts...)
	for name, available := range rec.Engines() {
		log.Debug().Str("engine", name).Bool("available", available).Msg("OCR engine")
	}
	if !rec.Available() {
		log.Warn().Msg("No OCR engine available; install Tesseract or build with -tags tesseract")
	}
	return rec
}
