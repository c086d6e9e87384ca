package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/ironsheep/invoice-ocr/internal/imaging"
	"github.com/ironsheep/invoice-ocr/internal/observability"
	"github.com/ironsheep/invoice-ocr/internal/ocr"
	"github.com/ironsheep/invoice-ocr/internal/pipeline"
)

// EnvPrefix is prepended to every environment variable, e.g.
// INVOICE_OCR_SERVER_ADDRESS for server.address.
const EnvPrefix = "INVOICE_OCR"

// Config represents the application configuration
type Config struct {
	Server     ServerConfig               `mapstructure:"server"`
	CORS       CORSConfig                 `mapstructure:"cors"`
	OCR        OCRConfig                  `mapstructure:"ocr"`
	Preprocess PreprocessConfig           `mapstructure:"preprocess"`
	Invoice    InvoiceConfig              `mapstructure:"invoice"`
	Metrics    MetricsConfig              `mapstructure:"metrics"`
	Tracing    observability.TracerConfig `mapstructure:"tracing"`
	Log        LogConfig                  `mapstructure:"log"`
	Debug      bool                       `mapstructure:"debug"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	BodyLimit       int           `mapstructure:"body_limit"`
}

// CORSConfig holds the values of the three CORS headers set on every response.
type CORSConfig struct {
	AllowOrigins string `mapstructure:"allow_origins"`
	AllowHeaders string `mapstructure:"allow_headers"`
	AllowMethods string `mapstructure:"allow_methods"`
}

// OCRConfig controls the engines and the two language passes.
type OCRConfig struct {
	PrimaryLanguage   string        `mapstructure:"primary_language"`
	SecondaryLanguage string        `mapstructure:"secondary_language"`
	Orientation       bool          `mapstructure:"orientation"`
	TessdataPrefix    string        `mapstructure:"tessdata_prefix"`
	BinaryPath        string        `mapstructure:"binary_path"`
	Timeout           time.Duration `mapstructure:"timeout"`
	TempDir           string        `mapstructure:"temp_dir"`
}

// PreprocessConfig mirrors imaging.PreprocessOptions.
type PreprocessConfig struct {
	AutocontrastCutoff float64 `mapstructure:"autocontrast_cutoff"`
	Scale              float64 `mapstructure:"scale"`
	MaxPixels          int     `mapstructure:"max_pixels"`
	MaxInputPixels     int     `mapstructure:"max_input_pixels"`
	Contrast           float64 `mapstructure:"contrast"`
	Sharpness          float64 `mapstructure:"sharpness"`
}

// InvoiceConfig toggles invoice field extraction.
type InvoiceConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig controls the global logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// ConfigFile is an explicit YAML file. Empty searches the default locations.
	ConfigFile string

	// SkipEnvFile disables loading .env files.
	SkipEnvFile bool
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence, and validates it.
func Load(opts LoadOptions) (*Config, error) {
	if !opts.SkipEnvFile {
		if err := loadEnvFile(); err != nil {
			log.Debug().Err(err).Msg("No .env file loaded")
		}
	}

	v := viper.New()
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("invoice-ocr")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/invoice-ocr")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Info().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads environment variables from the first .env file found.
// Variables already set in the environment are not overridden.
func loadEnvFile() error {
	for _, location := range []string{".env", ".env.local"} {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading .env file from %s: %w", location, err)
			}
			log.Info().Str("file", location).Msg(".env file loaded")
			return nil
		}
	}
	return fmt.Errorf("no .env file found")
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.body_limit", 32*1024*1024) // 32MB

	// CORS defaults
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("cors.allow_headers", "Content-Type")
	v.SetDefault("cors.allow_methods", "POST, OPTIONS")

	// OCR defaults
	ocrDefaults := ocr.DefaultOptions()
	v.SetDefault("ocr.primary_language", "eng")
	v.SetDefault("ocr.secondary_language", "ara")
	v.SetDefault("ocr.orientation", ocrDefaults.Orientation)
	v.SetDefault("ocr.tessdata_prefix", "")
	v.SetDefault("ocr.binary_path", "")
	v.SetDefault("ocr.timeout", ocrDefaults.Timeout.String())
	v.SetDefault("ocr.temp_dir", "")

	// Preprocessing defaults
	pre := imaging.DefaultPreprocessOptions()
	v.SetDefault("preprocess.autocontrast_cutoff", pre.AutocontrastCutoff)
	v.SetDefault("preprocess.scale", pre.Scale)
	v.SetDefault("preprocess.max_pixels", pre.MaxPixels)
	v.SetDefault("preprocess.max_input_pixels", pre.MaxInputPixels)
	v.SetDefault("preprocess.contrast", pre.Contrast)
	v.SetDefault("preprocess.sharpness", pre.Sharpness)

	v.SetDefault("invoice.enabled", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Tracing defaults
	tracing := observability.DefaultTracerConfig()
	v.SetDefault("tracing.enabled", tracing.Enabled)
	v.SetDefault("tracing.endpoint", tracing.Endpoint)
	v.SetDefault("tracing.service_name", tracing.ServiceName)
	v.SetDefault("tracing.environment", tracing.Environment)
	v.SetDefault("tracing.sample_rate", tracing.SampleRate)
	v.SetDefault("tracing.insecure", tracing.Insecure)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("debug", false)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server configuration error: %w", err)
	}
	if err := c.OCR.Validate(); err != nil {
		return fmt.Errorf("ocr configuration error: %w", err)
	}
	if err := c.Preprocess.Validate(); err != nil {
		return fmt.Errorf("preprocess configuration error: %w", err)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with '/'")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing sample_rate must be between 0 and 1")
	}

	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log format must be 'console' or 'json'")
	}

	return nil
}

// Validate validates server configuration
func (sc *ServerConfig) Validate() error {
	if sc.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if sc.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive, got %v", sc.ReadTimeout)
	}
	if sc.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive, got %v", sc.WriteTimeout)
	}
	if sc.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be positive, got %v", sc.IdleTimeout)
	}
	if sc.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %v", sc.ShutdownTimeout)
	}
	if sc.BodyLimit <= 0 {
		return fmt.Errorf("body_limit must be positive, got %d", sc.BodyLimit)
	}
	return nil
}

// Validate validates OCR configuration
func (oc *OCRConfig) Validate() error {
	if strings.TrimSpace(oc.PrimaryLanguage) == "" {
		return fmt.Errorf("primary_language cannot be empty")
	}
	if strings.TrimSpace(oc.SecondaryLanguage) == "" {
		return fmt.Errorf("secondary_language cannot be empty")
	}
	if oc.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", oc.Timeout)
	}
	return nil
}

// Validate validates preprocessing configuration
func (pc *PreprocessConfig) Validate() error {
	if pc.AutocontrastCutoff < 0 || pc.AutocontrastCutoff >= 50 {
		return fmt.Errorf("autocontrast_cutoff must be in [0, 50), got %v", pc.AutocontrastCutoff)
	}
	if pc.Scale < 1 {
		return fmt.Errorf("scale must be at least 1, got %v", pc.Scale)
	}
	if pc.MaxPixels < 0 {
		return fmt.Errorf("max_pixels cannot be negative, got %d", pc.MaxPixels)
	}
	if pc.MaxInputPixels < 0 {
		return fmt.Errorf("max_input_pixels cannot be negative, got %d", pc.MaxInputPixels)
	}
	if pc.Contrast <= 0 {
		return fmt.Errorf("contrast must be positive, got %v", pc.Contrast)
	}
	if pc.Sharpness <= 0 {
		return fmt.Errorf("sharpness must be positive, got %v", pc.Sharpness)
	}
	return nil
}

// Options converts the preprocessing section into imaging options.
func (pc PreprocessConfig) Options() imaging.PreprocessOptions {
	return imaging.PreprocessOptions{
		AutocontrastCutoff: pc.AutocontrastCutoff,
		Scale:              pc.Scale,
		MaxPixels:          pc.MaxPixels,
		MaxInputPixels:     pc.MaxInputPixels,
		Contrast:           pc.Contrast,
		Sharpness:          pc.Sharpness,
	}
}

// EngineOptions converts the OCR section into engine options.
func (oc OCRConfig) EngineOptions() ocr.Options {
	return ocr.Options{
		TessdataPrefix: oc.TessdataPrefix,
		Orientation:    oc.Orientation,
		BinaryPath:     oc.BinaryPath,
		Timeout:        oc.Timeout,
	}
}

// PipelineConfig assembles the pipeline configuration.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		PrimaryLanguage:   c.OCR.PrimaryLanguage,
		SecondaryLanguage: c.OCR.SecondaryLanguage,
		Preprocess:        c.Preprocess.Options(),
		TempDir:           c.OCR.TempDir,
		ExtractInvoice:    c.Invoice.Enabled,
	}
}
