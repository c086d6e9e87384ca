package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ironsheep/invoice-ocr/internal/config"
	"github.com/ironsheep/invoice-ocr/internal/observability"
	"github.com/ironsheep/invoice-ocr/internal/pipeline"
)

// Server is the HTTP front end of the OCR pipeline.
type Server struct {
	app      *fiber.App
	config   *config.Config
	pipeline *pipeline.Pipeline
	metrics  *observability.Metrics
}

// New creates a server for p. m may be nil, in which case no metrics are
// recorded and the metrics route is not mounted.
func New(cfg *config.Config, p *pipeline.Pipeline, m *observability.Metrics) *Server {
	s := &Server{
		config:   cfg,
		pipeline: p,
		metrics:  m,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "invoice-ocr",
		BodyLimit:             cfg.Server.BodyLimit,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.setupMiddlewares()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddlewares() {
	s.app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))

	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: s.config.Debug,
	}))

	s.app.Use(corsHeaders(s.config.CORS))

	if s.config.Tracing.Enabled {
		log.Debug().Msg("Adding OpenTelemetry tracing middleware")
		s.app.Use(tracing(skipPaths(s.config)))
	}

	s.app.Use(requestLogger(skipPaths(s.config), slowRequestThreshold))

	if s.metrics != nil {
		s.app.Use(s.metrics.MetricsMiddleware(s.config.Metrics.Path))
	}
}

func (s *Server) setupRoutes() {
	s.app.Post("/ocr", s.handleOCR)
	s.app.Options("/ocr", s.handlePreflight)
	s.app.Get("/health", s.handleHealth)

	if s.metrics != nil && s.config.Metrics.Enabled {
		s.app.Get(s.config.Metrics.Path, s.metrics.Handler())
	}
}

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	log.Info().
		Str("address", s.config.Server.Address).
		Str("primary_language", s.config.OCR.PrimaryLanguage).
		Str("secondary_language", s.config.OCR.SecondaryLanguage).
		Msg("Starting HTTP server")
	return s.app.Listen(s.config.Server.Address)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// App returns the underlying Fiber app instance for testing
func (s *Server) App() *fiber.App {
	return s.app
}

// errorHandler renders every error as {"success": false, "error": msg}.
// fiber errors keep their status; everything else is a 500.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	if code >= 500 {
		log.Error().Err(err).
			Str("request_id", requestID(c)).
			Str("path", c.Path()).
			Msg("Request failed")
	}

	// Errors raised ahead of the CORS middleware still need the headers.
	setCORSHeaders(c, s.config.CORS)

	return c.Status(code).JSON(errorResponse{
		Success: false,
		Error:   err.Error(),
	})
}

func skipPaths(cfg *config.Config) []string {
	paths := []string{"/health"}
	if cfg.Metrics.Enabled {
		paths = append(paths, cfg.Metrics.Path)
	}
	return paths
}
