package server

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ironsheep/invoice-ocr/internal/config"
	"github.com/ironsheep/invoice-ocr/internal/observability"
)

// Requests slower than this are logged at warn level.
const slowRequestThreshold = 10 * time.Second

func setCORSHeaders(c *fiber.Ctx, cfg config.CORSConfig) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, cfg.AllowOrigins)
	c.Set(fiber.HeaderAccessControlAllowHeaders, cfg.AllowHeaders)
	c.Set(fiber.HeaderAccessControlAllowMethods, cfg.AllowMethods)
}

// corsHeaders sets the three CORS headers before the rest of the chain runs,
// so they are present on success, error and 404 responses alike.
func corsHeaders(cfg config.CORSConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		setCORSHeaders(c, cfg)
		return c.Next()
	}
}

// tracing starts a server span per request and hands its context to the
// handlers through the fiber user context.
func tracing(skip []string) fiber.Handler {
	tracer := otel.Tracer("invoice-ocr/http")

	skipPaths := make(map[string]bool, len(skip))
	for _, path := range skip {
		skipPaths[path] = true
	}

	return func(c *fiber.Ctx) error {
		if skipPaths[c.Path()] {
			return c.Next()
		}

		ctx := otel.GetTextMapPropagator().Extract(
			c.UserContext(),
			propagation.HeaderCarrier(c.GetReqHeaders()),
		)

		route := c.Route().Path
		if route == "" || route == "/" {
			route = c.Path()
		}

		ctx, span := tracer.Start(ctx, fmt.Sprintf("%s %s", c.Method(), route),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethod(c.Method()),
				semconv.HTTPRoute(route),
				attribute.String("http.request_id", requestID(c)),
				attribute.Int("http.request_size", len(c.Body())),
			),
		)
		defer span.End()

		c.SetUserContext(ctx)

		if span.SpanContext().HasTraceID() {
			c.Set("X-Trace-ID", span.SpanContext().TraceID().String())
		}

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			}
			span.RecordError(err)
		}
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))

		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}

// requestLogger writes one structured line per request. It runs after the
// tracing middleware, so a traced request also carries its trace_id.
func requestLogger(skip []string, slow time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, skipPath := range skip {
			if path == skipPath {
				return c.Next()
			}
		}

		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			}
		}

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = log.Error().Err(err)
		case status >= 400:
			event = log.Warn()
		case slow > 0 && duration > slow:
			event = log.Warn().Bool("slow_request", true)
		default:
			event = log.Info()
		}

		if traceID := observability.ExtractTraceID(c.UserContext()); traceID != "" {
			event = event.Str("trace_id", traceID)
		}

		event.
			Str("request_id", requestID(c)).
			Str("method", c.Method()).
			Str("path", path).
			Str("ip", c.IP()).
			Int("status", status).
			Int64("duration_ms", duration.Milliseconds()).
			Int("body_size", len(c.Body())).
			Msg("HTTP request")

		return err
	}
}

// requestID returns the ID assigned by the requestid middleware.
func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return c.Get(fiber.HeaderXRequestID)
}
