package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ironsheep/invoice-ocr/internal/pipeline"
)

// Metrics holds all Prometheus metrics for the OCR service
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestSize      *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// OCR metrics
	ocrRequestsTotal   *prometheus.CounterVec
	ocrPassDuration    *prometheus.HistogramVec
	ocrPassConfidence  *prometheus.HistogramVec
	ocrFallbacksTotal  *prometheus.CounterVec
	ocrWinningLanguage *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them on a fresh registry that
// also carries the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewMetricsWithRegistry(reg)
}

// NewMetricsWithRegistry creates all metrics and registers them on reg.
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_ocr_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "invoice_ocr_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path", "status"},
		),
		httpRequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "invoice_ocr_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "invoice_ocr_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		ocrRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_ocr_requests_total",
				Help: "Total number of OCR runs by outcome",
			},
			[]string{"outcome"},
		),
		ocrPassDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "invoice_ocr_pass_duration_seconds",
				Help:    "Duration of a single language pass in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 40},
			},
			[]string{"language", "engine"},
		),
		ocrPassConfidence: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "invoice_ocr_pass_confidence",
				Help:    "Normalized confidence of a single language pass",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"language"},
		),
		ocrFallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_ocr_engine_fallbacks_total",
				Help: "Number of times the fallback engine replaced a failed primary engine",
			},
			[]string{"engine", "language"},
		),
		ocrWinningLanguage: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_ocr_winning_language_total",
				Help: "Number of merged results led by each language",
			},
			[]string{"language"},
		),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MetricsMiddleware returns a Fiber middleware that records HTTP metrics.
// metricsPath is the route serving the metrics, kept as its own path label.
func (m *Metrics) MetricsMiddleware(metricsPath string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		requestSize := len(c.Body())
		path := normalizePath(c.Path(), metricsPath)
		method := c.Method()

		err := c.Next()

		// Errors are rendered by the app error handler after the middleware
		// chain returns, so the status is taken from the error when present.
		code := c.Response().StatusCode()
		if err != nil {
			code = fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
		}

		duration := time.Since(start).Seconds()
		status := statusClass(code)

		m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		m.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))

		return err
	}
}

// ObservePass records the duration and confidence of one language pass.
// It satisfies pipeline.Observer.
func (m *Metrics) ObservePass(p pipeline.Pass) {
	m.ocrPassDuration.WithLabelValues(p.Language, p.Engine).Observe(p.Duration.Seconds())
	m.ocrPassConfidence.WithLabelValues(p.Language).Observe(p.Confidence)
}

// RecordFallback counts a switch from the primary engine to the fallback.
// Its signature matches ocr.FallbackFunc.
func (m *Metrics) RecordFallback(primary, language string, _ error) {
	m.ocrFallbacksTotal.WithLabelValues(primary, language).Inc()
}

// RecordResult records the outcome of one OCR run. res may be nil on error.
func (m *Metrics) RecordResult(res *pipeline.Result, err error) {
	if err != nil {
		m.ocrRequestsTotal.WithLabelValues("error").Inc()
		return
	}
	m.ocrRequestsTotal.WithLabelValues("success").Inc()
	if res != nil {
		m.ocrWinningLanguage.WithLabelValues(res.Language).Inc()
	}
}

// Handler returns a Fiber handler serving the metrics in the Prometheus
// exposition format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// normalizePath bounds the path label. Unknown paths are collapsed so that
// scanners cannot blow up label cardinality.
func normalizePath(path, metricsPath string) string {
	switch path {
	case "/ocr", "/health", "/":
		return path
	}
	if metricsPath != "" && path == metricsPath {
		return path
	}
	return "other"
}

// statusClass returns the HTTP status class (2xx, 3xx, 4xx, 5xx)
func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
