package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/invoice-ocr/internal/config"
	"github.com/ironsheep/invoice-ocr/internal/observability"
	"github.com/ironsheep/invoice-ocr/internal/ocr"
	"github.com/ironsheep/invoice-ocr/internal/pipeline"
)

// fakeRecognizer returns one canned record per language.
type fakeRecognizer struct {
	mu      sync.Mutex
	texts   map[string]string
	scores  map[string]float64
	err     error
	panics  bool
	engines map[string]bool
	calls   int
}

func (f *fakeRecognizer) Recognize(_ context.Context, _ string, language string) (*ocr.Recognition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.panics {
		panic("engine exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	out := ocr.Output{ocr.Record{Text: f.texts[language], Score: f.scores[language]}}
	return &ocr.Recognition{Output: out, Engine: "fake"}, nil
}

func (f *fakeRecognizer) Engines() map[string]bool {
	return f.engines
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(config.LoadOptions{SkipEnvFile: true})
	require.NoError(t, err)
	cfg.OCR.TempDir = t.TempDir()
	return cfg
}

func newTestServer(t *testing.T, rec *fakeRecognizer, mutate ...func(*config.Config)) (*Server, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	for _, m := range mutate {
		m(cfg)
	}
	p := pipeline.New(rec, cfg.PipelineConfig())
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}
	return New(cfg, p, metrics), cfg
}

func testImagePayload(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.White)
		}
	}
	for x := 5; x < 35; x++ {
		img.Set(x, 10, color.Black)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func doRequest(t *testing.T, s *Server, method, path, contentType, body string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func assertCORS(t *testing.T, resp *http.Response) {
	t.Helper()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
}

func assertTempDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary images must be removed")
}

func TestNew(t *testing.T) {
	s, _ := newTestServer(t, &fakeRecognizer{})
	require.NotNil(t, s)
	require.NotNil(t, s.App())
	assert.NotNil(t, s.metrics)
}

func TestServer_Preflight(t *testing.T) {
	rec := &fakeRecognizer{}
	s, _ := newTestServer(t, rec)

	resp, body := doRequest(t, s, http.MethodOptions, "/ocr", "", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body)
	assertCORS(t, resp)
	assert.Zero(t, rec.calls)
}

func TestServer_NotFound(t *testing.T) {
	s, _ := newTestServer(t, &fakeRecognizer{})

	resp, body := doRequest(t, s, http.MethodGet, "/nope", "", "")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assertCORS(t, resp)

	var out errorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Error)
}

func TestServer_RequestID(t *testing.T) {
	s, _ := newTestServer(t, &fakeRecognizer{})

	resp, _ := doRequest(t, s, http.MethodGet, "/health", "", "")
	assert.Len(t, resp.Header.Get("X-Request-ID"), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "client-supplied", resp.Header.Get("X-Request-ID"))
}

func TestServer_PanicRecovered(t *testing.T) {
	rec := &fakeRecognizer{panics: true}
	s, cfg := newTestServer(t, rec)

	body := `{"image":"` + testImagePayload(t) + `"}`
	resp, data := doRequest(t, s, http.MethodPost, "/ocr", fiber.MIMEApplicationJSON, body)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assertCORS(t, resp)

	var out errorResponse
	require.NoError(t, json.Unmarshal(data, &out))
	assert.False(t, out.Success)
	assertTempDirEmpty(t, cfg.OCR.TempDir)
}

func TestServer_Metrics(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		rec := &fakeRecognizer{
			texts:  map[string]string{"eng": "hello", "ara": ""},
			scores: map[string]float64{"eng": 0.9},
		}
		s, _ := newTestServer(t, rec)

		doRequest(t, s, http.MethodPost, "/ocr", fiber.MIMEApplicationJSON, `{"image":"`+testImagePayload(t)+`"}`)

		resp, body := doRequest(t, s, http.MethodGet, "/metrics", "", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), `invoice_ocr_requests_total{outcome="success"} 1`)
		assert.Contains(t, string(body), `invoice_ocr_winning_language_total{language="eng"} 1`)
	})

	t.Run("disabled", func(t *testing.T) {
		s, _ := newTestServer(t, &fakeRecognizer{}, func(c *config.Config) {
			c.Metrics.Enabled = false
		})
		assert.Nil(t, s.metrics)

		resp, _ := doRequest(t, s, http.MethodGet, "/metrics", "", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestServer_CustomCORS(t *testing.T) {
	s, _ := newTestServer(t, &fakeRecognizer{}, func(c *config.Config) {
		c.CORS.AllowOrigins = "https://app.example.com"
	})

	resp, _ := doRequest(t, s, http.MethodOptions, "/ocr", "", "")
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
}

func TestErrorHandler_NonFiberError(t *testing.T) {
	s, _ := newTestServer(t, &fakeRecognizer{})
	s.App().Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	resp, body := doRequest(t, s, http.MethodGet, "/boom", "", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"error":"boom"}`, string(body))
}
