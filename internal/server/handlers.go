package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/ironsheep/invoice-ocr/internal/invoice"
)

// ocrRequest is the body of POST /ocr.
type ocrRequest struct {
	// Image is base64 encoded image data, optionally as a data URL.
	Image string `json:"image"`
}

type ocrResponse struct {
	Success    bool            `json:"success"`
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"`
	Invoice    *invoice.Fields `json:"invoice,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type healthResponse struct {
	Status    string          `json:"status"`
	Engines   map[string]bool `json:"engines,omitempty"`
	Languages []string        `json:"languages"`
}

var errMissingImage = errors.New("missing image field")

// handleOCR runs the pipeline on the posted image.
//
// The body is decoded as JSON whatever the Content-Type says. Every failure
// is returned to the error handler, which answers 500.
func (s *Server) handleOCR(c *fiber.Ctx) error {
	var req ocrRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if strings.TrimSpace(req.Image) == "" {
		return errMissingImage
	}

	res, err := s.pipeline.RunPayload(c.UserContext(), req.Image)
	if s.metrics != nil {
		s.metrics.RecordResult(res, err)
	}
	if err != nil {
		return err
	}

	log.Info().
		Str("request_id", requestID(c)).
		Str("language", res.Language).
		Float64("confidence", res.Confidence).
		Int("text_length", len(res.Text)).
		Msg("OCR completed")

	return c.JSON(ocrResponse{
		Success:    true,
		Text:       res.Text,
		Confidence: roundConfidence(res.Confidence),
		Invoice:    res.Invoice,
	})
}

// handlePreflight answers the CORS preflight. The headers come from the CORS
// middleware; the body stays empty.
func (s *Server) handlePreflight(c *fiber.Ctx) error {
	c.Status(fiber.StatusOK)
	return nil
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	engines := s.pipeline.Engines()

	status := "ok"
	if engines != nil {
		status = "degraded"
		for _, available := range engines {
			if available {
				status = "ok"
				break
			}
		}
	}

	cfg := s.pipeline.Config()
	return c.JSON(healthResponse{
		Status:    status,
		Engines:   engines,
		Languages: []string{cfg.PrimaryLanguage, cfg.SecondaryLanguage},
	})
}

// roundConfidence rounds v to three decimals using the exact binary value,
// so 0.8765 (stored just below the tie) rounds down.
func roundConfidence(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 3, 64), 64)
	if err != nil {
		return v
	}
	return r
}
