//go:build !cgo || !tesseract

package ocr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTesseractEngine_Stub(t *testing.T) {
	e := NewTesseractEngine(DefaultOptions())

	assert.Equal(t, "gosseract", e.Name())
	assert.False(t, e.Available())

	out, err := e.Recognize(context.Background(), "img.png", "eng")
	assert.Nil(t, out)
	assert.True(t, IsUnavailable(err))
	assert.ErrorContains(t, err, "built without Tesseract support")
}
