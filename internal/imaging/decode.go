package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"strings"
	"unicode"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// DefaultMaxInputPixels is the largest accepted input image, in pixels. It
// matches the decompression bomb threshold of PIL.
const DefaultMaxInputPixels = 178_956_970

var (
	// ErrEmptyImage is returned when a payload carries no image bytes.
	ErrEmptyImage = errors.New("image data is empty")

	// ErrImageTooLarge is returned when the image header announces more
	// pixels than allowed. The pixel data is never decoded in that case.
	ErrImageTooLarge = errors.New("image exceeds the maximum pixel count")
)

// DecodedImage is an uploaded image together with what we learned while decoding it.
type DecodedImage struct {
	// Image is the decoded pixel data.
	Image image.Image

	// Format is the name reported by the registered decoder: "png", "jpeg",
	// "gif", "webp", "bmp" or "tiff".
	Format string

	// Width and Height are the pixel dimensions of Image.
	Width  int
	Height int

	// SizeBytes is the length of the encoded image after base64 decoding.
	SizeBytes int
}

// StripDataURL removes a data URL header such as "data:image/png;base64,".
//
// Anything up to and including the first comma is dropped. Payloads without a
// comma are returned unchanged.
func StripDataURL(payload string) string {
	if i := strings.IndexByte(payload, ','); i >= 0 {
		return payload[i+1:]
	}
	return payload
}

// DecodeBase64 turns a base64 payload (optionally wrapped in a data URL) into raw bytes.
//
// Whitespace anywhere in the payload is ignored, which covers line-wrapped
// base64 produced by command line tools. Both padded and unpadded standard
// encodings are accepted.
//
// Returns ErrEmptyImage if nothing is left after stripping the header.
func DecodeBase64(payload string) ([]byte, error) {
	data := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, StripDataURL(payload))

	if data == "" {
		return nil, ErrEmptyImage
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		var rawErr error
		raw, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("failed to decode base64 image: %w", err)
		}
	}

	if len(raw) == 0 {
		return nil, ErrEmptyImage
	}
	return raw, nil
}

// DecodeImage decodes encoded image bytes in any registered format.
//
// Parameters:
//   - data: The encoded image.
//   - maxPixels: Upper bound on width*height, checked against the image
//     header before any pixel data is decoded. 0 or less disables the check.
//
// Returns:
//   - *DecodedImage: the image with its format and dimensions.
//   - error: ErrEmptyImage for empty input, ErrImageTooLarge (wrapped) for
//     oversized images, otherwise a wrapped decoder error.
func DecodeImage(data []byte, maxPixels int) (*DecodedImage, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d is more than %d pixels",
			ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	return &DecodedImage{
		Image:     img,
		Format:    format,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		SizeBytes: len(data),
	}, nil
}

// DecodePayload is DecodeBase64 followed by DecodeImage.
func DecodePayload(payload string, maxPixels int) (*DecodedImage, error) {
	raw, err := DecodeBase64(payload)
	if err != nil {
		return nil, err
	}
	return DecodeImage(raw, maxPixels)
}
