package imaging

import (
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
)

// WriteTempPNG saves img to a new temporary PNG file and returns its path.
//
// Parameters:
//   - img: The image to save.
//   - dir: Directory for the file. Empty uses os.TempDir().
//   - prefix: Filename prefix for identification (e.g., "ocr-request").
//
// Every call creates a distinct file (<prefix>-<random>.png), so concurrent
// requests never overwrite each other's input. On error nothing is left on
// disk.
//
// IMPORTANT: The caller is responsible for deleting the file with os.Remove().
func WriteTempPNG(img image.Image, dir, prefix string) (string, error) {
	f, err := os.CreateTemp(dir, prefix+"-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()

	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to encode temp image: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close temp image: %w", err)
	}

	return path, nil
}

// SaveImage writes img to path, replacing any existing file. The format is
// chosen from the extension (.png, .jpg, .gif, .tif, .bmp).
func SaveImage(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}
