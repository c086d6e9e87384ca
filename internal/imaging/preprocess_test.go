package imaging

import (
	"image"
	"image/color"
	"testing"
)

// createGrayNRGBA creates an opaque NRGBA image filled with one gray level.
func createGrayNRGBA(width, height int, level uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = level, level, level, 0xff
	}
	return img
}

func grayAt(img *image.NRGBA, x, y int) uint8 {
	return img.NRGBAAt(x, y).R
}

func TestToRGB(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	src.SetNRGBA(0, 0, color.NRGBA{10, 20, 30, 255}) // opaque
	src.SetNRGBA(1, 0, color.NRGBA{0, 0, 0, 0})      // fully transparent
	src.SetNRGBA(2, 0, color.NRGBA{0, 0, 0, 128})    // half transparent black

	out := ToRGB(src)

	if got := out.NRGBAAt(0, 0); got != (color.NRGBA{10, 20, 30, 255}) {
		t.Errorf("opaque pixel changed: got %v", got)
	}
	if got := out.NRGBAAt(1, 0); got != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("transparent pixel: got %v, want white", got)
	}

	half := out.NRGBAAt(2, 0)
	if half.A != 255 {
		t.Errorf("alpha not flattened: got %d", half.A)
	}
	if half.R < 126 || half.R > 128 || half.R != half.G || half.G != half.B {
		t.Errorf("half transparent black over white: got %v, want ~127 gray", half)
	}

	// Source must be untouched
	if src.NRGBAAt(1, 0).A != 0 {
		t.Error("ToRGB modified its input")
	}
}

func TestToRGB_ConvertsOtherModels(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	src.SetGray(1, 1, color.Gray{Y: 77})

	out := ToRGB(src)
	if out.Bounds().Dx() != 4 || out.Bounds().Dy() != 4 {
		t.Fatalf("unexpected bounds: %v", out.Bounds())
	}
	if got := out.NRGBAAt(1, 1); got != (color.NRGBA{77, 77, 77, 255}) {
		t.Errorf("gray pixel: got %v", got)
	}
}

func TestAutocontrastLUT(t *testing.T) {
	bins := make([]int, 256)
	bins[50] = 10
	bins[200] = 10

	lut := autocontrastLUT(bins, 0)
	if lut[50] != 0 {
		t.Errorf("lut[50] = %d, want 0", lut[50])
	}
	if lut[200] != 255 {
		t.Errorf("lut[200] = %d, want 255", lut[200])
	}
	if lut[125] != 127 {
		t.Errorf("lut[125] = %d, want 127", lut[125])
	}
	if lut[0] != 0 || lut[255] != 255 {
		t.Errorf("out of range levels not clamped: lut[0]=%d lut[255]=%d", lut[0], lut[255])
	}
}

func TestAutocontrastLUT_SingleLevel(t *testing.T) {
	bins := make([]int, 256)
	bins[90] = 100

	lut := autocontrastLUT(bins, 0)
	for i := range lut {
		if lut[i] != uint8(i) {
			t.Fatalf("single level histogram should give identity, lut[%d] = %d", i, lut[i])
		}
	}
}

func TestAutocontrastLUT_Cutoff(t *testing.T) {
	bins := make([]int, 256)
	bins[0] = 1 // outlier
	bins[100] = 98
	bins[150] = 98
	bins[255] = 1 // outlier

	// Without cutoff the outliers pin the range to 0-255
	if lut := autocontrastLUT(bins, 0); lut[100] != 100 {
		t.Errorf("no cutoff: lut[100] = %d, want 100", lut[100])
	}

	// 1% of 198 pixels is one pixel per end, removing both outliers
	lut := autocontrastLUT(bins, 1)
	if lut[100] != 0 || lut[150] != 255 {
		t.Errorf("cutoff 1%%: lut[100]=%d lut[150]=%d, want 0 and 255", lut[100], lut[150])
	}
}

func TestAutoContrast(t *testing.T) {
	img := createGrayNRGBA(10, 10, 100)
	for x := 0; x < 10; x++ {
		img.SetNRGBA(x, 0, color.NRGBA{60, 60, 60, 255})
		img.SetNRGBA(x, 9, color.NRGBA{180, 180, 180, 255})
	}

	out := AutoContrast(img, 0)
	if got := grayAt(out, 0, 0); got != 0 {
		t.Errorf("darkest level: got %d, want 0", got)
	}
	if got := grayAt(out, 0, 9); got != 255 {
		t.Errorf("lightest level: got %d, want 255", got)
	}
	if got := grayAt(out, 5, 5); got != 85 {
		t.Errorf("middle level: got %d, want 85", got)
	}
}

func TestAutoContrast_Uniform(t *testing.T) {
	img := createGrayNRGBA(8, 8, 123)
	out := AutoContrast(img, 0)
	if got := grayAt(out, 4, 4); got != 123 {
		t.Errorf("uniform image changed: got %d, want 123", got)
	}
}

func TestUpscale(t *testing.T) {
	img := createGrayNRGBA(10, 20, 128)

	tests := []struct {
		name          string
		scale         float64
		maxPixels     int
		wantW, wantH  int
		wantUnchanged bool
	}{
		{"double", 2, 0, 20, 40, false},
		{"triple", 3, 0, 30, 60, false},
		{"identity", 1, 0, 10, 20, true},
		{"below one", 0.5, 0, 10, 20, true},
		{"capped", 2, 400, 14, 28, false},
		{"cap below one keeps size", 2, 100, 10, 20, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Upscale(img, tt.scale, tt.maxPixels)
			if out.Bounds().Dx() != tt.wantW || out.Bounds().Dy() != tt.wantH {
				t.Errorf("dimensions: got %dx%d, want %dx%d",
					out.Bounds().Dx(), out.Bounds().Dy(), tt.wantW, tt.wantH)
			}
			if tt.wantUnchanged && out != img {
				t.Error("expected the input image to be returned unchanged")
			}
		})
	}
}

func TestEnhanceContrast(t *testing.T) {
	img := createGrayNRGBA(10, 10, 100)
	for y := 5; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.SetNRGBA(x, y, color.NRGBA{200, 200, 200, 255})
		}
	}

	t.Run("factor 2 doubles distance from the mean", func(t *testing.T) {
		out := EnhanceContrast(img, 2)
		if got := grayAt(out, 0, 0); got != 50 {
			t.Errorf("dark half: got %d, want 50", got)
		}
		if got := grayAt(out, 0, 9); got != 250 {
			t.Errorf("light half: got %d, want 250", got)
		}
	})

	t.Run("factor 1 is identity", func(t *testing.T) {
		out := EnhanceContrast(img, 1)
		if grayAt(out, 0, 0) != 100 || grayAt(out, 0, 9) != 200 {
			t.Errorf("factor 1 changed pixels: %d, %d", grayAt(out, 0, 0), grayAt(out, 0, 9))
		}
	})

	t.Run("factor 0 gives the mean gray", func(t *testing.T) {
		out := EnhanceContrast(img, 0)
		if grayAt(out, 0, 0) != 150 || grayAt(out, 0, 9) != 150 {
			t.Errorf("factor 0: got %d and %d, want 150", grayAt(out, 0, 0), grayAt(out, 0, 9))
		}
	})

	t.Run("large factor clips", func(t *testing.T) {
		out := EnhanceContrast(img, 10)
		if grayAt(out, 0, 0) != 0 || grayAt(out, 0, 9) != 255 {
			t.Errorf("factor 10: got %d and %d, want 0 and 255", grayAt(out, 0, 0), grayAt(out, 0, 9))
		}
	})
}

func TestEnhanceSharpness(t *testing.T) {
	img := createGrayNRGBA(5, 5, 100)
	img.SetNRGBA(2, 2, color.NRGBA{200, 200, 200, 255})

	out := EnhanceSharpness(img, 2)

	if got := grayAt(out, 2, 2); got <= 200 {
		t.Errorf("bright center should get brighter, got %d", got)
	}
	if got := grayAt(out, 1, 2); got >= 100 {
		t.Errorf("neighbour of bright center should get darker, got %d", got)
	}
	if got := grayAt(out, 0, 0); got != 100 {
		t.Errorf("border pixel changed: got %d, want 100", got)
	}
	if got := grayAt(img, 2, 2); got != 200 {
		t.Errorf("input modified: got %d, want 200", got)
	}
}

func TestEnhanceSharpness_UniformAndTiny(t *testing.T) {
	uniform := createGrayNRGBA(6, 6, 140)
	out := EnhanceSharpness(uniform, 2)
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			if got := grayAt(out, x, y); got != 140 {
				t.Fatalf("uniform image changed at (%d,%d): got %d", x, y, got)
			}
		}
	}

	tiny := createGrayNRGBA(2, 2, 30)
	if got := EnhanceSharpness(tiny, 2); grayAt(got, 1, 1) != 30 {
		t.Errorf("tiny image changed: got %d", grayAt(got, 1, 1))
	}
}

func TestPreprocess(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			if x >= 10 && x < 30 && y >= 8 && y < 12 {
				src.SetNRGBA(x, y, color.NRGBA{40, 40, 40, 255}) // "text" stroke
			} else {
				src.SetNRGBA(x, y, color.NRGBA{220, 220, 220, 0}) // transparent background
			}
		}
	}

	out := Preprocess(src, DefaultPreprocessOptions())

	if out.Bounds().Dx() != 80 || out.Bounds().Dy() != 40 {
		t.Fatalf("dimensions: got %dx%d, want 80x40", out.Bounds().Dx(), out.Bounds().Dy())
	}
	for i := 3; i < len(out.Pix); i += 4 {
		if out.Pix[i] != 0xff {
			t.Fatal("preprocessed image is not opaque")
		}
	}

	// Background stays white, stroke goes black
	if got := grayAt(out, 2, 2); got != 255 {
		t.Errorf("background: got %d, want 255", got)
	}
	if got := grayAt(out, 40, 20); got != 0 {
		t.Errorf("stroke center: got %d, want 0", got)
	}
}

func TestPreprocess_Deterministic(t *testing.T) {
	src := createInMemoryImage(16, 16, color.RGBA{90, 140, 200, 255})
	src.Set(8, 8, color.Black)

	a := Preprocess(src, DefaultPreprocessOptions())
	b := Preprocess(src, DefaultPreprocessOptions())

	if len(a.Pix) != len(b.Pix) {
		t.Fatal("outputs differ in size")
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatalf("outputs differ at byte %d", i)
		}
	}
}
