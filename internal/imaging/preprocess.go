package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/histogram"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// PreprocessOptions controls the fixed preprocessing chain.
type PreprocessOptions struct {
	// AutocontrastCutoff is the percentage (0-50) of the histogram ignored at
	// each end before stretching. 0 uses the darkest and lightest pixels.
	AutocontrastCutoff float64

	// Scale is the enlargement factor. Values <= 1 disable upscaling.
	Scale float64

	// MaxPixels caps the pixel count after upscaling. 0 disables the cap.
	MaxPixels int

	// MaxInputPixels rejects larger inputs at decode time, before any
	// preprocessing. 0 disables the check.
	MaxInputPixels int

	// Contrast is the contrast enhancement factor. 1.0 leaves the image unchanged.
	Contrast float64

	// Sharpness is the sharpness enhancement factor. 1.0 leaves the image unchanged.
	Sharpness float64
}

// DefaultPreprocessOptions returns the settings tuned for scanned invoices.
func DefaultPreprocessOptions() PreprocessOptions {
	return PreprocessOptions{
		AutocontrastCutoff: 0,
		Scale:              2,
		MaxPixels:          40_000_000,
		MaxInputPixels:     DefaultMaxInputPixels,
		Contrast:           1.8,
		Sharpness:          2.0,
	}
}

// Preprocess runs the full chain: RGB conversion, auto-contrast, upscaling,
// contrast enhancement and sharpness enhancement, in that order.
//
// The output is deterministic for a given input and options.
func Preprocess(img image.Image, opts PreprocessOptions) *image.NRGBA {
	out := ToRGB(img)
	out = AutoContrast(out, opts.AutocontrastCutoff)
	out = Upscale(out, opts.Scale, opts.MaxPixels)
	out = EnhanceContrast(out, opts.Contrast)
	out = EnhanceSharpness(out, opts.Sharpness)
	return out
}

var white = colorful.Color{R: 1, G: 1, B: 1}

// ToRGB returns an opaque copy of img.
//
// Partially transparent pixels are alpha-composited onto white; fully
// transparent pixels become white. This differs from simply dropping the
// alpha channel, which would turn transparent black into black. Receipts
// photographed by phones are opaque already and pass through unchanged.
func ToRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)

	for i := 0; i < len(dst.Pix); i += 4 {
		a := dst.Pix[i+3]
		switch a {
		case 0xff:
			continue
		case 0:
			dst.Pix[i+0], dst.Pix[i+1], dst.Pix[i+2] = 0xff, 0xff, 0xff
		default:
			c := colorful.Color{
				R: float64(dst.Pix[i+0]) / 255.0,
				G: float64(dst.Pix[i+1]) / 255.0,
				B: float64(dst.Pix[i+2]) / 255.0,
			}
			r, g, b := c.BlendRgb(white, 1-float64(a)/255.0).Clamped().RGB255()
			dst.Pix[i+0], dst.Pix[i+1], dst.Pix[i+2] = r, g, b
		}
		dst.Pix[i+3] = 0xff
	}

	return dst
}

// AutoContrast stretches every color channel so its darkest populated level
// maps to 0 and its lightest to 255.
//
// cutoff is the percentage of pixels ignored at each end of every channel
// histogram. A channel whose remaining levels collapse to a single value is
// left unchanged.
func AutoContrast(img *image.NRGBA, cutoff float64) *image.NRGBA {
	hist := histogram.NewRGBAHistogram(img)

	lutR := autocontrastLUT(hist.R.Bins, cutoff)
	lutG := autocontrastLUT(hist.G.Bins, cutoff)
	lutB := autocontrastLUT(hist.B.Bins, cutoff)

	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: lutR[c.R], G: lutG[c.G], B: lutB[c.B], A: c.A}
	})
}

// autocontrastLUT builds the lookup table for one channel histogram.
func autocontrastLUT(bins []int, cutoff float64) [256]uint8 {
	var h [256]int
	copy(h[:], bins)

	if cutoff > 0 {
		total := 0
		for _, n := range h {
			total += n
		}
		trimHistogram(h[:], int(float64(total)*cutoff/100), false)
		trimHistogram(h[:], int(float64(total)*cutoff/100), true)
	}

	lo := 0
	for lo < 255 && h[lo] == 0 {
		lo++
	}
	hi := 255
	for hi > 0 && h[hi] == 0 {
		hi--
	}

	var lut [256]uint8
	if hi <= lo {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	for i := range lut {
		switch {
		case i <= lo:
			lut[i] = 0
		case i >= hi:
			lut[i] = 255
		default:
			lut[i] = uint8((i - lo) * 255 / (hi - lo))
		}
	}
	return lut
}

// trimHistogram removes cut pixels from one end of h.
func trimHistogram(h []int, cut int, fromTop bool) {
	for i := 0; i < len(h) && cut > 0; i++ {
		idx := i
		if fromTop {
			idx = len(h) - 1 - i
		}
		if cut > h[idx] {
			cut -= h[idx]
			h[idx] = 0
		} else {
			h[idx] -= cut
			cut = 0
		}
	}
}

// Upscale enlarges img by scale using a bicubic (Catmull-Rom) filter.
//
// When maxPixels is positive the factor is reduced so the result holds at most
// maxPixels pixels, but it is never reduced below 1. A factor <= 1 returns img
// unchanged.
func Upscale(img *image.NRGBA, scale float64, maxPixels int) *image.NRGBA {
	if scale <= 1 {
		return img
	}

	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	if w == 0 || h == 0 {
		return img
	}

	if maxPixels > 0 {
		limit := math.Sqrt(float64(maxPixels) / float64(w*h))
		if scale > limit {
			scale = math.Max(1, limit)
		}
	}

	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW == w && newH == h {
		return img
	}

	return imaging.Resize(img, newW, newH, imaging.CatmullRom)
}

// EnhanceContrast pushes every channel away from the image's mean gray level.
//
// The mean is the rounded average luma (ITU-R 601-2 weights). Each channel
// becomes mean + factor*(value-mean), clipped to 0-255. factor 1 returns an
// identical copy and factor 0 a uniform gray image.
func EnhanceContrast(img *image.NRGBA, factor float64) *image.NRGBA {
	bounds := img.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return imaging.Clone(img)
	}

	var sum uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, y):]
		for x := 0; x < bounds.Dx(); x++ {
			sum += uint64(luma(row[x*4+0], row[x*4+1], row[x*4+2]))
		}
	}
	mean := float64(int(float64(sum)/float64(n) + 0.5))

	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: blend8(mean, float64(c.R), factor),
			G: blend8(mean, float64(c.G), factor),
			B: blend8(mean, float64(c.B), factor),
			A: c.A,
		}
	})
}

// smoothKernel is the 3x3 smoothing filter used as the sharpness baseline.
var smoothKernel = []float64{
	1, 1, 1,
	1, 5, 1,
	1, 1, 1,
}

// EnhanceSharpness pushes every pixel away from a smoothed copy of the image.
//
// Each channel becomes smooth + factor*(value-smooth), clipped to 0-255.
// The outermost row and column on every side keep their original values.
func EnhanceSharpness(img *image.NRGBA, factor float64) *image.NRGBA {
	dst := imaging.Clone(img)
	bounds := dst.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return dst
	}

	k := convolution.NewKernel(3, 3)
	copy(k.Matrix, smoothKernel)
	// Convolve truncates; the bias turns that into rounding.
	smooth := convolution.Convolve(dst, k.Normalized(), &convolution.Options{Bias: 0.5, KeepAlpha: true})

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := dst.PixOffset(x, y)
			j := smooth.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				dst.Pix[i+c] = blend8(float64(smooth.Pix[j+c]), float64(dst.Pix[i+c]), factor)
			}
		}
	}

	return dst
}

// luma returns the ITU-R 601-2 luma of an RGB triple in 16.16 fixed point,
// rounded to the nearest integer.
func luma(r, g, b uint8) uint32 {
	return (uint32(r)*19595 + uint32(g)*38470 + uint32(b)*7471 + 0x8000) >> 16
}

// blend8 returns base + factor*(v-base) clipped to a byte.
func blend8(base, v, factor float64) uint8 {
	return clamp8(base + factor*(v-base))
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
