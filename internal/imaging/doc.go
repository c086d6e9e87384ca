// Package imaging prepares uploaded images for the OCR engine.
//
// The package covers the three steps that happen before recognition:
// decoding the base64 payload sent by the browser, running a fixed
// preprocessing chain that improves recognition of printed invoices, and
// writing the result to a temporary PNG file for the engine to read.
//
// # Decoding
//
// Payloads may be plain base64 or a data URL ("data:image/png;base64,...").
// Everything up to and including the first comma is discarded. Supported
// formats are PNG, JPEG and GIF from the standard library plus WebP, BMP and
// TIFF from golang.org/x/image.
//
// # Preprocessing
//
// Preprocess applies, in order:
//
//  1. ToRGB: alpha is flattened onto a white background
//  2. AutoContrast: each channel is stretched to the full 0-255 range
//  3. Upscale: bicubic enlargement (2x by default, capped by MaxPixels)
//  4. EnhanceContrast: blend away from the mean gray level (1.8 by default)
//  5. EnhanceSharpness: blend away from a smoothed copy (2.0 by default)
//
// Every step returns a new *image.NRGBA with its origin at (0,0) and leaves
// its input untouched, so the functions are safe to call concurrently.
//
// # Temporary Files
//
// WriteTempPNG creates a uniquely named file for every call. The caller owns
// the file and must remove it.
package imaging
