// Package ocr runs the external Tesseract engine and normalizes what it returns.
//
// The package never recognizes text itself. It wraps two equivalent entry
// points into Tesseract behind the Engine interface:
//
//   - TesseractEngine: the in-process binding from gosseract/v2. It needs cgo
//     and the tesseract build tag; other builds get a stub that reports itself
//     unavailable.
//   - CLIEngine: the tesseract command line program, read back as TSV.
//
// A Recognizer calls the primary engine and falls back to the second one when
// the primary fails for any reason.
//
// # Output Shapes
//
// Engines return an Output, a list of blocks. Two block shapes exist:
//
//   - Lines: list-shaped, one entry per recognized line with its box, text and score.
//   - Record: dict-shaped, a single text with its score.
//
// Normalize collapses any Output into one (text, confidence) pair. Blocks of
// any other shape are ignored.
//
// # Confidence
//
// Tesseract reports confidence from 0 to 100. Engines divide by 100 before
// returning, so every score in an Output is in the range 0.0 to 1.0.
//
// # Prerequisites
//
// Tesseract and the language data for every configured language must be
// installed:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng tesseract-ocr-ara
//   - macOS: brew install tesseract tesseract-lang
package ocr
