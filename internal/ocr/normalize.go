package ocr

import "strings"

// Normalize collapses engine output into joined text and mean confidence.
//
// Texts from Lines entries and Record blocks are collected in encounter order,
// joined with single spaces and trimmed. The confidence is the arithmetic mean
// of every collected score. Blocks of any other shape contribute nothing.
//
// Returns ("", 0) for empty output or output without usable blocks.
func Normalize(out Output) (string, float64) {
	if len(out) == 0 {
		return "", 0
	}

	var texts []string
	var sum float64

	for _, block := range out {
		switch b := block.(type) {
		case Lines:
			for _, line := range b {
				texts = append(texts, line.Text)
				sum += line.Score
			}
		case *Lines:
			if b == nil {
				continue
			}
			for _, line := range *b {
				texts = append(texts, line.Text)
				sum += line.Score
			}
		case Record:
			texts = append(texts, b.Text)
			sum += b.Score
		case *Record:
			if b == nil {
				continue
			}
			texts = append(texts, b.Text)
			sum += b.Score
		}
	}

	if len(texts) == 0 {
		return "", 0
	}

	return strings.TrimSpace(strings.Join(texts, " ")), sum / float64(len(texts))
}
