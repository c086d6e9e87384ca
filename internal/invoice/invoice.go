// Package invoice pulls the invoice total, VAT amount and VAT rate out of OCR text.
//
// Extraction is a fixed list of English and Arabic label patterns tried in
// order; the first pattern that yields a number wins. Missing values are
// derived from the others where possible:
//
//   - VAT amount from total and rate: vat = total * rate / 100
//   - total from VAT amount and rate: total = vat / (rate / 100)
//
// Amounts may use commas as thousands separators. Results are rounded to two
// decimals.
package invoice

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Fields are the values found in one invoice text.
type Fields struct {
	// Amount is the invoice total.
	Amount float64 `json:"amount" yaml:"amount"`

	// VAT is the value added tax amount.
	VAT float64 `json:"vat" yaml:"vat"`

	// VATRate is the VAT percentage, e.g. 15 for 15%.
	VATRate float64 `json:"vat_rate" yaml:"vat_rate"`

	// Found is false when neither a total nor a VAT amount could be determined.
	Found bool `json:"found" yaml:"found"`
}

const number = `([0-9.,]+)`

var (
	totalPatterns = compile(
		`Invoice\s+Total[:\s]*`+number,
		`Total\s+Invoice[:\s]*`+number,
		`إجمالي(?:\s+الفاتورة)?[:\s]*`+number,
		`Total\s+Amount[:\s]*`+number,
		`Grand\s+Total[:\s]*`+number,
	)

	vatAmountPatterns = compile(
		`Value\s+Added\s+Tax\s*\d+\s*%\s*`+number,
		`VAT\s+Amount[:\s]*`+number,
		`ضريبة(?:\s+القيمة\s+المضافة)?[:\s]*`+number,
	)

	vatRatePatterns = compile(
		`Value\s+Added\s+Tax\s*`+number+`\s*%`,
		`VAT\s*`+number+`\s*%`,
		number+`\s*%\s*VAT`,
		number+`\s*%\s*ضريبة`,
	)

	// Used only when none of totalPatterns matched; these also hit subtotal lines.
	looseTotalPatterns = compile(
		`Total[:\s]*`+number,
		`المجموع[:\s]*`+number,
		`الإجمالي[:\s]*`+number,
	)
)

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// Extract finds the invoice fields in text.
func Extract(text string) Fields {
	amount, _ := firstMatch(text, totalPatterns)
	vat, _ := firstMatch(text, vatAmountPatterns)
	rate, _ := firstMatch(text, vatRatePatterns)

	if vat == 0 && amount > 0 && rate > 0 {
		vat = amount * (rate / 100)
	}

	if amount == 0 {
		amount, _ = firstMatch(text, looseTotalPatterns)
	}

	if amount == 0 && vat > 0 && rate > 0 {
		amount = vat / (rate / 100)
	}

	return Fields{
		Amount:  round2(amount),
		VAT:     round2(vat),
		VATRate: round2(rate),
		Found:   amount > 0 || vat > 0,
	}
}

// firstMatch returns the number captured by the first pattern that matches
// text and holds a parseable number.
func firstMatch(text string, patterns []*regexp.Regexp) (float64, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, ok := ParseAmount(m[1]); ok {
			return v, true
		}
	}
	return 0, false
}

var leadingNumber = regexp.MustCompile(`^(?:\d+\.?\d*|\.\d+)`)

// ParseAmount parses an amount such as "5,750.00".
//
// Commas are removed first. Like a lenient float parser, the longest valid
// leading number is used, so "1.150.00" reads as 1.15. Returns false when no
// digits lead the string.
func ParseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	lead := leadingNumber.FindString(s)
	if lead == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(lead, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
