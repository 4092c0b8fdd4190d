package extractor

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/width"
)

// Plausible price range in currency units. Values outside it are treated as
// parsing artifacts such as concatenated numbers or stray digits.
var (
	MinPrice = decimal.NewFromInt(100)
	MaxPrice = decimal.NewFromInt(100_000_000)
)

var (
	// ErrNoDigits is returned when a price token contains no digits.
	ErrNoDigits = errors.New("price token has no digits")
	// ErrPriceOutOfRange is returned for values outside [MinPrice, MaxPrice].
	ErrPriceOutOfRange = errors.New("price out of range")
)

var (
	nonDigit        = regexp.MustCompile(`[^0-9]`)
	fractionalTail  = regexp.MustCompile(`\.[0-9]{1,2}\s*$`)
	visiblePriceRun = regexp.MustCompile(`([0-9]{1,3}(?:,[0-9]{3})+|[0-9]{3,9})\s*(?:원|₩|krw)`)
)

// ParsePrice sanitizes a raw price token. Non-digit characters are stripped and
// the result must fall inside the plausible range.
func ParsePrice(raw string) (decimal.Decimal, error) {
	s := width.Narrow.String(strings.TrimSpace(raw))
	s = fractionalTail.ReplaceAllString(s, "")

	digits := nonDigit.ReplaceAllString(s, "")
	if digits == "" {
		return decimal.Zero, ErrNoDigits
	}

	v, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero, err
	}

	if v.LessThan(MinPrice) || v.GreaterThan(MaxPrice) {
		return decimal.Zero, ErrPriceOutOfRange
	}

	return v, nil
}

// firstValidPrice returns the first candidate that parses.
func firstValidPrice(candidates ...string) decimal.NullDecimal {
	for _, c := range candidates {
		if v, err := ParsePrice(c); err == nil {
			return decimal.NewNullDecimal(v)
		}
	}
	return decimal.NullDecimal{}
}

// scanPrices finds currency-suffixed numbers in free text.
func scanPrices(text string) []string {
	text = width.Narrow.String(strings.ToLower(text))
	matches := visiblePriceRun.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
