// Package pricing turns scraped price text into comparable decimal amounts.
package pricing

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	numericToken = regexp.MustCompile(`\d[\d,.]*`)
	spaces       = strings.NewReplacer("\u00a0", "", "\u202f", "")
)

// Normalize extracts the rightmost numeric token from raw price text and parses it.
// Text without a parseable amount normalizes to zero, which callers treat as "no price".
//
// Separators are resolved per token: when both ',' and '.' appear, the rightmost one
// is the decimal mark. When only one kind appears, a single occurrence followed by one
// or two digits is a decimal mark and anything else groups thousands.
func Normalize(raw string) decimal.Decimal {
	tokens := numericToken.FindAllString(spaces.Replace(raw), -1)
	if len(tokens) == 0 {
		return decimal.Zero
	}
	token := strings.TrimRight(tokens[len(tokens)-1], ",.")
	v, err := decimal.NewFromString(canonical(token))
	if err != nil {
		return decimal.Zero
	}
	return v
}

func canonical(token string) string {
	comma := strings.LastIndexByte(token, ',')
	dot := strings.LastIndexByte(token, '.')
	switch {
	case comma >= 0 && dot >= 0:
		mark := max(comma, dot)
		return stripSeparators(token[:mark]) + "." + token[mark+1:]
	case comma >= 0:
		return single(token, ",")
	case dot >= 0:
		return single(token, ".")
	default:
		return token
	}
}

func single(token, sep string) string {
	if strings.Count(token, sep) == 1 {
		if frac := len(token) - strings.Index(token, sep) - 1; frac == 1 || frac == 2 {
			return strings.Replace(token, sep, ".", 1)
		}
	}
	return strings.ReplaceAll(token, sep, "")
}

func stripSeparators(s string) string {
	return strings.NewReplacer(",", "", ".", "").Replace(s)
}

// Drop compares a booked price with a fresh one. It reports the delta and whether it
// strictly exceeds the threshold, which is clamped at zero. Non-positive prices never drop.
func Drop(oldPrice, newPrice, threshold decimal.Decimal) (decimal.Decimal, bool) {
	if !oldPrice.IsPositive() || !newPrice.IsPositive() {
		return decimal.Zero, false
	}
	if threshold.IsNegative() {
		threshold = decimal.Zero
	}
	delta := oldPrice.Sub(newPrice)
	return delta, delta.GreaterThan(threshold)
}
