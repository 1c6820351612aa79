package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatSom formats an amount the way receipts print it.
// Example: 15000.5 -> "15 000,50 so'm"
func FormatSom(amount decimal.Decimal) string {
	neg := amount.IsNegative()
	fixed := amount.Abs().StringFixed(2)
	parts := strings.SplitN(fixed, ".", 2)
	integerPart, decimalPart := parts[0], parts[1]

	var groups []string
	for i := len(integerPart); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		groups = append([]string{integerPart[start:i]}, groups...)
	}

	out := strings.Join(groups, " ")
	if decimalPart != "00" {
		out += "," + decimalPart
	}
	if neg {
		out = "-" + out
	}
	return out + " so'm"
}
