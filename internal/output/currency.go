package output

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCurrency formats an amount as dollars with thousands separators,
// rounded to cents: -1234.5 becomes "-$1,234.50".
func FormatCurrency(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")

	var sb strings.Builder
	if amount.Round(2).IsNegative() {
		sb.WriteByte('-')
	}
	sb.WriteByte('$')
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(digit)
	}
	sb.WriteByte('.')
	sb.WriteString(cents)
	return sb.String()
}
