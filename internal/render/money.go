package render

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// costDigits is the number of significant digits shown for every cost.
const costDigits = 4

// FormatCost converts a cost in hundredths of a currency unit into its
// display form, e.g. 1234 -> "$12.34".
func FormatCost(cost float64) string {
	return "$" + significant(decimal.NewFromFloat(cost).Shift(-2), costDigits)
}

// significant renders d with exactly n significant digits. Fixed notation
// is used unless the magnitude falls outside [1e-6, 10^n), in which case
// the value is written as m.mmm e±x.
func significant(d decimal.Decimal, n int) string {
	if d.IsZero() {
		return decimal.Zero.StringFixed(int32(n - 1))
	}

	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	exp := magnitude(d)
	r := d.Round(int32(n - 1 - exp))
	// Rounding can carry into the next power of ten (9.9996 -> 10.00).
	if e := magnitude(r); e != exp {
		exp = e
		r = d.Round(int32(n - 1 - exp))
	}

	if exp < -6 || exp >= n {
		mantissa := r.Shift(int32(-exp)).StringFixed(int32(n - 1))
		expSign := "+"
		if exp < 0 {
			expSign = "-"
			exp = -exp
		}
		return fmt.Sprintf("%s%se%s%d", sign, mantissa, expSign, exp)
	}

	places := n - 1 - exp
	if places < 0 {
		places = 0
	}
	return sign + r.StringFixed(int32(places))
}

// magnitude returns floor(log10(d)) for a positive decimal.
func magnitude(d decimal.Decimal) int {
	return int(d.NumDigits()) + int(d.Exponent()) - 1
}
