package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits kept on every stored amount.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// MaxAmount bounds every amount accepted from a caller. Stored columns are
// NUMERIC(14,2).
var MaxAmount = decimal.New(1, 12)

// Exponent bounds keep Round and Cmp from expanding scientific-notation
// inputs such as 1e50000000 or 1e-50000000.
const (
	maxExponent = 12
	minExponent = -32
)

// ValidateAmount rejects caller-supplied amounts outside (-MaxAmount, MaxAmount)
// before any arithmetic touches them.
func ValidateAmount(name string, d decimal.Decimal) error {
	if exp := d.Exponent(); exp > maxExponent || exp < minExponent {
		return Fail(ErrValidation, "%s is out of range", name)
	}
	if d.Abs().GreaterThanOrEqual(MaxAmount) {
		return Fail(ErrValidation, "%s must be below %s", name, FormatMoney(MaxAmount))
	}
	return nil
}

// RoundMoney rounds half away from zero to two places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// PercentOf returns round(amount * pct / 100, 2).
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(pct).Div(hundred))
}

// Ratio returns part/whole*100 rounded to two places, or zero when whole is zero.
func Ratio(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return RoundMoney(part.Mul(hundred).Div(whole))
}

// FormatMoney renders an amount with thousands separators, e.g. "12,345.00".
func FormatMoney(d decimal.Decimal) string {
	s := RoundMoney(d).StringFixed(MoneyPlaces)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}
