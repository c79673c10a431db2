// Package money provides the integer minor-unit amount used for every price,
// cost and budget so repeated accumulation never drifts.
package money

import (
	"fmt"
	"strings"

	"github.com/iwvelando/meal-budget/pkg/constants"
	"github.com/shopspring/decimal"
)

// Amount is a monetary value in the smallest currency unit (e.g. cents).
type Amount int64

// Zero is the zero amount.
const Zero Amount = 0

var minorPerMajor = decimal.New(constants.MinorUnitsPerMajor, 0)

// Decimal returns the amount as an exact decimal in minor units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), 0)
}

// FromDecimal rounds a minor-unit decimal half away from zero.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount(d.Round(0).IntPart())
}

// FromMajor converts a major-unit value such as 12.34 into minor units.
func FromMajor(major float64) Amount {
	return FromDecimal(decimal.NewFromFloat(major).Mul(minorPerMajor))
}

// Scale multiplies the amount by ratio and rounds to the nearest minor unit.
func (a Amount) Scale(ratio decimal.Decimal) Amount {
	return FromDecimal(a.Decimal().Mul(ratio))
}

// Exceeds reports whether a is strictly greater than limit scaled by ratio.
// The comparison is exact; the scaled limit is never rounded.
func (a Amount) Exceeds(limit Amount, ratio decimal.Decimal) bool {
	return a.Decimal().GreaterThan(limit.Decimal().Mul(ratio))
}

// Major returns the amount in major units, for display and JSON only.
func (a Amount) Major() float64 {
	f, _ := a.Decimal().Div(minorPerMajor).Float64()
	return f
}

// Percent returns a as a percentage of total, or 0 when total is zero.
func Percent(a, total Amount) float64 {
	if total == 0 {
		return 0
	}
	f, _ := a.Decimal().Div(total.Decimal()).Mul(decimal.New(100, 0)).Round(2).Float64()
	return f
}

// String renders the amount in major units with thousands separators
// (e.g. "-1,234.56").
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	intPart := groupThousands(fmt.Sprintf("%d", v/constants.MinorUnitsPerMajor))
	return fmt.Sprintf("%s%s.%02d", sign, intPart, v%constants.MinorUnitsPerMajor)
}

// Currency renders the amount with the configured currency symbol prefix.
func Currency(a Amount, symbol string) string {
	s := a.String()
	if strings.HasPrefix(s, "-") {
		return "-" + symbol + s[1:]
	}
	return symbol + s
}

func groupThousands(intPart string) string {
	if len(intPart) <= 3 {
		return intPart
	}
	var builder strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			builder.WriteByte(',')
		}
		builder.WriteRune(digit)
	}
	return builder.String()
}
