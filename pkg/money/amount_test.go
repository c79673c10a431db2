package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAmountString(t *testing.T) {
	tests := []struct {
		name     string
		input    Amount
		expected string
	}{
		{"Zero", 0, "0.00"},
		{"Cents only", 7, "0.07"},
		{"Simple", 12345, "123.45"},
		{"Thousands", 123456789, "1,234,567.89"},
		{"Negative", -700000, "-7,000.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.input.String(); got != tt.expected {
				t.Errorf("Amount(%d).String() = %q, expected %q", int64(tt.input), got, tt.expected)
			}
		})
	}
}

func TestCurrency(t *testing.T) {
	if got := Currency(-150, "$"); got != "-$1.50" {
		t.Errorf("Currency(-150) = %q", got)
	}
	if got := Currency(698000, "€"); got != "€6,980.00" {
		t.Errorf("Currency(698000) = %q", got)
	}
}

func TestScaleRoundsHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		name     string
		amount   Amount
		ratio    string
		expected Amount
	}{
		{"Exact", 7000, "1.43", 10010},
		{"Round up at midpoint", 5, "0.5", 3},
		{"Round down below midpoint", 7, "0.3", 2},
		{"Identity", 12345, "1", 12345},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.amount.Scale(decimal.RequireFromString(tt.ratio))
			if got != tt.expected {
				t.Errorf("Scale(%d, %s) = %d, expected %d", tt.amount, tt.ratio, got, tt.expected)
			}
		})
	}
}

func TestExceedsIsStrictAndExact(t *testing.T) {
	ratio := decimal.RequireFromString("1.05")
	if Amount(7350).Exceeds(7000, ratio) {
		t.Error("7350 should not exceed 7000 x 1.05")
	}
	if !Amount(7351).Exceeds(7000, ratio) {
		t.Error("7351 should exceed 7000 x 1.05")
	}
	// 333 x 1.1 = 366.3, so 366 does not exceed and 367 does.
	if Amount(366).Exceeds(333, decimal.RequireFromString("1.1")) {
		t.Error("366 should not exceed 366.3")
	}
	if !Amount(367).Exceeds(333, decimal.RequireFromString("1.1")) {
		t.Error("367 should exceed 366.3")
	}
}

func TestFromMajorAndPercent(t *testing.T) {
	if got := FromMajor(12.34); got != 1234 {
		t.Errorf("FromMajor(12.34) = %d", got)
	}
	if got := FromMajor(0.1 + 0.2); got != 30 {
		t.Errorf("FromMajor(0.3) = %d", got)
	}
	if got := Percent(500, 8000); got != 6.25 {
		t.Errorf("Percent(500, 8000) = %v", got)
	}
	if got := Percent(1, 0); got != 0 {
		t.Errorf("Percent with zero total = %v", got)
	}
}
