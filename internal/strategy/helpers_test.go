package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
)

func decimalRatio(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("ratio %q: %v", s, err)
	}
	return d
}
