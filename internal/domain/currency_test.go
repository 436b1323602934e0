package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCurrencyMultiplier(t *testing.T) {
	tests := []struct {
		currency string
		want     int64
	}{
		{"DKK", 100},
		{"EUR", 100},
		{"USD", 100},
		{"ISK", 1},
		{"isk", 1},
		{"JPY", 1},
		{"SEK", 100},
	}

	for _, tt := range tests {
		t.Run(tt.currency, func(t *testing.T) {
			assert.Equal(t, tt.want, CurrencyMultiplier(tt.currency))
		})
	}
}

func TestToMajorUnits(t *testing.T) {
	assert.Equal(t, "100.00", ToMajorUnits(10000, "DKK").StringFixed(2))
	assert.Equal(t, "0.01", ToMajorUnits(1, "EUR").StringFixed(2))
	assert.Equal(t, "500", ToMajorUnits(500, "ISK").String())
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(10000), ToMinorUnits(decimal.RequireFromString("100.00"), "DKK"))
	assert.Equal(t, int64(99), ToMinorUnits(decimal.RequireFromString("0.99"), "EUR"))
	assert.Equal(t, int64(500), ToMinorUnits(decimal.RequireFromString("500"), "ISK"))
}

// Round-trip: minor -> major -> minor is exact for zero-decimal and
// two-decimal currencies alike.
func TestMinorUnitsRoundTrip(t *testing.T) {
	currencies := []string{"DKK", "EUR", "USD", "ISK", "JPY"}
	amounts := []int64{0, 1, 99, 100, 12345, 999999999}

	for _, currency := range currencies {
		for _, amount := range amounts {
			got := ToMinorUnits(ToMajorUnits(amount, currency), currency)
			assert.Equal(t, amount, got, "round trip failed for %d %s", amount, currency)
		}
	}
}
