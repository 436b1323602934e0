package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currencies whose minor unit equals the major unit. For these the gateway
// expects whole amounts, so the multiplier is 1 instead of 100.
var zeroDecimalCurrencies = map[string]struct{}{
	"ISK": {},
	"JPY": {},
	"KRW": {},
	"CLP": {},
	"VND": {},
	"UGX": {},
}

// CurrencyMultiplier returns the minor-units-per-major-unit factor for a currency.
func CurrencyMultiplier(currency string) int64 {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(currency)]; ok {
		return 1
	}
	return 100
}

// ToMajorUnits converts an amount in minor units to a major-unit decimal.
// All internal ledger arithmetic is done in minor units; conversion happens
// only at the boundary (gateway requests, persisted settle amounts).
func ToMajorUnits(amountMinor int64, currency string) decimal.Decimal {
	mult := CurrencyMultiplier(currency)
	if mult == 1 {
		return decimal.NewFromInt(amountMinor)
	}
	return decimal.NewFromInt(amountMinor).Div(decimal.NewFromInt(mult))
}

// ToMinorUnits converts a major-unit decimal to minor units.
// Round-trip with ToMajorUnits is exact for every supported currency.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	mult := CurrencyMultiplier(currency)
	if mult == 1 {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(decimal.NewFromInt(mult)).Round(0).IntPart()
}
