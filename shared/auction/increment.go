package auction

import (
	"github.com/shopspring/decimal"
)

type tier struct {
	upTo      decimal.Decimal // inclusive
	increment decimal.Decimal
}

var (
	tiers = []tier{
		{decimal.RequireFromString("0"), decimal.RequireFromString("0.01")},
		{decimal.RequireFromString("0.99"), decimal.RequireFromString("0.05")},
		{decimal.RequireFromString("2.49"), decimal.RequireFromString("0.10")},
		{decimal.RequireFromString("4.99"), decimal.RequireFromString("0.25")},
		{decimal.RequireFromString("9.99"), decimal.RequireFromString("0.50")},
		{decimal.RequireFromString("24.99"), decimal.RequireFromString("1.00")},
		{decimal.RequireFromString("49.99"), decimal.RequireFromString("2.50")},
		{decimal.RequireFromString("99.99"), decimal.RequireFromString("5.00")},
		{decimal.RequireFromString("249.99"), decimal.RequireFromString("7.50")},
		{decimal.RequireFromString("499.99"), decimal.RequireFromString("10.00")},
		{decimal.RequireFromString("999.99"), decimal.RequireFromString("25.00")},
		{decimal.RequireFromString("2499.99"), decimal.RequireFromString("50.00")},
		{decimal.RequireFromString("4999.99"), decimal.RequireFromString("75.00")},
		{decimal.RequireFromString("9999.99"), decimal.RequireFromString("100.00")},
		{decimal.RequireFromString("24999.99"), decimal.RequireFromString("250.00")},
	}

	topIncrement = decimal.RequireFromString("500.00")

	// MaxPrice is the largest amount a NUMERIC(12, 2) archive column holds
	MaxPrice = decimal.RequireFromString("9999999999.99")
)

// MinimumIncrement returns the smallest amount by which a bid has to exceed currentPrice.
func MinimumIncrement(currentPrice decimal.Decimal) decimal.Decimal {
	for _, t := range tiers {
		if currentPrice.LessThanOrEqual(t.upTo) {
			return t.increment
		}
	}
	return topIncrement
}

// MinimumBid is the lowest amount that would be accepted against currentPrice.
func MinimumBid(currentPrice decimal.Decimal) decimal.Decimal {
	return currentPrice.Add(MinimumIncrement(currentPrice))
}

// HasSubCentPrecision reports whether d cannot be represented in whole cents.
func HasSubCentPrecision(d decimal.Decimal) bool {
	return !d.Equal(d.Truncate(2))
}

// ValidPrice reports whether d is a positive whole-cent amount no larger than MaxPrice.
func ValidPrice(d decimal.Decimal) bool {
	return d.IsPositive() && !HasSubCentPrecision(d) && d.LessThanOrEqual(MaxPrice)
}

// FormatCents is the canonical text form of a price. Stores compare prices by this string.
func FormatCents(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatReserve is FormatCents for an optional reserve; no reserve is the empty string
func FormatReserve(reserve *decimal.Decimal) string {
	if reserve == nil {
		return ""
	}
	return FormatCents(*reserve)
}
