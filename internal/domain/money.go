package domain

import (
	"github.com/shopspring/decimal"
)

// MinorUnitExponent is the number of fractional digits carried by every amount.
const MinorUnitExponent = 2

func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -MinorUnitExponent)
}

// FitsMinorUnits reports whether d, counted in paise, fits the int64 a snapshot
// record stores.
func FitsMinorUnits(d decimal.Decimal) bool {
	return d.Shift(MinorUnitExponent).BigInt().IsInt64()
}

// ToMinorUnits truncates anything below one paisa; callers check FitsMinorUnits first.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(MinorUnitExponent).IntPart()
}

// HasMinorUnitPrecision reports whether d needs no more than two fractional digits.
func HasMinorUnitPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MinorUnitExponent))
}
