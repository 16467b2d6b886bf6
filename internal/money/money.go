// Package money rounds and formats monetary and ratio values.
package money

import (
	"github.com/shopspring/decimal"
)

// Round rounds v to the given number of decimal places, half away from zero.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Cents rounds v to two decimal places.
func Cents(v float64) float64 {
	return Round(v, 2)
}

// CeilCents rounds v up to the next whole cent.
func CeilCents(v float64) float64 {
	return decimal.NewFromFloat(v).RoundCeil(2).InexactFloat64()
}

// CentsAtLeast rounds v to cents without letting a value at or above floor
// round below it.
func CentsAtLeast(v, floor float64) float64 {
	r := Cents(v)
	if v >= floor && r < floor {
		return CeilCents(floor)
	}
	return r
}

// Ptr returns a pointer to v rounded to cents.
func Ptr(v float64) *float64 {
	r := Cents(v)
	return &r
}

// Format renders v as a dollar amount, e.g. "$1245.00".
func Format(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

// Percent renders a ratio as a percentage with the given precision, e.g. 0.253 -> "25.3%".
func Percent(ratio float64, places int32) string {
	return decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(100)).StringFixed(places) + "%"
}

// RoundPtr returns a pointer to v rounded to places.
func RoundPtr(v float64, places int32) *float64 {
	r := Round(v, places)
	return &r
}
