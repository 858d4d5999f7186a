package engine

import "github.com/shopspring/decimal"

// roundPlaces rounds half-up to the given number of decimal places,
// matching the scale of the persisted columns.
func roundPlaces(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
