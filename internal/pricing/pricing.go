// Package pricing turns quotation selections into a cost breakdown. Every
// function is pure; arithmetic runs on decimals and is surfaced as float64 so
// that e.g. 200 at 5% GST totals exactly 210.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/traverseglobe/quotation-backend/pkg/format"
)

const (
	// DefaultGSTRate is the configured consumption tax (5%).
	DefaultGSTRate = 0.05

	DefaultAdultWeight = 1.0
	DefaultChildWeight = 0.5
)

// FinalCost is the GST step of the breakdown.
type FinalCost struct {
	Subtotal  float64 `json:"subtotal"`
	GSTAmount float64 `json:"gstAmount"`
	// GSTRate is expressed in percent (5 for 5%).
	GSTRate    float64 `json:"gstRate"`
	FinalTotal float64 `json:"finalTotal"`
}

// Duration is the derived trip length.
type Duration struct {
	Days   int `json:"days"`
	Nights int `json:"nights"`
}

// ActivityCost multiplies an activity's base cost by the weighted headcount
// (adults count fully, children at half).
func ActivityCost(baseCost float64, adults, children int) float64 {
	return WeightedActivityCost(baseCost, adults, children, DefaultAdultWeight, DefaultChildWeight)
}

// WeightedActivityCost is ActivityCost with explicit weights:
// baseCost × (adults×adultWeight + children×childWeight).
func WeightedActivityCost(baseCost float64, adults, children int, adultWeight, childWeight float64) float64 {
	heads := dec(adultWeight).Mul(decimal.NewFromInt(int64(adults))).
		Add(dec(childWeight).Mul(decimal.NewFromInt(int64(children))))
	return dec(baseCost).Mul(heads).InexactFloat64()
}

// ComputeFinalCost applies GST at rate when includeGST is set.
func ComputeFinalCost(subtotal float64, includeGST bool, rate float64) FinalCost {
	sub := dec(subtotal)
	gst := decimal.Zero
	if includeGST {
		gst = sub.Mul(dec(rate))
	}
	return FinalCost{
		Subtotal:   sub.InexactFloat64(),
		GSTAmount:  gst.InexactFloat64(),
		GSTRate:    dec(rate).Mul(decimal.NewFromInt(100)).InexactFloat64(),
		FinalTotal: sub.Add(gst).InexactFloat64(),
	}
}

// TripDuration derives days/nights from two YYYY-MM-DD dates. Missing or
// unparseable dates yield a zero duration; swapped dates are tolerated.
func TripDuration(from, to string) Duration {
	start, okStart := format.ParseDate(from)
	end, okEnd := format.ParseDate(to)
	if !okStart || !okEnd {
		return Duration{}
	}
	diff := math.Abs(end.Sub(start).Hours() / 24)
	nights := int(math.Ceil(diff))
	return Duration{Days: nights + 1, Nights: nights}
}

// PerPersonCost splits total across pax. Zero (or negative) pax yields 0.
// The result is not rounded.
func PerPersonCost(total float64, pax int) float64 {
	if pax <= 0 {
		return 0
	}
	return dec(total).Div(decimal.NewFromInt(int64(pax))).InexactFloat64()
}

// Markup returns the catalog list price of an activity: base AED cost plus a
// fixed per-item markup.
func Markup(costAED, markup float64) float64 {
	return dec(costAED).Add(dec(markup)).InexactFloat64()
}

// dec converts a float, mapping NaN/Inf (which decimal rejects) to zero.
func dec(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}
