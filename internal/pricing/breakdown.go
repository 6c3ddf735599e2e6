package pricing

import "github.com/shopspring/decimal"

// AddOn is an optional per-head charge (flights, visa).
type AddOn struct {
	Included  bool
	AdultCost float64
	ChildCost float64
}

// BreakdownInput carries everything the recompute needs.
type BreakdownInput struct {
	ActivityCosts []float64 // AED base cost of each selected activity
	Adults        int
	Children      int
	Flights       AddOn
	Visa          AddOn
	IncludeGST    bool
	GSTRate       float64
}

// Costs is the derived cost block stored on a quotation.
type Costs struct {
	Subtotal      float64 `json:"subtotal"`
	GSTAmount     float64 `json:"gstAmount"`
	FinalTotal    float64 `json:"finalTotal"`
	PerPersonCost float64 `json:"perPersonCost"`
}

// Breakdown is Costs plus the lines it was built from.
type Breakdown struct {
	Costs
	ActivitiesSubtotal float64 `json:"activitiesSubtotal"`
	FlightsCost        float64 `json:"flightsCost"`
	VisaCost           float64 `json:"visaCost"`
	GSTRate            float64 `json:"gstRate"`
	Pax                int     `json:"pax"`
}

// Compute runs the full cost recompute:
//  1. activities subtotal = Σ ActivityCost(cost, adults, children)
//  2. flights and 3. visa, when included, adult×adults + child×children
//  4. subtotal = activities + flights + visa
//  5. GST via ComputeFinalCost
//  6. per person = round(final / pax), 0 without pax
func Compute(in BreakdownInput) Breakdown {
	adults := clampPax(in.Adults)
	children := clampPax(in.Children)

	activities := decimal.Zero
	for _, cost := range in.ActivityCosts {
		activities = activities.Add(dec(ActivityCost(cost, adults, children)))
	}

	flights := addOnCost(in.Flights, adults, children)
	visa := addOnCost(in.Visa, adults, children)

	subtotal := activities.Add(flights).Add(visa)
	final := ComputeFinalCost(subtotal.InexactFloat64(), in.IncludeGST, in.GSTRate)

	pax := adults + children
	perPerson := decimal.Zero
	if pax > 0 {
		perPerson = dec(final.FinalTotal).Div(decimal.NewFromInt(int64(pax))).Round(0)
	}

	return Breakdown{
		Costs: Costs{
			Subtotal:      final.Subtotal,
			GSTAmount:     final.GSTAmount,
			FinalTotal:    final.FinalTotal,
			PerPersonCost: perPerson.InexactFloat64(),
		},
		ActivitiesSubtotal: activities.InexactFloat64(),
		FlightsCost:        flights.InexactFloat64(),
		VisaCost:           visa.InexactFloat64(),
		GSTRate:            final.GSTRate,
		Pax:                pax,
	}
}

// GrandTotal summarises activities only: total, pax and unrounded per-person.
type GrandTotal struct {
	ActivitiesTotal float64 `json:"activitiesTotal"`
	TotalPax        int     `json:"totalPax"`
	PerPersonCost   float64 `json:"perPersonCost"`
}

func ComputeGrandTotal(activityCosts []float64, adults, children int) GrandTotal {
	b := Compute(BreakdownInput{ActivityCosts: activityCosts, Adults: adults, Children: children})
	return GrandTotal{
		ActivitiesTotal: b.ActivitiesSubtotal,
		TotalPax:        b.Pax,
		PerPersonCost:   PerPersonCost(b.ActivitiesSubtotal, b.Pax),
	}
}

func addOnCost(a AddOn, adults, children int) decimal.Decimal {
	if !a.Included {
		return decimal.Zero
	}
	return dec(a.AdultCost).Mul(decimal.NewFromInt(int64(adults))).
		Add(dec(a.ChildCost).Mul(decimal.NewFromInt(int64(children))))
}

func clampPax(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
