package quotation

import (
	"time"

	"github.com/traverseglobe/quotation-backend/internal/pricing"
)

// SchemaVersion is stamped on every persisted and exported document. Load and
// import reject any other value.
const SchemaVersion = 1

type TravelType string

const (
	TravelTypeLeisure   TravelType = "Leisure"
	TravelTypeBusiness  TravelType = "Business"
	TravelTypeFamily    TravelType = "Family"
	TravelTypeCouple    TravelType = "Couple"
	TravelTypeAdventure TravelType = "Adventure"
	TravelTypeHoneymoon TravelType = "Honeymoon"
)

// TravelTypes lists the accepted travel types in display order.
var TravelTypes = []TravelType{
	TravelTypeLeisure,
	TravelTypeBusiness,
	TravelTypeFamily,
	TravelTypeCouple,
	TravelTypeAdventure,
	TravelTypeHoneymoon,
}

func (t TravelType) IsValid() bool {
	for _, v := range TravelTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Meal string

const (
	MealNone               Meal = "No Meal"
	MealBreakfast          Meal = "Breakfast"
	MealLunch              Meal = "Lunch"
	MealDinner             Meal = "Dinner"
	MealAll                Meal = "All Meals"
	MealBreakfastAndDinner Meal = "Breakfast & Dinner"
)

// Meals lists the accepted meal plans in display order.
var Meals = []Meal{
	MealNone,
	MealBreakfast,
	MealLunch,
	MealDinner,
	MealAll,
	MealBreakfastAndDinner,
}

func (m Meal) IsValid() bool {
	for _, v := range Meals {
		if v == m {
			return true
		}
	}
	return false
}

// Transfer options offered by the catalog.
const (
	TransferNone    = "Without Transfers"
	TransferShared  = "With Transfers"
	TransferPrivate = "Private Transfer"
)

// TravelDates holds YYYY-MM-DD calendar dates; either side may be empty.
type TravelDates struct {
	From string `json:"from" validate:"tripdate"`
	To   string `json:"to" validate:"tripdate"`
}

// AddOn is an optional per-head charge such as flights or visa.
type AddOn struct {
	Included  bool    `json:"included"`
	AdultCost float64 `json:"adultCost" validate:"gte=0"`
	ChildCost float64 `json:"childCost" validate:"gte=0"`
}

func (a AddOn) toPricing() pricing.AddOn {
	return pricing.AddOn{Included: a.Included, AdultCost: a.AdultCost, ChildCost: a.ChildCost}
}

// Activity is one priced tour line attached to the quotation. Identity is ID.
type Activity struct {
	ID       string  `json:"id"`
	Location string  `json:"location"`
	Category string  `json:"category"`
	Tour     string  `json:"tour"`
	Product  string  `json:"product"`
	Transfer string  `json:"transfer"`
	CostAED  float64 `json:"costAED" validate:"gte=0"`
	CostUSD  float64 `json:"costUSD" validate:"gte=0"`
}

// Day is one entry of the day-by-day plan. Day is always the 1-based position.
type Day struct {
	Day           int      `json:"day"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Meals         Meal     `json:"meals" validate:"meal"`
	Accommodation string   `json:"accommodation"`
	ImageURL      string   `json:"imageUrl"`
	Options       []string `json:"options"`
	Activities    []string `json:"activities"`
}

// Quotation is the full document owned by a Container. TripDuration and Costs
// are derived and recomputed on every mutation.
type Quotation struct {
	SchemaVersion      int              `json:"schemaVersion"`
	GuestName          string           `json:"guestName"`
	TotalAdults        int              `json:"totalAdults" validate:"gte=0"`
	TotalChildren      int              `json:"totalChildren" validate:"gte=0"`
	TravelDates        TravelDates      `json:"travelDates"`
	TravelType         TravelType       `json:"travelType" validate:"traveltype"`
	Flights            AddOn            `json:"flights"`
	Visa               AddOn            `json:"visa"`
	SelectedActivities []Activity       `json:"selectedActivities" validate:"dive"`
	Itinerary          []Day            `json:"itinerary" validate:"dive"`
	IncludeGST         bool             `json:"includeGST"`
	TripDuration       pricing.Duration `json:"tripDuration"`
	Costs              pricing.Costs    `json:"costs"`
}

// Default returns a fresh document with the agency's defaults: two adults,
// leisure travel, flights excluded and visa included at 295 per adult.
func Default() Quotation {
	q := Quotation{
		SchemaVersion: SchemaVersion,
		TotalAdults:   2,
		TravelType:    TravelTypeLeisure,
		Flights:       AddOn{Included: false},
		Visa:          AddOn{Included: true, AdultCost: 295},
	}
	q.SelectedActivities = []Activity{}
	q.Itinerary = []Day{}
	return q
}

// Pax is the total passenger count.
func (q Quotation) Pax() int {
	return q.TotalAdults + q.TotalChildren
}

// Breakdown recomputes the full cost breakdown at rate.
func (q Quotation) Breakdown(rate float64) pricing.Breakdown {
	costs := make([]float64, len(q.SelectedActivities))
	for i, a := range q.SelectedActivities {
		costs[i] = a.CostAED
	}
	return pricing.Compute(pricing.BreakdownInput{
		ActivityCosts: costs,
		Adults:        q.TotalAdults,
		Children:      q.TotalChildren,
		Flights:       q.Flights.toPricing(),
		Visa:          q.Visa.toPricing(),
		IncludeGST:    q.IncludeGST,
		GSTRate:       rate,
	})
}

// withDerived returns q with trip duration and costs recomputed.
func (q Quotation) withDerived(rate float64) Quotation {
	q.TripDuration = pricing.TripDuration(q.TravelDates.From, q.TravelDates.To)
	q.Costs = q.Breakdown(rate).Costs
	return q
}

// clone copies the slices so the result shares no backing arrays with q.
func (q Quotation) clone() Quotation {
	q.SelectedActivities = append([]Activity{}, q.SelectedActivities...)
	days := make([]Day, len(q.Itinerary))
	for i, d := range q.Itinerary {
		days[i] = d.clone()
	}
	q.Itinerary = days
	return q
}

func (d Day) clone() Day {
	d.Options = append([]string{}, d.Options...)
	d.Activities = append([]string{}, d.Activities...)
	return d
}

// SaveStatus reports the outcome of persistence for presentation.
type SaveStatus struct {
	// Saved flashes true after a successful save and clears shortly after.
	Saved bool `json:"saved"`
	// Error holds the last save failure until a later save succeeds.
	Error       string     `json:"error,omitempty"`
	Pending     bool       `json:"pending"`
	LastSavedAt *time.Time `json:"lastSavedAt,omitempty"`
}
