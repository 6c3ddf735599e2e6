package catalog

import "context"

// StaticProvider serves the built-in sample catalog.
type StaticProvider struct {
	markup float64
}

func NewStaticProvider(markup float64) *StaticProvider {
	return &StaticProvider{markup: markup}
}

func (p *StaticProvider) Name() string { return "static" }

func (p *StaticProvider) Catalog(_ context.Context) (*Catalog, error) {
	return SampleCatalog(p.markup), nil
}

// SampleCatalog is the demo data served when no live source is reachable.
func SampleCatalog(markup float64) *Catalog {
	product := func(location, category, tour, name, transfer string, aed, usd float64) Product {
		return Product{
			Location: location,
			Category: category,
			Tour:     tour,
			Product:  name,
			Transfer: transfer,
			CostAED:  aed,
			CostUSD:  usd,
			Markup:   aed + markup,
		}
	}

	return &Catalog{
		Locations: []string{"Abu Dhabi", "Dubai", "Sharjah"},
		Categories: map[string][]string{
			"Dubai":     {"Desert Safari", "Night Activities", "Sightseeing Tours", "Water Activities"},
			"Abu Dhabi": {"Desert Safari", "Sightseeing Tours"},
			"Sharjah":   {"Beach Activities", "City Tours"},
		},
		Tours: map[string][]string{
			"Dubai|Sightseeing Tours":     {"Burj Khalifa", "Dubai Museum", "The Palm Monorail"},
			"Dubai|Water Activities":      {"Dhow Cruise", "Jet Ski", "Speed Boat"},
			"Dubai|Desert Safari":         {"Evening Safari", "Morning Safari", "Overnight Safari"},
			"Abu Dhabi|Sightseeing Tours": {"Louvre Abu Dhabi", "Sheikh Zayed Mosque"},
		},
		Products: []Product{
			product("Dubai", "Sightseeing Tours", "Burj Khalifa", "124th Floor", "Without Transfers", 140, 38),
			product("Dubai", "Sightseeing Tours", "Burj Khalifa", "124th + 125th Floor", "Without Transfers", 189, 51.5),
			product("Dubai", "Desert Safari", "Evening Safari", "Standard", "With Transfers", 95, 26),
		},
	}
}
