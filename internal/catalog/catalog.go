// Package catalog supplies the activity catalog: location → category → tour
// with priced product/transfer variants. Rows come from a Google Sheet, a local
// workbook or the built-in sample, all sharing the same seven-column layout:
// location, category, tour, product, transfer, cost AED, cost USD.
package catalog

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/traverseglobe/quotation-backend/internal/pricing"
	"github.com/traverseglobe/quotation-backend/internal/quotation"
)

// DefaultMarkup is added to each product's AED cost to get its list price.
const DefaultMarkup = 5.0

const rowWidth = 7

// Provider yields the current catalog.
type Provider interface {
	Catalog(ctx context.Context) (*Catalog, error)
}

type Product struct {
	Location string  `json:"location"`
	Category string  `json:"category"`
	Tour     string  `json:"tour"`
	Product  string  `json:"product"`
	Transfer string  `json:"transfer"`
	CostAED  float64 `json:"costAED"`
	CostUSD  float64 `json:"costUSD"`
	Markup   float64 `json:"markup"`
}

// Activity converts the product into a quotation selection (without id).
func (p Product) Activity() quotation.Activity {
	return quotation.Activity{
		Location: p.Location,
		Category: p.Category,
		Tour:     p.Tour,
		Product:  p.Product,
		Transfer: p.Transfer,
		CostAED:  p.CostAED,
		CostUSD:  p.CostUSD,
	}
}

// Catalog is the hierarchical view. Tours are keyed by "location|category".
type Catalog struct {
	Locations  []string            `json:"locations"`
	Categories map[string][]string `json:"categories"`
	Tours      map[string][]string `json:"tours"`
	Products   []Product           `json:"products"`
}

func TourKey(location, category string) string {
	return location + "|" + category
}

// CategoriesFor lists the categories offered at location.
func (c *Catalog) CategoriesFor(location string) []string {
	return c.Categories[location]
}

// ToursFor lists the tours under location and category.
func (c *Catalog) ToursFor(location, category string) []string {
	return c.Tours[TourKey(location, category)]
}

// ProductsFor lists the priced variants of a tour in catalog order.
func (c *Catalog) ProductsFor(location, category, tour string) []Product {
	var out []Product
	for _, p := range c.Products {
		if p.Location == location && p.Category == category && p.Tour == tour {
			out = append(out, p)
		}
	}
	return out
}

// Find resolves catalog coordinates to a product. An empty transfer matches
// the first variant of the product.
func (c *Catalog) Find(location, category, tour, product, transfer string) (Product, bool) {
	for _, p := range c.ProductsFor(location, category, tour) {
		if p.Product != product {
			continue
		}
		if transfer == "" || p.Transfer == transfer {
			return p, true
		}
	}
	return Product{}, false
}

// BuildCatalog turns sheet rows into a catalog. The first row is a header.
// Rows with fewer than seven cells or without location, category and tour are
// skipped. Unparseable costs count as zero.
func BuildCatalog(rows [][]string, markup float64) *Catalog {
	locations := map[string]struct{}{}
	categories := map[string]map[string]struct{}{}
	tours := map[string]map[string]struct{}{}
	products := []Product{}

	for i, row := range rows {
		if i == 0 || len(row) < rowWidth {
			continue
		}
		location := strings.TrimSpace(row[0])
		category := strings.TrimSpace(row[1])
		tour := strings.TrimSpace(row[2])
		if location == "" || category == "" || tour == "" {
			continue
		}

		locations[location] = struct{}{}
		addTo(categories, location, category)
		addTo(tours, TourKey(location, category), tour)

		costAED := parseCost(row[5])
		products = append(products, Product{
			Location: location,
			Category: category,
			Tour:     tour,
			Product:  strings.TrimSpace(row[3]),
			Transfer: strings.TrimSpace(row[4]),
			CostAED:  costAED,
			CostUSD:  parseCost(row[6]),
			Markup:   pricing.Markup(costAED, markup),
		})
	}

	return &Catalog{
		Locations:  sortedKeys(locations),
		Categories: sortedSets(categories),
		Tours:      sortedSets(tours),
		Products:   products,
	}
}

func addTo(sets map[string]map[string]struct{}, key, value string) {
	set, ok := sets[key]
	if !ok {
		set = map[string]struct{}{}
		sets[key] = set
	}
	set[value] = struct{}{}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSets(sets map[string]map[string]struct{}) map[string][]string {
	out := make(map[string][]string, len(sets))
	for k, set := range sets {
		out[k] = sortedKeys(set)
	}
	return out
}

var costPattern = regexp.MustCompile(`-?\d[\d,]*(\.\d+)?`)

// parseCost reads the first number in raw, tolerating currency prefixes such
// as "Dhs." and grouping commas. Negative or missing numbers are zero.
func parseCost(raw string) float64 {
	match := costPattern.FindString(raw)
	if match == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
