// Package query holds the pure helpers over the in-memory collections:
// search, filtering, sorting, aggregation and display formatting. Nothing
// here performs I/O.
package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nsridhar/carvault/internal/domain"
)

// Filters narrows search results by exact field equality. Empty fields
// match everything.
type Filters struct {
	Brand     string
	Series    string
	Color     string
	Condition string
}

// Search returns the cars whose name, brand, series, color or description
// contains the query (case-insensitive, OR across fields), intersected with
// the equality filters.
func Search(cars []domain.Car, q string, f Filters) []domain.Car {
	q = strings.ToLower(strings.TrimSpace(q))

	out := make([]domain.Car, 0, len(cars))
	for _, car := range cars {
		if q != "" && !matchesQuery(car, q) {
			continue
		}
		if f.Brand != "" && car.Brand != f.Brand {
			continue
		}
		if f.Series != "" && car.Series != f.Series {
			continue
		}
		if f.Color != "" && car.Color != f.Color {
			continue
		}
		if f.Condition != "" && car.Condition != f.Condition {
			continue
		}
		out = append(out, car)
	}
	return out
}

func matchesQuery(car domain.Car, q string) bool {
	for _, field := range []string{car.Name, car.Brand, car.Series, car.Color, car.Description} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Sort fields.
const (
	ByName  = "name"
	ByBrand = "brand"
	ByPrice = "price"
	ByDate  = "purchaseDate"
)

// Sort orders a copy of cars by the named field. String fields compare
// lower-cased; unknown fields fall back to name. The sort is stable so
// equal keys keep insertion order.
func Sort(cars []domain.Car, field string, descending bool) []domain.Car {
	out := make([]domain.Car, len(cars))
	copy(out, cars)

	var less func(a, b domain.Car) bool
	switch field {
	case ByBrand:
		less = func(a, b domain.Car) bool {
			return strings.ToLower(a.Brand) < strings.ToLower(b.Brand)
		}
	case ByPrice:
		less = func(a, b domain.Car) bool { return a.PurchasePrice < b.PurchasePrice }
	case ByDate:
		less = func(a, b domain.Car) bool {
			return parseDate(a.PurchaseDate).Before(parseDate(b.PurchaseDate))
		}
	default:
		less = func(a, b domain.Car) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

func parseDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Compute aggregates the collection into display statistics.
func Compute(cars []domain.Car) domain.Statistics {
	stats := domain.Statistics{
		TotalCars:   len(cars),
		ByBrand:     map[string]int{},
		BySeries:    map[string]int{},
		ByColor:     map[string]int{},
		ByCondition: map[string]int{},
	}

	for i := range cars {
		car := cars[i]
		stats.TotalValue += car.PurchasePrice
		countInto(stats.ByBrand, car.Brand)
		countInto(stats.BySeries, car.Series)
		countInto(stats.ByColor, car.Color)
		countInto(stats.ByCondition, car.Condition)

		if stats.MostExpensive == nil || car.PurchasePrice > stats.MostExpensive.PurchasePrice {
			stats.MostExpensive = &cars[i]
		}
		if stats.LeastExpensive == nil || car.PurchasePrice < stats.LeastExpensive.PurchasePrice {
			stats.LeastExpensive = &cars[i]
		}
	}

	if stats.TotalCars > 0 {
		stats.AveragePrice = stats.TotalValue / float64(stats.TotalCars)
	}
	return stats
}

func countInto(m map[string]int, key string) {
	if key != "" {
		m[key]++
	}
}

// UniqueValues returns the sorted distinct non-blank values of a field,
// used to populate filter dropdowns.
func UniqueValues(cars []domain.Car, field string) []string {
	seen := map[string]bool{}
	for _, car := range cars {
		var v string
		switch field {
		case "brand":
			v = car.Brand
		case "series":
			v = car.Series
		case "color":
			v = car.Color
		case "condition":
			v = car.Condition
		case "year":
			v = car.Year
		}
		if strings.TrimSpace(v) != "" {
			seen[v] = true
		}
	}

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

var currencySymbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"CAD": "C$",
	"AUD": "A$",
}

// FormatCurrency renders an amount with the symbol for the given currency
// code, falling back to "<code> <amount>" for unknown codes and to INR for
// an empty code.
func FormatCurrency(amount float64, currency string) string {
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	if sym, ok := currencySymbols[currency]; ok {
		return fmt.Sprintf("%s%.2f", sym, amount)
	}
	return fmt.Sprintf("%s %.2f", currency, amount)
}
