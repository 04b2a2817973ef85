package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsridhar/carvault/internal/domain"
)

func sampleCars() []domain.Car {
	return []domain.Car{
		{ID: domain.IntID(1), Name: "Bone Shaker", Brand: "Hot Wheels", Series: "Mainline", Color: "Red", Condition: "Mint", PurchasePrice: 1.99, PurchaseDate: "2021-03-01"},
		{ID: domain.IntID(2), Name: "GT40", Brand: "Hot Wheels", Series: "Car Culture", Color: "Blue", Condition: "Good", PurchasePrice: 5.50, PurchaseDate: "2020-11-15"},
		{ID: domain.IntID(3), Name: "Porsche 911", Brand: "Matchbox", Series: "Moving Parts", Color: "Green", Condition: "Mint", PurchasePrice: 3.25, PurchaseDate: "2022-01-20", Description: "targa top"},
	}
}

func names(cars []domain.Car) []string {
	out := make([]string, len(cars))
	for i, c := range cars {
		out[i] = c.Name
	}
	return out
}

func TestSearchIsCaseInsensitiveAcrossFields(t *testing.T) {
	cars := sampleCars()

	assert.Equal(t, []string{"Bone Shaker"}, names(Search(cars, "SHAKER", Filters{})))
	assert.Equal(t, []string{"Porsche 911"}, names(Search(cars, "matchbox", Filters{})))
	assert.Equal(t, []string{"Porsche 911"}, names(Search(cars, "targa", Filters{})), "description is searched too")
}

func TestSearchEmptyQueryReturnsEverything(t *testing.T) {
	assert.Len(t, Search(sampleCars(), "  ", Filters{}), 3)
}

func TestSearchFiltersAreConjunctive(t *testing.T) {
	cars := sampleCars()

	got := Search(cars, "", Filters{Brand: "Hot Wheels", Condition: "Mint"})
	assert.Equal(t, []string{"Bone Shaker"}, names(got))

	assert.Empty(t, Search(cars, "gt40", Filters{Brand: "Matchbox"}), "query and filters must both match")
}

func TestSortByName(t *testing.T) {
	got := Sort(sampleCars(), ByName, false)
	assert.Equal(t, []string{"Bone Shaker", "GT40", "Porsche 911"}, names(got))
}

func TestSortByPriceDescending(t *testing.T) {
	got := Sort(sampleCars(), ByPrice, true)
	assert.Equal(t, []string{"GT40", "Porsche 911", "Bone Shaker"}, names(got))
}

func TestSortByDate(t *testing.T) {
	got := Sort(sampleCars(), ByDate, false)
	assert.Equal(t, []string{"GT40", "Bone Shaker", "Porsche 911"}, names(got))
}

func TestSortUnknownFieldFallsBackToName(t *testing.T) {
	got := Sort(sampleCars(), "bogus", false)
	assert.Equal(t, []string{"Bone Shaker", "GT40", "Porsche 911"}, names(got))
}

func TestSortDoesNotMutateInput(t *testing.T) {
	cars := sampleCars()
	Sort(cars, ByPrice, true)
	assert.Equal(t, "Bone Shaker", cars[0].Name)
}

func TestComputeStatistics(t *testing.T) {
	stats := Compute(sampleCars())

	assert.Equal(t, 3, stats.TotalCars)
	assert.InDelta(t, 10.74, stats.TotalValue, 0.001)
	assert.InDelta(t, 3.58, stats.AveragePrice, 0.001)
	assert.Equal(t, map[string]int{"Hot Wheels": 2, "Matchbox": 1}, stats.ByBrand)
	assert.Equal(t, map[string]int{"Mint": 2, "Good": 1}, stats.ByCondition)

	require.NotNil(t, stats.MostExpensive)
	assert.Equal(t, "GT40", stats.MostExpensive.Name)
	require.NotNil(t, stats.LeastExpensive)
	assert.Equal(t, "Bone Shaker", stats.LeastExpensive.Name)
}

func TestComputeEmptyCollection(t *testing.T) {
	stats := Compute(nil)

	assert.Zero(t, stats.TotalCars)
	assert.Zero(t, stats.AveragePrice)
	assert.Nil(t, stats.MostExpensive)
	assert.NotNil(t, stats.ByBrand, "maps are always usable")
}

func TestUniqueValues(t *testing.T) {
	cars := append(sampleCars(), domain.Car{Name: "Twin Mill", Brand: "Hot Wheels"})

	assert.Equal(t, []string{"Hot Wheels", "Matchbox"}, UniqueValues(cars, "brand"))
	assert.Equal(t, []string{"Blue", "Green", "Red"}, UniqueValues(cars, "color"), "blank values are skipped")
	assert.Empty(t, UniqueValues(cars, "nope"))
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "₹150.00", FormatCurrency(150, ""))
	assert.Equal(t, "$5.50", FormatCurrency(5.5, "USD"))
	assert.Equal(t, "C$3.20", FormatCurrency(3.2, "CAD"))
	assert.Equal(t, "XYZ 1.00", FormatCurrency(1, "XYZ"))
}
