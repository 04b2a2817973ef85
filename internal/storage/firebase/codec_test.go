package firebase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nsridhar/carvault/internal/domain"
)

func TestCarCodecRoundTrip(t *testing.T) {
	in := domain.Car{
		ID:            domain.ID("docabc"),
		Name:          "Bone Shaker",
		Brand:         "Hot Wheels",
		Series:        "Mainline",
		Year:          "2021",
		Color:         "Red",
		Scale:         "1:64",
		Condition:     "Mint",
		PurchasePrice: 1.99,
		PurchaseDate:  "2021-06-01",
		Description:   "Flame deco",
		Image:         "https://example.com/i.png",
		DateAdded:     time.Date(2021, 6, 2, 10, 0, 0, 0, time.UTC),
	}

	doc := encodeCar(in)
	doc.Name = "projects/p/databases/(default)/documents/users/u/cars/docabc"

	assert.Equal(t, in, decodeCar(doc))
}

func TestCarCodecOmitsEmptyFields(t *testing.T) {
	doc := encodeCar(domain.Car{Name: "GT40", Brand: "Hot Wheels"})

	assert.Contains(t, doc.Fields, "name")
	assert.Contains(t, doc.Fields, "brand")
	assert.NotContains(t, doc.Fields, "series")
	assert.NotContains(t, doc.Fields, "description")
}

func TestDecodeCarIntegerPrice(t *testing.T) {
	n := "5"
	doc := encodeCar(domain.Car{Name: "GT40", Brand: "Hot Wheels"})
	doc.Fields["purchasePrice"] = value{IntegerValue: &n}

	assert.Equal(t, 5.0, decodeCar(doc).PurchasePrice)
}

func TestWishlistItemCodecRoundTrip(t *testing.T) {
	in := domain.WishlistItem{
		ID:            domain.ID("w1"),
		Name:          "Porsche 911",
		Brand:         "Matchbox",
		Series:        "Moving Parts",
		ExpectedPrice: 4.5,
		Notes:         "prefer green",
		DateAdded:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	doc := encodeWishlistItem(in)
	doc.Name = "projects/p/databases/(default)/documents/users/u/wishlist/w1"

	assert.Equal(t, in, decodeWishlistItem(doc))
}

func TestSettingsCodecRoundTrip(t *testing.T) {
	in := domain.Settings{SiteName: "My Garage", Currency: "USD", AdminPassword: "obf", SetupRequired: true}

	out, ok := decodeSettings(encodeSettings(in))
	assert.True(t, ok)
	assert.Equal(t, in, out)
}

func TestDecodeSettingsMissing(t *testing.T) {
	_, ok := decodeSettings(value{})
	assert.False(t, ok)
}

func TestObjectExt(t *testing.T) {
	assert.Equal(t, "png", objectExt("photo.PNG"))
	assert.Equal(t, "jpg", objectExt("photo"))
	assert.Equal(t, "jpg", objectExt("evil.exe"))
}

func TestObjectFromRef(t *testing.T) {
	url := "https://firebasestorage.googleapis.com/v0/b/bkt/o/cars%2Fu1%2Fc1_9.png?alt=media&token=tok"
	assert.Equal(t, "cars/u1/c1_9.png", objectFromRef(url))
	assert.Equal(t, "cars/u1/c1_9.png", objectFromRef("cars/u1/c1_9.png"))
	assert.Equal(t, "", objectFromRef("https://example.com/no-object"))
}
