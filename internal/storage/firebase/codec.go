package firebase

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nsridhar/carvault/internal/domain"
)

// value is the Firestore REST representation of a single field value. Only
// the kinds the collection model needs are supported.
type value struct {
	StringValue    *string   `json:"stringValue,omitempty"`
	DoubleValue    *float64  `json:"doubleValue,omitempty"`
	IntegerValue   *string   `json:"integerValue,omitempty"`
	BooleanValue   *bool     `json:"booleanValue,omitempty"`
	TimestampValue *string   `json:"timestampValue,omitempty"`
	MapValue       *mapValue `json:"mapValue,omitempty"`
}

type mapValue struct {
	Fields map[string]value `json:"fields"`
}

// document is the Firestore REST document envelope.
type document struct {
	Name   string           `json:"name,omitempty"`
	Fields map[string]value `json:"fields"`
}

func str(s string) value   { return value{StringValue: &s} }
func dbl(f float64) value  { return value{DoubleValue: &f} }
func boolean(b bool) value { return value{BooleanValue: &b} }

func ts(t time.Time) value {
	s := t.UTC().Format(time.RFC3339Nano)
	return value{TimestampValue: &s}
}

func (v value) asString() string {
	if v.StringValue != nil {
		return *v.StringValue
	}
	return ""
}

func (v value) asFloat() float64 {
	if v.DoubleValue != nil {
		return *v.DoubleValue
	}
	if v.IntegerValue != nil {
		n, err := strconv.ParseFloat(*v.IntegerValue, 64)
		if err == nil {
			return n
		}
	}
	return 0
}

func (v value) asBool() bool {
	return v.BooleanValue != nil && *v.BooleanValue
}

func (v value) asTime() time.Time {
	if v.TimestampValue == nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, *v.TimestampValue)
	if err != nil {
		return time.Time{}
	}
	return t
}

// docID extracts the document ID from a full Firestore resource name.
func docID(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

func encodeCar(car domain.Car) document {
	fields := map[string]value{
		"name":          str(car.Name),
		"brand":         str(car.Brand),
		"purchasePrice": dbl(car.PurchasePrice),
		"dateAdded":     ts(car.DateAdded),
	}
	if car.Series != "" {
		fields["series"] = str(car.Series)
	}
	if car.Year != "" {
		fields["year"] = str(car.Year)
	}
	if car.Color != "" {
		fields["color"] = str(car.Color)
	}
	if car.Scale != "" {
		fields["scale"] = str(car.Scale)
	}
	if car.Condition != "" {
		fields["condition"] = str(car.Condition)
	}
	if car.PurchaseDate != "" {
		fields["purchaseDate"] = str(car.PurchaseDate)
	}
	if car.Description != "" {
		fields["description"] = str(car.Description)
	}
	if car.Image != "" {
		fields["image"] = str(car.Image)
	}
	return document{Fields: fields}
}

func decodeCar(doc document) domain.Car {
	f := doc.Fields
	return domain.Car{
		ID:            domain.ID(docID(doc.Name)),
		Name:          f["name"].asString(),
		Brand:         f["brand"].asString(),
		Series:        f["series"].asString(),
		Year:          f["year"].asString(),
		Color:         f["color"].asString(),
		Scale:         f["scale"].asString(),
		Condition:     f["condition"].asString(),
		PurchasePrice: f["purchasePrice"].asFloat(),
		PurchaseDate:  f["purchaseDate"].asString(),
		Description:   f["description"].asString(),
		Image:         f["image"].asString(),
		DateAdded:     f["dateAdded"].asTime(),
	}
}

func encodeWishlistItem(item domain.WishlistItem) document {
	fields := map[string]value{
		"name":      str(item.Name),
		"dateAdded": ts(item.DateAdded),
	}
	if item.Brand != "" {
		fields["brand"] = str(item.Brand)
	}
	if item.Series != "" {
		fields["series"] = str(item.Series)
	}
	if item.ExpectedPrice != 0 {
		fields["expectedPrice"] = dbl(item.ExpectedPrice)
	}
	if item.Notes != "" {
		fields["notes"] = str(item.Notes)
	}
	return document{Fields: fields}
}

func decodeWishlistItem(doc document) domain.WishlistItem {
	f := doc.Fields
	return domain.WishlistItem{
		ID:            domain.ID(docID(doc.Name)),
		Name:          f["name"].asString(),
		Brand:         f["brand"].asString(),
		Series:        f["series"].asString(),
		ExpectedPrice: f["expectedPrice"].asFloat(),
		Notes:         f["notes"].asString(),
		DateAdded:     f["dateAdded"].asTime(),
	}
}

// encodeSettings nests settings as a map field on the user profile document.
func encodeSettings(s domain.Settings) value {
	return value{MapValue: &mapValue{Fields: map[string]value{
		"siteName":      str(s.SiteName),
		"currency":      str(s.Currency),
		"adminPassword": str(s.AdminPassword),
		"setupRequired": boolean(s.SetupRequired),
	}}}
}

func decodeSettings(v value) (domain.Settings, bool) {
	if v.MapValue == nil {
		return domain.Settings{}, false
	}
	f := v.MapValue.Fields
	return domain.Settings{
		SiteName:      f["siteName"].asString(),
		Currency:      f["currency"].asString(),
		AdminPassword: f["adminPassword"].asString(),
		SetupRequired: f["setupRequired"].asBool(),
	}, true
}

// objectExt picks a safe image extension from an uploaded file name.
func objectExt(name string) string {
	ext := "jpg"
	if i := strings.LastIndex(name, "."); i >= 0 && i < len(name)-1 {
		ext = strings.ToLower(name[i+1:])
	}
	switch ext {
	case "png", "gif", "webp", "jpeg", "jpg":
		return ext
	default:
		return "jpg"
	}
}

// objectName builds the storage path for a car image.
func objectName(userID string, carID domain.ID, fileName string) string {
	return fmt.Sprintf("cars/%s/%s_%d.%s", userID, carID, time.Now().Unix(), objectExt(fileName))
}
