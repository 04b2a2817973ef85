package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// ID identifies a car or wishlist item. The local and GitHub backends assign
// sequential integers; Firebase assigns opaque document ID strings. Integer
// values marshal as JSON numbers so collection files written by either kind
// of backend stay readable.
type ID string

func (id ID) String() string { return string(id) }

// Int returns the numeric value of the ID, or 0 when the ID is not an
// integer (Firebase document IDs).
func (id ID) Int() int64 {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// IntID builds an ID from a sequential integer.
func IntID(n int64) ID { return ID(strconv.FormatInt(n, 10)) }

func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Car is a collectible model car in the collection.
type Car struct {
	ID            ID      `json:"id"`
	Name          string  `json:"name" validate:"required"`
	Brand         string  `json:"brand" validate:"required"`
	Series        string  `json:"series,omitempty"`
	Year          string  `json:"year,omitempty"`
	Color         string  `json:"color,omitempty"`
	Scale         string  `json:"scale,omitempty"`
	Condition     string  `json:"condition,omitempty"`
	PurchasePrice float64 `json:"purchasePrice" validate:"gte=0"`
	PurchaseDate  string  `json:"purchaseDate,omitempty"`
	Description   string  `json:"description,omitempty"`
	// Image is a relative repository path, an absolute URL, or a backend
	// object reference, depending on which backend stored it.
	Image     string    `json:"image,omitempty"`
	DateAdded time.Time `json:"dateAdded"`
}

// WishlistItem is a car the collector wants but does not own yet.
type WishlistItem struct {
	ID            ID        `json:"id"`
	Name          string    `json:"name" validate:"required"`
	Brand         string    `json:"brand,omitempty"`
	Series        string    `json:"series,omitempty"`
	ExpectedPrice float64   `json:"expectedPrice,omitempty" validate:"gte=0"`
	Notes         string    `json:"notes,omitempty"`
	DateAdded     time.Time `json:"dateAdded"`
}

// Settings holds the site-wide configuration record.
type Settings struct {
	SiteName string `json:"siteName"`
	Currency string `json:"currency" validate:"omitempty,oneof=USD EUR GBP INR CAD AUD"`
	// AdminPassword is stored obfuscated (cipher.Obfuscate), never plain.
	AdminPassword string `json:"adminPassword,omitempty"`
	// SetupRequired stays true until an admin password has been set.
	SetupRequired bool `json:"setupRequired"`
}

// DefaultCurrency is used when settings carry no currency code.
const DefaultCurrency = "INR"

// DefaultSettings is the configuration in effect before any admin setup.
func DefaultSettings() Settings {
	return Settings{
		SiteName:      "CarVault Collection",
		Currency:      DefaultCurrency,
		SetupRequired: true,
	}
}

// GitCredentials configures the GitHub-backed storage adapter. All three
// fields are required together; a partial set means "unconfigured".
type GitCredentials struct {
	Owner string `json:"repoOwner" validate:"required"`
	Repo  string `json:"repoName" validate:"required"`
	Token string `json:"accessToken" validate:"required"`
}

// Complete reports whether every credential field is present.
func (c GitCredentials) Complete() bool {
	return c.Owner != "" && c.Repo != "" && c.Token != ""
}

// FirebaseCredentials configures the Firebase-backed storage adapter.
// Field formats are validated before any network call is attempted.
type FirebaseCredentials struct {
	APIKey            string `json:"apiKey" validate:"required,startswith=AIza"`
	AuthDomain        string `json:"authDomain" validate:"required,endswith=.firebaseapp.com"`
	ProjectID         string `json:"projectId" validate:"required"`
	StorageBucket     string `json:"storageBucket" validate:"required"`
	MessagingSenderID string `json:"messagingSenderId" validate:"required"`
	AppID             string `json:"appId" validate:"required"`
}

// Complete reports whether every credential field is present. Format checks
// are left to Validate.
func (c FirebaseCredentials) Complete() bool {
	return c.APIKey != "" && c.AuthDomain != "" && c.ProjectID != "" &&
		c.StorageBucket != "" && c.MessagingSenderID != "" && c.AppID != ""
}

// Statistics aggregates the in-memory car collection.
type Statistics struct {
	TotalCars      int            `json:"totalCars"`
	TotalValue     float64        `json:"totalValue"`
	AveragePrice   float64        `json:"averagePrice"`
	MostExpensive  *Car           `json:"mostExpensive,omitempty"`
	LeastExpensive *Car           `json:"leastExpensive,omitempty"`
	ByBrand        map[string]int `json:"brandStats"`
	BySeries       map[string]int `json:"seriesStats"`
	ByColor        map[string]int `json:"colorStats"`
	ByCondition    map[string]int `json:"conditionStats"`
}

// Backup is the full-state export document.
type Backup struct {
	FormatVersion int            `json:"formatVersion"`
	Cars          []Car          `json:"cars"`
	Wishlist      []WishlistItem `json:"wishlist"`
	Settings      Settings       `json:"settings"`
	Statistics    Statistics     `json:"statistics"`
	ExportDate    time.Time      `json:"exportDate"`
}

// BackupFormatVersion tags export documents so future readers can detect
// incompatible bundles.
const BackupFormatVersion = 1
