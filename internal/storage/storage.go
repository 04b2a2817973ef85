// Package storage defines the backend capability surface shared by the
// local, GitHub, and Firebase adapters, together with the error taxonomy
// every adapter maps its failures onto.
package storage

import (
	"context"
	"time"

	"github.com/nsridhar/carvault/internal/domain"
)

// Backend is the storage capability every adapter implements. Collections
// are saved whole (last full write wins); the Firebase adapter additionally
// implements RecordWriter for per-document writes.
type Backend interface {
	// Name identifies the adapter in logs ("local", "github", "firebase").
	Name() string
	// Configured reports whether the adapter has a complete credential set.
	// It never performs network I/O.
	Configured() bool

	LoadCars(ctx context.Context) ([]domain.Car, error)
	SaveCars(ctx context.Context, cars []domain.Car) error

	LoadWishlist(ctx context.Context) ([]domain.WishlistItem, error)
	SaveWishlist(ctx context.Context, items []domain.WishlistItem) error

	// LoadSettings returns found=false when the backend holds no settings
	// record; that is not an error.
	LoadSettings(ctx context.Context) (settings domain.Settings, found bool, err error)
	SaveSettings(ctx context.Context, settings domain.Settings) error
}

// RecordWriter is implemented by backends that persist individual records
// instead of whole collections. The coordinator prefers these methods when
// the active backend provides them.
type RecordWriter interface {
	AddCar(ctx context.Context, car domain.Car) (domain.Car, error)
	UpdateCar(ctx context.Context, car domain.Car) error
	DeleteCar(ctx context.Context, id domain.ID) error

	AddWishlistItem(ctx context.Context, item domain.WishlistItem) (domain.WishlistItem, error)
	UpdateWishlistItem(ctx context.Context, item domain.WishlistItem) error
	DeleteWishlistItem(ctx context.Context, id domain.ID) error
}

// ImageStore is implemented by backends that can hold binary image assets.
// The returned reference is backend-specific: a repository path for GitHub,
// a durable download URL for Firebase.
type ImageStore interface {
	UploadImage(ctx context.Context, name string, data []byte) (string, error)
	DeleteImage(ctx context.Context, ref string) error
}

// CarImageStore is implemented by backends that key image objects by the
// owning car and clean them up when the car goes away.
type CarImageStore interface {
	UploadCarImage(ctx context.Context, carID domain.ID, fileName string, data []byte) (string, error)
	DeleteImage(ctx context.Context, ref string) error
}

// Prober is implemented by backends that can verify their remote end is
// reachable with the configured credentials.
type Prober interface {
	TestConnection(ctx context.Context) error
}

// CarsEnvelope is the wire shape of a stored cars collection, shared by the
// local store values and the GitHub data files.
type CarsEnvelope struct {
	Cars        []domain.Car `json:"cars"`
	LastUpdated time.Time    `json:"lastUpdated"`
}

// WishlistEnvelope is the wire shape of a stored wishlist collection.
type WishlistEnvelope struct {
	Wishlist    []domain.WishlistItem `json:"wishlist"`
	LastUpdated time.Time             `json:"lastUpdated"`
}
