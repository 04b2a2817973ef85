// Package manager coordinates the storage backends: it probes for the best
// available one, keeps the in-memory collections, and applies every edit as
// a persist-then-commit transaction so memory never drifts ahead of storage.
package manager

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nsridhar/carvault/internal/cipher"
	"github.com/nsridhar/carvault/internal/domain"
	"github.com/nsridhar/carvault/internal/query"
	"github.com/nsridhar/carvault/internal/storage"
	"golang.org/x/sync/errgroup"
)

// State tracks coordinator lifecycle. Data operations are only valid once
// initialization finished. Degraded marks the most recent backend call as
// failed; the collections stay usable and the next successful call returns
// the coordinator to Ready.
type State int

const (
	Uninitialized State = iota
	Probing
	Ready
	Degraded
)

func (s State) String() string {
	switch s {
	case Probing:
		return "probing"
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	default:
		return "uninitialized"
	}
}

// MinPasswordLength applies when the admin password is first set.
const MinPasswordLength = 6

// Coordinator owns the active backend and the in-memory collections. Each
// collection has its own mutex held across the full read-modify-persist
// cycle, so concurrent edits to the same collection serialize while edits
// to different collections proceed independently.
type Coordinator struct {
	candidates []storage.Backend
	cache      storage.Backend
	logger     *slog.Logger

	stateMu sync.Mutex
	state   State
	backend storage.Backend

	carsMu sync.Mutex
	cars   []domain.Car

	wishlistMu sync.Mutex
	wishlist   []domain.WishlistItem

	settingsMu sync.Mutex
	settings   domain.Settings
}

// New builds a coordinator over the candidate backends in probe priority
// order. cache, when non-nil and distinct from the active backend, receives
// a best-effort copy of every successful remote write; pass nil to disable
// mirroring.
func New(candidates []storage.Backend, cache storage.Backend, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		candidates: candidates,
		cache:      cache,
		logger:     logger,
		state:      Uninitialized,
		settings:   domain.DefaultSettings(),
	}
}

// State returns the coordinator lifecycle state.
func (c *Coordinator) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// backendErr records a failed backend call. The failure degrades the
// coordinator until the next successful call; in-memory state is never
// touched on the failure path.
func (c *Coordinator) backendErr(op string, err error) error {
	c.setState(Degraded)
	c.logger.Error("backend call failed", "op", op, "backend", c.backend.Name(), "error", err)
	return err
}

// Backend returns the name of the active backend, or "" before Initialize.
func (c *Coordinator) Backend() string {
	if c.backend == nil {
		return ""
	}
	return c.backend.Name()
}

// Initialize probes the candidates in order, adopts the first one that is
// configured and reachable, and loads the three collections concurrently.
// A candidate that fails its reachability probe is logged and skipped, not
// fatal; only running out of candidates is an error.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.setState(Probing)

	for _, b := range c.candidates {
		if !b.Configured() {
			c.logger.Debug("backend skipped, not configured", "backend", b.Name())
			continue
		}
		if prober, ok := b.(storage.Prober); ok {
			if err := prober.TestConnection(ctx); err != nil {
				c.logger.Warn("backend unreachable, trying next", "backend", b.Name(), "error", err)
				continue
			}
		}
		c.backend = b
		break
	}
	if c.backend == nil {
		c.setState(Uninitialized)
		return fmt.Errorf("no usable storage backend")
	}
	c.logger.Info("storage backend selected", "backend", c.backend.Name())

	if err := c.loadAll(ctx); err != nil {
		c.setState(Uninitialized)
		c.backend = nil
		return err
	}

	c.setState(Ready)
	return nil
}

// loadAll fetches cars, wishlist and settings concurrently from the active
// backend. A backend holding no settings record yields the defaults.
func (c *Coordinator) loadAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cars, err := c.backend.LoadCars(gctx)
		if err != nil {
			return fmt.Errorf("failed to load cars: %w", err)
		}
		c.cars = cars
		return nil
	})
	g.Go(func() error {
		items, err := c.backend.LoadWishlist(gctx)
		if err != nil {
			return fmt.Errorf("failed to load wishlist: %w", err)
		}
		c.wishlist = items
		return nil
	})
	g.Go(func() error {
		settings, found, err := c.backend.LoadSettings(gctx)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		if found {
			c.settings = settings
		} else {
			c.logger.Debug("no stored settings, using defaults")
			c.settings = domain.DefaultSettings()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	c.logger.Info("collections loaded",
		"cars", len(c.cars), "wishlist", len(c.wishlist))
	return nil
}

func (c *Coordinator) requireReady() error {
	switch s := c.State(); s {
	case Ready, Degraded:
		return nil
	default:
		return fmt.Errorf("storage not initialized (state %s)", s)
	}
}

// persistCars writes the full collection, commits it to memory and mirrors
// it. Callers hold carsMu.
func (c *Coordinator) persistCars(ctx context.Context, next []domain.Car) error {
	if err := c.backend.SaveCars(ctx, next); err != nil {
		return c.backendErr("save cars", err)
	}
	c.setState(Ready)
	c.cars = next
	c.mirrorCars(ctx, next)
	return nil
}

// persistWishlist is the wishlist counterpart of persistCars. Callers hold
// wishlistMu.
func (c *Coordinator) persistWishlist(ctx context.Context, next []domain.WishlistItem) error {
	if err := c.backend.SaveWishlist(ctx, next); err != nil {
		return c.backendErr("save wishlist", err)
	}
	c.setState(Ready)
	c.wishlist = next
	c.mirrorWishlist(ctx, next)
	return nil
}

// GetCars returns a copy of the car collection.
func (c *Coordinator) GetCars() []domain.Car {
	c.carsMu.Lock()
	defer c.carsMu.Unlock()
	out := make([]domain.Car, len(c.cars))
	copy(out, c.cars)
	return out
}

// GetCarByID returns the car with the given ID.
func (c *Coordinator) GetCarByID(id domain.ID) (domain.Car, error) {
	c.carsMu.Lock()
	defer c.carsMu.Unlock()
	for _, car := range c.cars {
		if car.ID == id {
			return car, nil
		}
	}
	return domain.Car{}, &storage.NotFoundError{Resource: "car " + id.String()}
}

// nextID is max(existing integer IDs)+1. Only used for backends that
// store whole collections; a second writer racing on the same remote file
// is caught by the revision check at save time, not here.
func nextID[T any](items []T, id func(T) domain.ID) domain.ID {
	var max int64
	for _, item := range items {
		if n := id(item).Int(); n > max {
			max = n
		}
	}
	return domain.IntID(max + 1)
}

// AddCar validates and persists a new car, committing it to memory only
// after the backend write succeeds.
func (c *Coordinator) AddCar(ctx context.Context, car domain.Car) (domain.Car, error) {
	if err := c.requireReady(); err != nil {
		return domain.Car{}, err
	}
	if err := domain.ValidateCar(car); err != nil {
		return domain.Car{}, err
	}
	if car.DateAdded.IsZero() {
		car.DateAdded = time.Now().UTC()
	}

	c.carsMu.Lock()
	defer c.carsMu.Unlock()

	if rw, ok := c.backend.(storage.RecordWriter); ok {
		saved, err := rw.AddCar(ctx, car)
		if err != nil {
			return domain.Car{}, c.backendErr("add car", err)
		}
		c.setState(Ready)
		c.cars = append(c.cars, saved)
		return saved, nil
	}

	car.ID = nextID(c.cars, func(x domain.Car) domain.ID { return x.ID })
	next := append(append([]domain.Car{}, c.cars...), car)
	if err := c.persistCars(ctx, next); err != nil {
		return domain.Car{}, err
	}
	return car, nil
}

// UpdateCar replaces the stored car with the same ID.
func (c *Coordinator) UpdateCar(ctx context.Context, car domain.Car) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := domain.ValidateCar(car); err != nil {
		return err
	}

	c.carsMu.Lock()
	defer c.carsMu.Unlock()

	idx := -1
	for i := range c.cars {
		if c.cars[i].ID == car.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &storage.NotFoundError{Resource: "car " + car.ID.String()}
	}

	if rw, ok := c.backend.(storage.RecordWriter); ok {
		if err := rw.UpdateCar(ctx, car); err != nil {
			return c.backendErr("update car", err)
		}
		c.setState(Ready)
		c.cars[idx] = car
		return nil
	}

	next := make([]domain.Car, len(c.cars))
	copy(next, c.cars)
	next[idx] = car
	return c.persistCars(ctx, next)
}

// DeleteCar removes the car with the given ID.
func (c *Coordinator) DeleteCar(ctx context.Context, id domain.ID) error {
	if err := c.requireReady(); err != nil {
		return err
	}

	c.carsMu.Lock()
	defer c.carsMu.Unlock()

	idx := -1
	for i := range c.cars {
		if c.cars[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &storage.NotFoundError{Resource: "car " + id.String()}
	}

	if rw, ok := c.backend.(storage.RecordWriter); ok {
		if err := rw.DeleteCar(ctx, id); err != nil {
			return c.backendErr("delete car", err)
		}
		c.setState(Ready)
		c.cars = append(c.cars[:idx], c.cars[idx+1:]...)
		return nil
	}

	removed := c.cars[idx]
	next := append(append([]domain.Car{}, c.cars[:idx]...), c.cars[idx+1:]...)
	if err := c.persistCars(ctx, next); err != nil {
		return err
	}

	// Stored image cleanup is best-effort; URLs point outside the backend.
	if is, ok := c.backend.(storage.ImageStore); ok && removed.Image != "" && !strings.Contains(removed.Image, "://") {
		if err := is.DeleteImage(ctx, removed.Image); err != nil {
			c.logger.Warn("failed to delete car image", "image", removed.Image, "error", err)
		}
	}
	return nil
}

// AttachImage uploads image bytes for a car and records the returned
// reference on the car record.
func (c *Coordinator) AttachImage(ctx context.Context, id domain.ID, fileName string, data []byte) (string, error) {
	if err := c.requireReady(); err != nil {
		return "", err
	}
	car, err := c.GetCarByID(id)
	if err != nil {
		return "", err
	}

	var ref string
	switch b := c.backend.(type) {
	case storage.CarImageStore:
		ref, err = b.UploadCarImage(ctx, id, fileName, data)
	case storage.ImageStore:
		ref, err = b.UploadImage(ctx, fileName, data)
	default:
		return "", fmt.Errorf("%s backend does not store images", c.backend.Name())
	}
	if err != nil {
		return "", err
	}

	car.Image = ref
	if err := c.UpdateCar(ctx, car); err != nil {
		return "", err
	}
	return ref, nil
}

// GetWishlist returns a copy of the wishlist.
func (c *Coordinator) GetWishlist() []domain.WishlistItem {
	c.wishlistMu.Lock()
	defer c.wishlistMu.Unlock()
	out := make([]domain.WishlistItem, len(c.wishlist))
	copy(out, c.wishlist)
	return out
}

// AddWishlistItem validates and persists a new wishlist entry.
func (c *Coordinator) AddWishlistItem(ctx context.Context, item domain.WishlistItem) (domain.WishlistItem, error) {
	if err := c.requireReady(); err != nil {
		return domain.WishlistItem{}, err
	}
	if err := domain.ValidateWishlistItem(item); err != nil {
		return domain.WishlistItem{}, err
	}
	if item.DateAdded.IsZero() {
		item.DateAdded = time.Now().UTC()
	}

	c.wishlistMu.Lock()
	defer c.wishlistMu.Unlock()

	if rw, ok := c.backend.(storage.RecordWriter); ok {
		saved, err := rw.AddWishlistItem(ctx, item)
		if err != nil {
			return domain.WishlistItem{}, c.backendErr("add wishlist item", err)
		}
		c.setState(Ready)
		c.wishlist = append(c.wishlist, saved)
		return saved, nil
	}

	item.ID = nextID(c.wishlist, func(x domain.WishlistItem) domain.ID { return x.ID })
	next := append(append([]domain.WishlistItem{}, c.wishlist...), item)
	if err := c.persistWishlist(ctx, next); err != nil {
		return domain.WishlistItem{}, err
	}
	return item, nil
}

// UpdateWishlistItem replaces the stored entry with the same ID.
func (c *Coordinator) UpdateWishlistItem(ctx context.Context, item domain.WishlistItem) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := domain.ValidateWishlistItem(item); err != nil {
		return err
	}

	c.wishlistMu.Lock()
	defer c.wishlistMu.Unlock()

	idx := -1
	for i := range c.wishlist {
		if c.wishlist[i].ID == item.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &storage.NotFoundError{Resource: "wishlist item " + item.ID.String()}
	}

	if rw, ok := c.backend.(storage.RecordWriter); ok {
		if err := rw.UpdateWishlistItem(ctx, item); err != nil {
			return c.backendErr("update wishlist item", err)
		}
		c.setState(Ready)
		c.wishlist[idx] = item
		return nil
	}

	next := make([]domain.WishlistItem, len(c.wishlist))
	copy(next, c.wishlist)
	next[idx] = item
	return c.persistWishlist(ctx, next)
}

// DeleteWishlistItem removes the entry with the given ID.
func (c *Coordinator) DeleteWishlistItem(ctx context.Context, id domain.ID) error {
	if err := c.requireReady(); err != nil {
		return err
	}

	c.wishlistMu.Lock()
	defer c.wishlistMu.Unlock()

	idx := -1
	for i := range c.wishlist {
		if c.wishlist[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &storage.NotFoundError{Resource: "wishlist item " + id.String()}
	}

	if rw, ok := c.backend.(storage.RecordWriter); ok {
		if err := rw.DeleteWishlistItem(ctx, id); err != nil {
			return c.backendErr("delete wishlist item", err)
		}
		c.setState(Ready)
		c.wishlist = append(c.wishlist[:idx], c.wishlist[idx+1:]...)
		return nil
	}

	next := append(append([]domain.WishlistItem{}, c.wishlist[:idx]...), c.wishlist[idx+1:]...)
	return c.persistWishlist(ctx, next)
}

// GetSettings returns the current settings.
func (c *Coordinator) GetSettings() domain.Settings {
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()
	return c.settings
}

// UpdateSettings validates and persists new settings. The admin password
// field is managed through ValidatePassword, not here.
func (c *Coordinator) UpdateSettings(ctx context.Context, settings domain.Settings) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	if err := domain.ValidateSettings(settings); err != nil {
		return err
	}

	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()

	settings.AdminPassword = c.settings.AdminPassword
	settings.SetupRequired = c.settings.SetupRequired
	if err := c.backend.SaveSettings(ctx, settings); err != nil {
		return c.backendErr("save settings", err)
	}
	c.setState(Ready)
	c.settings = settings
	return nil
}

// ValidatePassword checks a candidate admin password. On first run, while
// setup is still required and no password exists, a candidate of at least
// MinPasswordLength characters is adopted as the admin password, stored
// obfuscated, and setup is marked complete.
func (c *Coordinator) ValidatePassword(ctx context.Context, candidate string) (bool, error) {
	if err := c.requireReady(); err != nil {
		return false, err
	}

	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()

	if c.settings.SetupRequired && c.settings.AdminPassword == "" {
		if len(candidate) < MinPasswordLength {
			return false, nil
		}
		next := c.settings
		next.AdminPassword = cipher.Obfuscate(candidate)
		next.SetupRequired = false
		if err := c.backend.SaveSettings(ctx, next); err != nil {
			return false, c.backendErr("save settings", err)
		}
		c.setState(Ready)
		c.settings = next
		c.logger.Info("admin password set, setup complete")
		return true, nil
	}

	return candidate != "" && cipher.Reveal(c.settings.AdminPassword) == candidate, nil
}

// Statistics aggregates the current car collection.
func (c *Coordinator) Statistics() domain.Statistics {
	return query.Compute(c.GetCars())
}

// SearchCars runs a free-text query with equality filters over the
// collection.
func (c *Coordinator) SearchCars(q string, f query.Filters) []domain.Car {
	return query.Search(c.GetCars(), q, f)
}

// Export builds the full-state backup bundle.
func (c *Coordinator) Export() (domain.Backup, error) {
	if err := c.requireReady(); err != nil {
		return domain.Backup{}, err
	}
	cars := c.GetCars()
	return domain.Backup{
		FormatVersion: domain.BackupFormatVersion,
		Cars:          cars,
		Wishlist:      c.GetWishlist(),
		Settings:      c.GetSettings(),
		Statistics:    query.Compute(cars),
		ExportDate:    time.Now().UTC(),
	}, nil
}

// ExportJSON renders the backup bundle as indented JSON.
func (c *Coordinator) ExportJSON() ([]byte, error) {
	backup, err := c.Export()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(backup, "", "  ")
}

var csvHeader = []string{
	"id", "name", "brand", "series", "year", "color", "scale",
	"condition", "purchasePrice", "purchaseDate", "description",
}

// ExportCSV renders the car collection as a spreadsheet-friendly CSV,
// sorted by name.
func (c *Coordinator) ExportCSV() ([]byte, error) {
	if err := c.requireReady(); err != nil {
		return nil, err
	}

	cars := query.Sort(c.GetCars(), query.ByName, false)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, car := range cars {
		record := []string{
			car.ID.String(), car.Name, car.Brand, car.Series, car.Year,
			car.Color, car.Scale, car.Condition,
			strconv.FormatFloat(car.PurchasePrice, 'f', 2, 64),
			car.PurchaseDate, car.Description,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// Import replaces the entire state with the bundle's contents. The replace
// commits collection by collection; a failed persist leaves the remaining
// collections untouched.
func (c *Coordinator) Import(ctx context.Context, data []byte) error {
	if err := c.requireReady(); err != nil {
		return err
	}

	var backup domain.Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return fmt.Errorf("unreadable backup bundle: %w", err)
	}
	if backup.FormatVersion > domain.BackupFormatVersion {
		return fmt.Errorf("backup format version %d is newer than supported version %d",
			backup.FormatVersion, domain.BackupFormatVersion)
	}

	c.carsMu.Lock()
	defer c.carsMu.Unlock()
	c.wishlistMu.Lock()
	defer c.wishlistMu.Unlock()
	c.settingsMu.Lock()
	defer c.settingsMu.Unlock()

	if backup.Cars == nil {
		backup.Cars = []domain.Car{}
	}
	if backup.Wishlist == nil {
		backup.Wishlist = []domain.WishlistItem{}
	}

	if err := c.persistCars(ctx, backup.Cars); err != nil {
		return fmt.Errorf("import failed writing cars: %w", err)
	}
	if err := c.persistWishlist(ctx, backup.Wishlist); err != nil {
		return fmt.Errorf("import failed writing wishlist: %w", err)
	}
	if err := c.backend.SaveSettings(ctx, backup.Settings); err != nil {
		return fmt.Errorf("import failed writing settings: %w",
			c.backendErr("save settings", err))
	}
	c.setState(Ready)
	c.settings = backup.Settings

	c.logger.Info("backup imported",
		"cars", len(backup.Cars), "wishlist", len(backup.Wishlist))
	return nil
}

// UniqueFieldValues lists the distinct values of a car field across the
// collection, for filter pickers.
func (c *Coordinator) UniqueFieldValues(field string) []string {
	return query.UniqueValues(c.GetCars(), field)
}

// PriceBands groups the collection into labelled purchase-price ranges.
func (c *Coordinator) PriceBands() map[string]int {
	bands := map[string]int{}
	for _, car := range c.GetCars() {
		bands[priceBand(car.PurchasePrice)]++
	}
	return bands
}

func priceBand(price float64) string {
	switch {
	case price < 5:
		return "under 5"
	case price < 20:
		return "5 to 20"
	case price < 100:
		return "20 to 100"
	default:
		return "100 and up"
	}
}

// FormatPrice renders an amount in the configured display currency.
func (c *Coordinator) FormatPrice(amount float64) string {
	return query.FormatCurrency(amount, c.GetSettings().Currency)
}

// mirrorCars copies a successful remote write into the local cache so the
// app can fall back to recent data when the remote is unreachable.
// Mirroring is best-effort; failures are logged and do not fail the write.
func (c *Coordinator) mirrorCars(ctx context.Context, cars []domain.Car) {
	if c.cache == nil || c.cache == c.backend {
		return
	}
	if err := c.cache.SaveCars(ctx, cars); err != nil {
		c.logger.Warn("failed to mirror cars to local cache", "error", err)
	}
}

func (c *Coordinator) mirrorWishlist(ctx context.Context, items []domain.WishlistItem) {
	if c.cache == nil || c.cache == c.backend {
		return
	}
	if err := c.cache.SaveWishlist(ctx, items); err != nil {
		c.logger.Warn("failed to mirror wishlist to local cache", "error", err)
	}
}

// SortedBrands lists brands by descending car count, ties alphabetical.
// Used by the stats display.
func SortedBrands(stats domain.Statistics) []string {
	brands := make([]string, 0, len(stats.ByBrand))
	for b := range stats.ByBrand {
		brands = append(brands, b)
	}
	sort.Slice(brands, func(i, j int) bool {
		ci, cj := stats.ByBrand[brands[i]], stats.ByBrand[brands[j]]
		if ci != cj {
			return ci > cj
		}
		return strings.ToLower(brands[i]) < strings.ToLower(brands[j])
	})
	return brands
}
