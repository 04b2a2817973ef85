// Package local implements the storage backend backed by the on-disk sqlite
// key-value store, with optional read-only seed files providing shipped
// default data.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nsridhar/carvault/internal/cipher"
	"github.com/nsridhar/carvault/internal/domain"
	"github.com/nsridhar/carvault/internal/storage"
)

// Fixed keys, one per collection. Values hold the same JSON envelopes as the
// GitHub data files.
const (
	keyCars           = "carvault_cars"
	keyWishlist       = "carvault_wishlist"
	keyConfig         = "carvault_config"
	keyGitCredentials = "carvault_git_credentials"
)

// Store reads and writes collections in the kv table. No concurrency
// control beyond sqlite's own locking: the last writer wins.
type Store struct {
	db      *sql.DB
	seedDir string
	logger  *slog.Logger
}

func New(database *sql.DB, seedDir string, logger *slog.Logger) *Store {
	return &Store{db: database, seedDir: seedDir, logger: logger}
}

func (s *Store) Name() string { return "local" }

// Configured is always true: the local store needs no credentials.
func (s *Store) Configured() bool { return true }

// LoadCars prefers the persistent store when it holds a non-empty
// collection (in-session edits beat shipped defaults), then the seed file,
// then an empty collection. Each fallback step is logged.
func (s *Store) LoadCars(ctx context.Context) ([]domain.Car, error) {
	raw, found, err := s.get(ctx, keyCars)
	if err != nil {
		return nil, err
	}
	if found {
		var env storage.CarsEnvelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			return nil, fmt.Errorf("corrupt cars record in local store: %w", err)
		}
		if len(env.Cars) > 0 {
			s.logger.Debug("loaded cars from local store", "count", len(env.Cars))
			return env.Cars, nil
		}
		s.logger.Debug("local store cars record is empty, falling back to seed file")
	}

	var env storage.CarsEnvelope
	if ok, err := s.readSeed("cars.json", &env); err != nil {
		return nil, err
	} else if ok {
		s.logger.Debug("loaded cars from seed file", "count", len(env.Cars))
		return env.Cars, nil
	}

	s.logger.Debug("no stored or seeded cars, starting empty")
	return []domain.Car{}, nil
}

func (s *Store) SaveCars(ctx context.Context, cars []domain.Car) error {
	env := storage.CarsEnvelope{Cars: cars, LastUpdated: time.Now().UTC()}
	return s.put(ctx, keyCars, env)
}

func (s *Store) LoadWishlist(ctx context.Context) ([]domain.WishlistItem, error) {
	raw, found, err := s.get(ctx, keyWishlist)
	if err != nil {
		return nil, err
	}
	if found {
		var env storage.WishlistEnvelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			return nil, fmt.Errorf("corrupt wishlist record in local store: %w", err)
		}
		if len(env.Wishlist) > 0 {
			s.logger.Debug("loaded wishlist from local store", "count", len(env.Wishlist))
			return env.Wishlist, nil
		}
	}

	var env storage.WishlistEnvelope
	if ok, err := s.readSeed("wishlist.json", &env); err != nil {
		return nil, err
	} else if ok {
		s.logger.Debug("loaded wishlist from seed file", "count", len(env.Wishlist))
		return env.Wishlist, nil
	}

	return []domain.WishlistItem{}, nil
}

func (s *Store) SaveWishlist(ctx context.Context, items []domain.WishlistItem) error {
	env := storage.WishlistEnvelope{Wishlist: items, LastUpdated: time.Now().UTC()}
	return s.put(ctx, keyWishlist, env)
}

func (s *Store) LoadSettings(ctx context.Context) (domain.Settings, bool, error) {
	raw, found, err := s.get(ctx, keyConfig)
	if err != nil {
		return domain.Settings{}, false, err
	}
	if found {
		var settings domain.Settings
		if err := json.Unmarshal([]byte(raw), &settings); err != nil {
			return domain.Settings{}, false, fmt.Errorf("corrupt settings record in local store: %w", err)
		}
		return settings, true, nil
	}

	var settings domain.Settings
	if ok, err := s.readSeed("config.json", &settings); err != nil {
		return domain.Settings{}, false, err
	} else if ok {
		s.logger.Debug("loaded settings from seed file")
		return settings, true, nil
	}

	return domain.Settings{}, false, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) error {
	return s.put(ctx, keyConfig, settings)
}

// LoadGitCredentials returns the obfuscated GitHub credential tuple kept in
// the local store, if one has been saved.
func (s *Store) LoadGitCredentials(ctx context.Context) (domain.GitCredentials, bool, error) {
	raw, found, err := s.get(ctx, keyGitCredentials)
	if err != nil || !found {
		return domain.GitCredentials{}, false, err
	}

	plain := cipher.Reveal(raw)
	if plain == "" {
		// Unreadable credentials are treated as absent, not fatal.
		s.logger.Warn("stored git credentials could not be decoded, ignoring")
		return domain.GitCredentials{}, false, nil
	}

	var creds domain.GitCredentials
	if err := json.Unmarshal([]byte(plain), &creds); err != nil {
		s.logger.Warn("stored git credentials are corrupt, ignoring", "error", err)
		return domain.GitCredentials{}, false, nil
	}
	return creds, creds.Complete(), nil
}

// SaveGitCredentials persists the credential tuple obfuscated.
func (s *Store) SaveGitCredentials(ctx context.Context, creds domain.GitCredentials) error {
	plain, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode git credentials: %w", err)
	}
	return s.set(ctx, keyGitCredentials, cipher.Obfuscate(string(plain)))
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.set(ctx, key, string(data))
}

func (s *Store) set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// readSeed decodes seedDir/<name> into v. A missing file or unset seed
// directory reports ok=false without error.
func (s *Store) readSeed(name string, v any) (bool, error) {
	if s.seedDir == "" {
		return false, nil
	}
	data, err := os.ReadFile(filepath.Join(s.seedDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read seed file %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("corrupt seed file %s: %w", name, err)
	}
	return true, nil
}
