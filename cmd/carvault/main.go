package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/nsridhar/carvault/internal/config"
	"github.com/nsridhar/carvault/internal/db"
	"github.com/nsridhar/carvault/internal/logging"
	"github.com/nsridhar/carvault/internal/manager"
	"github.com/nsridhar/carvault/internal/storage"
	"github.com/nsridhar/carvault/internal/storage/firebase"
	"github.com/nsridhar/carvault/internal/storage/github"
	"github.com/nsridhar/carvault/internal/storage/local"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("carvault: %v", err)
	}
}

// application holds everything a command needs: config, logger, the open
// database, and the initialized storage coordinator.
type application struct {
	cfg        *config.Config
	logger     *slog.Logger
	logCleanup func()
	database   *sql.DB
	localStore *local.Store
	firebase   *firebase.Client
	backends   []storage.Backend
	coord      *manager.Coordinator
}

func buildApplication(ctx context.Context) (*application, error) {
	cfg := config.Load()

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	app := &application{
		cfg:        cfg,
		logger:     logger,
		logCleanup: cleanup,
		database:   database,
		localStore: local.New(database, cfg.SeedDir, logger),
	}

	app.backends = app.buildBackends(ctx)
	app.coord = manager.New(app.backends, app.localStore, logger)
	if err := app.coord.Initialize(ctx); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

// buildBackends assembles the probe candidates in priority order: Firebase,
// then GitHub, then the local store. CARVAULT_BACKEND narrows the list to a
// single backend.
func (a *application) buildBackends(ctx context.Context) []storage.Backend {
	httpClient := &http.Client{Timeout: time.Duration(a.cfg.HTTPTimeoutSeconds) * time.Second}

	fb := firebase.New(a.cfg.Firebase, httpClient, a.logger)
	a.firebase = fb
	if fb.Configured() {
		if a.cfg.AdminPassword == "" {
			a.logger.Warn("firebase configured but CARVAULT_ADMIN_PASSWORD is unset, skipping")
		} else if err := fb.SignIn(ctx, a.cfg.AdminPassword); err != nil {
			a.logger.Warn("firebase sign-in failed, skipping", "error", err)
		}
	}

	gitCreds := a.cfg.Git
	if !gitCreds.Complete() {
		stored, found, err := a.localStore.LoadGitCredentials(ctx)
		if err != nil {
			a.logger.Warn("failed to read stored git credentials", "error", err)
		} else if found {
			gitCreds = stored
		}
	}
	gh := github.New(gitCreds, httpClient, a.logger)

	candidates := []storage.Backend{}
	if fb.Authenticated() {
		candidates = append(candidates, fb)
	}
	candidates = append(candidates, gh, a.localStore)

	if a.cfg.Backend == "" {
		return candidates
	}
	for _, b := range candidates {
		if b.Name() == a.cfg.Backend {
			return []storage.Backend{b}
		}
	}
	a.logger.Warn("requested backend unavailable, probing all", "backend", a.cfg.Backend)
	return candidates
}

func (a *application) close() {
	if err := a.database.Close(); err != nil {
		a.logger.Error("failed to close database", "error", err)
	}
	a.logCleanup()
}
