package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/nsridhar/carvault/internal/domain"
)

// Config is assembled from environment variables. Backend credentials may
// also live obfuscated in the local store; values here take precedence.
type Config struct {
	// Backend forces a backend ("firebase", "github", "local"). Empty means
	// probe in priority order.
	Backend string

	DBPath   string
	SeedDir  string
	LogLevel string
	LogFile  string

	Git      domain.GitCredentials
	Firebase domain.FirebaseCredentials

	// AdminPassword, when set, signs in non-interactive invocations. The
	// setup command prompts when it is empty.
	AdminPassword string

	// ClaudeAPIKey enables photo-based car intake when set.
	ClaudeAPIKey string
	ClaudeModel  string

	// HTTPTimeoutSeconds bounds every backend network call.
	HTTPTimeoutSeconds int
}

func Load() *Config {
	return &Config{
		Backend:  getEnv("CARVAULT_BACKEND", ""),
		DBPath:   getEnv("CARVAULT_DB_PATH", defaultDBPath()),
		SeedDir:  getEnv("CARVAULT_SEED_DIR", "data"),
		LogLevel: getEnv("LOG_LEVEL", "warn"),
		LogFile:  getEnv("LOG_FILE", ""),
		Git: domain.GitCredentials{
			Owner: getEnv("CARVAULT_GIT_OWNER", ""),
			Repo:  getEnv("CARVAULT_GIT_REPO", ""),
			Token: getEnv("CARVAULT_GIT_TOKEN", ""),
		},
		Firebase: domain.FirebaseCredentials{
			APIKey:            getEnv("CARVAULT_FIREBASE_API_KEY", ""),
			AuthDomain:        getEnv("CARVAULT_FIREBASE_AUTH_DOMAIN", ""),
			ProjectID:         getEnv("CARVAULT_FIREBASE_PROJECT_ID", ""),
			StorageBucket:     getEnv("CARVAULT_FIREBASE_STORAGE_BUCKET", ""),
			MessagingSenderID: getEnv("CARVAULT_FIREBASE_SENDER_ID", ""),
			AppID:             getEnv("CARVAULT_FIREBASE_APP_ID", ""),
		},
		AdminPassword:      getEnv("CARVAULT_ADMIN_PASSWORD", ""),
		ClaudeAPIKey:       getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:        getEnv("CLAUDE_MODEL", "claude-sonnet-4-5"),
		HTTPTimeoutSeconds: getEnvInt("CARVAULT_HTTP_TIMEOUT", 30),
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "carvault.db"
	}
	return filepath.Join(home, ".carvault", "carvault.db")
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
