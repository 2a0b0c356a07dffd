package api

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the sync server configuration, loaded from KANBAN_SYNC_* env vars.
type Config struct {
	ListenAddr      string
	ServerDBPath    string
	BoardDataDir    string
	ShutdownTimeout time.Duration
	AllowSignup     bool
	BaseURL         string
	LogFormat       string // "json" or "text"
	LogLevel        string // "debug", "info", "warn", "error"

	// CORSAllowedOrigins lists browser origins allowed to call the API.
	// Empty means no CORS headers are set.
	CORSAllowedOrigins []string

	// WSSecret signs websocket connect tokens. If unset, a random
	// per-process secret is generated; tokens then die with the process,
	// which is fine because they are minted per connection.
	WSSecret []byte
}

// LoadConfig reads configuration from environment variables with defaults.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ListenAddr:      envOr("KANBAN_SYNC_LISTEN_ADDR", ":8080"),
		ServerDBPath:    envOr("KANBAN_SYNC_SERVER_DB", "./data/server.db"),
		BoardDataDir:    envOr("KANBAN_SYNC_DATA_DIR", "./data/boards"),
		ShutdownTimeout: 30 * time.Second,
		AllowSignup:     true,
		BaseURL:         envOr("KANBAN_SYNC_BASE_URL", "http://localhost:8080"),
		LogFormat:       envOr("KANBAN_SYNC_LOG_FORMAT", "json"),
		LogLevel:        envOr("KANBAN_SYNC_LOG_LEVEL", "info"),
	}

	if v := os.Getenv("KANBAN_SYNC_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid KANBAN_SYNC_SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownTimeout = d
	}

	if v := os.Getenv("KANBAN_SYNC_ALLOW_SIGNUP"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid KANBAN_SYNC_ALLOW_SIGNUP: %w", err)
		}
		cfg.AllowSignup = b
	}

	if v := os.Getenv("KANBAN_SYNC_CORS_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	if v := os.Getenv("KANBAN_SYNC_WS_SECRET"); v != "" {
		cfg.WSSecret = []byte(v)
	} else {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate ws secret: %w", err)
		}
		cfg.WSSecret = secret
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
