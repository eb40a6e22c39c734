package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Session store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds the application configuration
type Config struct {
	Port         string
	BackendURL   string
	SessionStore string
	DatabaseURL  string
	RedisURL     string
	JWTSecret    string
	DevMode      bool
	LogLevel     string
	LogFormat    string
	MetricsAddr  string
	FlowIdleTTL  time.Duration
	CookieSecure bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:         "8080", // default port
		SessionStore: StoreMemory,
		LogLevel:     "info",
		LogFormat:    "json",
		FlowIdleTTL:  30 * time.Minute,
	}

	// Load BACKEND_URL (required)
	backendURL := strings.TrimSpace(getenv("BACKEND_URL"))
	if backendURL == "" {
		return nil, fmt.Errorf("BACKEND_URL environment variable is required")
	}
	if u, err := url.Parse(backendURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("BACKEND_URL must be an absolute URL, got %q", backendURL)
	}
	cfg.BackendURL = strings.TrimRight(backendURL, "/")

	// Load PORT (optional, defaults to 8080)
	if port := getenv("PORT"); port != "" {
		cfg.Port = port
	}

	// Load DEV_MODE (optional, defaults to false)
	cfg.DevMode = getenv("DEV_MODE") == "true"

	// Load JWT_SECRET (required in DEV_MODE, where tokens are minted locally)
	cfg.JWTSecret = getenv("JWT_SECRET")
	if cfg.DevMode && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required when DEV_MODE=true")
	}

	// Load SESSION_STORE and its connection URL
	if store := strings.ToLower(strings.TrimSpace(getenv("SESSION_STORE"))); store != "" {
		cfg.SessionStore = store
	}
	cfg.DatabaseURL = strings.TrimSpace(getenv("DATABASE_URL"))
	cfg.RedisURL = strings.TrimSpace(getenv("REDIS_URL"))

	switch cfg.SessionStore {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for SESSION_STORE=postgres")
		}
	case StoreRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL environment variable is required for SESSION_STORE=redis")
		}
	default:
		return nil, fmt.Errorf("SESSION_STORE must be one of memory, postgres, redis; got %q", cfg.SessionStore)
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	cfg.MetricsAddr = getenv("METRICS_ADDR")

	if v := getenv("FLOW_IDLE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("FLOW_IDLE_TTL must be a positive duration, got %q", v)
		}
		cfg.FlowIdleTTL = ttl
	}

	cfg.CookieSecure = getenv("COOKIE_SECURE") == "true"

	return cfg, nil
}

// DatabaseTarget describes DATABASE_URL for logging without the password
func (c *Config) DatabaseTarget() string {
	u, err := url.Parse(c.DatabaseURL)
	if err != nil || c.DatabaseURL == "" {
		return "(invalid DATABASE_URL)"
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	user := u.User.Username()
	if user == "" {
		user = "(none)"
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, dbName, user)
}
