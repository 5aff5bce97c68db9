package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// EnvProduction disables gateway diagnostics and marks cookies secure.
	EnvProduction = "production"

	// StorageRedis keeps session slots in Redis.
	StorageRedis = "redis"
	// StorageMemory keeps session slots in process memory.
	StorageMemory = "memory"
)

// Config aggregates runtime configuration for the portal.
type Config struct {
	App     AppConfig
	Backend BackendConfig
	Redis   RedisConfig
	Session SessionConfig
	Logger  LoggerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// BackendConfig describes the remote onboarding API.
type BackendConfig struct {
	URL            string
	APIPrefix      string
	TimeoutSeconds int
	ClientID       string
	ClientSecret   string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// SessionConfig controls cookies and session-scoped storage.
type SessionConfig struct {
	Secret                string
	TTLMinutes            int
	CookieName            string
	IDCookieName          string
	StorageTTLMinutes     int
	Storage               string
	SignOutOnUnauthorized bool
	SubmissionLockSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "onboarding-portal"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Backend: BackendConfig{
			URL:            getEnv("BACKEND_URL", "http://localhost:8080"),
			APIPrefix:      getEnv("BACKEND_API_PREFIX", "/api/v1/app"),
			TimeoutSeconds: getEnvAsInt("BACKEND_TIMEOUT_SECONDS", 30),
			ClientID:       os.Getenv("BACKEND_CLIENT_ID"),
			ClientSecret:   os.Getenv("BACKEND_CLIENT_SECRET"),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "portal"),
		},
		Session: SessionConfig{
			Secret:                getEnv("SESSION_SECRET", "dev-secret"),
			TTLMinutes:            getEnvAsInt("SESSION_TTL_MINUTES", 60),
			CookieName:            getEnv("SESSION_COOKIE_NAME", "portal_session"),
			IDCookieName:          getEnv("SESSION_ID_COOKIE_NAME", "portal_sid"),
			StorageTTLMinutes:     getEnvAsInt("SESSION_STORAGE_TTL_MINUTES", 720),
			Storage:               strings.ToLower(getEnv("SESSION_STORAGE", StorageRedis)),
			SignOutOnUnauthorized: getEnvAsBool("SESSION_SIGN_OUT_ON_UNAUTHORIZED", true),
			SubmissionLockSeconds: getEnvAsInt("SUBMISSION_LOCK_SECONDS", 30),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if cfg.Session.Storage != StorageRedis && cfg.Session.Storage != StorageMemory {
		return nil, fmt.Errorf("invalid SESSION_STORAGE %q", cfg.Session.Storage)
	}
	if cfg.IsProduction() && cfg.Session.Secret == "dev-secret" {
		return nil, fmt.Errorf("SESSION_SECRET must be set in production")
	}

	return cfg, nil
}

// IsProduction reports whether the portal runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, EnvProduction)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// BaseURL joins the backend root with the API version prefix.
func (b BackendConfig) BaseURL() string {
	root := strings.TrimSuffix(strings.TrimSpace(b.URL), "/")
	prefix := strings.TrimSpace(b.APIPrefix)
	if prefix == "" {
		return root
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return root + strings.TrimSuffix(prefix, "/")
}

// Timeout returns the per-request backend timeout.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// TTL returns the lifetime of the signed session cookie.
func (s SessionConfig) TTL() time.Duration {
	if s.TTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(s.TTLMinutes) * time.Minute
}

// StorageTTL returns how long idle session slots are retained.
func (s SessionConfig) StorageTTL() time.Duration {
	if s.StorageTTLMinutes <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(s.StorageTTLMinutes) * time.Minute
}

// SubmissionLock returns how long an in-flight submission blocks duplicates.
func (s SessionConfig) SubmissionLock() time.Duration {
	if s.SubmissionLockSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.SubmissionLockSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
