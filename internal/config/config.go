package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	// Provider selection and credentials.
	Provider   string
	BaseURL    string
	APIKey     string
	ProjectID  string
	KeyID      string
	PrivateKey string

	// MockEnabled forces synthetic data; ForceRealAPI calls the provider even
	// without credentials.
	MockEnabled  bool
	ForceRealAPI bool

	// Outbound HTTP timeouts.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// Per-provider request budget and circuit breaker.
	RateLimit       float64
	RateBurst       int
	BreakerFailures int
	BreakerTimeout  time.Duration

	// TokenRefreshInterval controls how often the signed token is pre-warmed.
	TokenRefreshInterval time.Duration

	// Favorites/preferences persistence: "memory" or "sqlite".
	StoreDriver string
	StorePath   string

	GeocoderAPIKey string

	LogLevel string
	Port     string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.Provider = strings.ToLower(getenvDefault("WEATHER_PROVIDER", "qweather"))
	cfg.BaseURL = os.Getenv("WEATHER_BASE_URL")
	cfg.APIKey = os.Getenv("WEATHER_API_KEY")
	cfg.ProjectID = os.Getenv("QWEATHER_PROJECT_ID")
	cfg.KeyID = os.Getenv("QWEATHER_KEY_ID")
	cfg.PrivateKey = os.Getenv("QWEATHER_PRIVATE_KEY")

	var err error
	if cfg.MockEnabled, err = getenvBool("APP_MOCK_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.ForceRealAPI, err = getenvBool("APP_FORCE_REAL_API", false); err != nil {
		return nil, err
	}

	if cfg.ConnectTimeout, err = getenvDuration("HTTP_CONNECT_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout, err = getenvDuration("HTTP_READ_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = getenvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.RateLimit, err = getenvFloat("PROVIDER_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	cfg.RateBurst = getenvInt("PROVIDER_RATE_BURST", 20)
	cfg.BreakerFailures = getenvInt("PROVIDER_BREAKER_FAILURES", 5)
	if cfg.BreakerTimeout, err = getenvDuration("PROVIDER_BREAKER_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}

	// The token lives 15 minutes and is renewed 5 minutes early.
	if cfg.TokenRefreshInterval, err = getenvDuration("TOKEN_REFRESH_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}

	cfg.StoreDriver = strings.ToLower(getenvDefault("STORE_DRIVER", "memory"))
	if cfg.StoreDriver != "memory" && cfg.StoreDriver != "sqlite" {
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: want memory or sqlite", cfg.StoreDriver)
	}
	cfg.StorePath = getenvDefault("STORE_PATH", "weather.db")

	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

// HasSigningKey reports whether all signed-token credentials are present.
func (c *AppConfig) HasSigningKey() bool {
	return c.ProjectID != "" && c.KeyID != "" && c.PrivateKey != ""
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def.String()))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
