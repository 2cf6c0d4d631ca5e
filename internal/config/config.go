package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAuthTimeout = 10 * time.Second
	defaultRateLimit   = 5.0
	defaultRateBurst   = 5
)

// Config holds the connection settings of the client. Source: environment,
// optionally seeded from a .env file.
type Config struct {
	APIURL      string
	MediaURL    string
	StatePath   string
	Location    *time.Location
	AuthTimeout time.Duration
	RateLimit   float64
	RateBurst   int
	LogLevel    string
	FeaturePath string
}

// Load loads configuration from environment variables only.
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile loads configuration from an optional .env file and environment variables.
func LoadWithFile(envFile string) (*Config, error) {
	// Attempt to load .env file if provided, but don't fail if it doesn't exist.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		APIURL:      strings.TrimRight(os.Getenv("BOOKING_API_URL"), "/"),
		MediaURL:    strings.TrimRight(os.Getenv("BOOKING_MEDIA_URL"), "/"),
		StatePath:   os.Getenv("BOOKING_STATE_PATH"),
		LogLevel:    getEnvOrDefault("BOOKING_LOG_LEVEL", "info"),
		FeaturePath: os.Getenv("BOOKING_FEATURE_CONFIG"),
	}

	var err error
	if cfg.Location, err = time.LoadLocation(getEnvOrDefault("BOOKING_TIMEZONE", "Local")); err != nil {
		return nil, fmt.Errorf("invalid BOOKING_TIMEZONE: %w", err)
	}
	if cfg.AuthTimeout, err = parseDuration("BOOKING_AUTH_TIMEOUT", defaultAuthTimeout); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = parseFloat("BOOKING_RATE_LIMIT", defaultRateLimit); err != nil {
		return nil, err
	}
	if cfg.RateBurst, err = parseInt("BOOKING_RATE_BURST", defaultRateBurst); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.MediaURL == "" {
		cfg.MediaURL = defaultMediaURL(cfg.APIURL)
	}
	if cfg.StatePath == "" {
		cfg.StatePath = defaultStatePath()
	}
	if cfg.FeaturePath == "" {
		cfg.FeaturePath = filepath.Join(cfg.StatePath, "config.toml")
	}

	return cfg, nil
}

// Validate checks if all required fields are set.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("BOOKING_API_URL is required")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BOOKING_API_URL must be an absolute URL")
	}
	if c.AuthTimeout <= 0 {
		return fmt.Errorf("BOOKING_AUTH_TIMEOUT must be positive")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("BOOKING_RATE_LIMIT must be positive")
	}
	if c.RateBurst < 1 {
		return fmt.Errorf("BOOKING_RATE_BURST must be at least 1")
	}
	return nil
}

// defaultMediaURL swaps a trailing /api for /media, the service's layout.
func defaultMediaURL(apiURL string) string {
	if strings.HasSuffix(apiURL, "/api") {
		return strings.TrimSuffix(apiURL, "/api") + "/media"
	}
	return apiURL + "/media"
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".space-booking")
	}
	return filepath.Join(dir, "space-booking")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseFloat(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func parseInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
