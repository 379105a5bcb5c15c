// Package config provides environment-driven configuration for the adcmdr server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Mirror holds the optional object storage settings for bundle mirroring.
type Mirror struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey Secret
	UseSSL    bool
	Prefix    string
}

// Enabled reports whether an endpoint is configured.
func (m Mirror) Enabled() bool { return m.Endpoint != "" }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL    Secret
	Port           string
	ListenHost     string
	CORSOrigins    []string
	LogLevel       string
	DBMaxConns     int32
	SiteURL        string
	UploadsDir     string
	MaxUploadMB    int
	CSVCharset     string
	FeaturedImages bool
	AdminAPIKey    Secret
	NonceSecret    Secret
	Mirror         Mirror
}

// Load reads an optional .env file and then the environment, applying
// defaults, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:    Secret(envOrDefault("DATABASE_URL", "")),
		Port:           envOrDefault("PORT", "3030"),
		ListenHost:     envOrDefault("LISTEN_HOST", "127.0.0.1"),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		SiteURL:        strings.TrimRight(envOrDefault("SITE_URL", ""), "/"),
		UploadsDir:     envOrDefault("UPLOADS_DIR", "./uploads"),
		CSVCharset:     envOrDefault("CSV_CHARSET", "utf-8"),
		FeaturedImages: envOrDefault("FEATURED_IMAGES", "true") == "true",
		AdminAPIKey:    Secret(envOrDefault("ADMIN_API_KEY", "")),
		NonceSecret:    Secret(envOrDefault("NONCE_SECRET", "")),
		Mirror: Mirror{
			Endpoint:  envOrDefault("MIRROR_ENDPOINT", ""),
			Bucket:    envOrDefault("MIRROR_BUCKET", ""),
			AccessKey: envOrDefault("MIRROR_ACCESS_KEY", ""),
			SecretKey: Secret(envOrDefault("MIRROR_SECRET_KEY", "")),
			UseSSL:    envOrDefault("MIRROR_USE_SSL", "true") == "true",
			Prefix:    envOrDefault("MIRROR_PREFIX", "adcmdr/bundles"),
		},
	}

	maxConns, err := strconv.Atoi(envOrDefault("DB_MAX_CONNS", "10"))
	if err != nil || maxConns < 2 || maxConns > 200 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be an integer between 2 and 200")
	}
	cfg.DBMaxConns = int32(maxConns) //nolint:gosec // bounded above

	maxUpload, err := strconv.Atoi(envOrDefault("MAX_UPLOAD_MB", "64"))
	if err != nil || maxUpload < 1 || maxUpload > 4096 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be an integer between 1 and 4096")
	}
	cfg.MaxUploadMB = maxUpload

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:3002")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
