package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

const (
	minAdminKeyLength  = 24
	minNonceSecretSize = 16
)

func (c *Config) validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateNetwork(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	if err := c.validateSite(); err != nil {
		return err
	}

	if err := c.validateAuth(); err != nil {
		return err
	}

	if err := c.validateUploads(); err != nil {
		return err
	}

	if err := c.validateMirror(); err != nil {
		return err
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.DatabaseURL.Value() == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	dbURL, err := url.Parse(c.DatabaseURL.Value())
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}

	if dbURL.Scheme != "postgres" && dbURL.Scheme != "postgresql" {
		return fmt.Errorf("DATABASE_URL scheme must be postgres:// or postgresql://")
	}

	if dbURL.Hostname() == "" {
		return fmt.Errorf("DATABASE_URL must include a host")
	}

	dbHost := dbURL.Hostname()
	if !isLoopback(dbHost) && dbURL.Query().Get("sslmode") == "disable" {
		return fmt.Errorf("DATABASE_URL sslmode=disable is not allowed for non-local host %q", dbHost)
	}

	return nil
}

func (c *Config) validateNetwork() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid integer: %w", err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// 0.0.0.0 and :: are for containers where the network boundary is
	// enforced outside the process.
	validHosts := map[string]bool{
		"127.0.0.1": true,
		"::1":       true,
		"localhost": true,
		"0.0.0.0":   true,
		"::":        true,
	}
	if !validHosts[c.ListenHost] {
		return fmt.Errorf("LISTEN_HOST must be a loopback address or 0.0.0.0/:: for containers (got %q)", c.ListenHost)
	}

	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must not contain wildcard '*'")
		}
		if strings.ContainsAny(origin, "*?[]") {
			return fmt.Errorf("CORS_ORIGINS must not contain glob characters (*?[]), got %q", origin)
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

func (c *Config) validateSite() error {
	if c.SiteURL == "" {
		return fmt.Errorf("SITE_URL is required")
	}

	u, err := url.Parse(c.SiteURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("SITE_URL must be an absolute http(s) URL, got %q", c.SiteURL)
	}

	return nil
}

func (c *Config) validateAuth() error {
	if len(c.AdminAPIKey.Value()) < minAdminKeyLength {
		return fmt.Errorf("ADMIN_API_KEY is required and must be at least %d characters", minAdminKeyLength)
	}

	if len(c.NonceSecret.Value()) < minNonceSecretSize {
		return fmt.Errorf("NONCE_SECRET is required and must be at least %d characters", minNonceSecretSize)
	}

	if c.NonceSecret.Value() == c.AdminAPIKey.Value() {
		return fmt.Errorf("NONCE_SECRET must differ from ADMIN_API_KEY")
	}

	return nil
}

func (c *Config) validateUploads() error {
	if strings.TrimSpace(c.UploadsDir) == "" {
		return fmt.Errorf("UPLOADS_DIR must not be empty")
	}

	if _, err := htmlindex.Get(c.CSVCharset); err != nil {
		return fmt.Errorf("CSV_CHARSET %q is not a known character set", c.CSVCharset)
	}

	return nil
}

func (c *Config) validateMirror() error {
	if !c.Mirror.Enabled() {
		return nil
	}

	if c.Mirror.Bucket == "" {
		return fmt.Errorf("MIRROR_BUCKET is required when MIRROR_ENDPOINT is set")
	}

	if c.Mirror.AccessKey == "" || c.Mirror.SecretKey.Value() == "" {
		return fmt.Errorf("MIRROR_ACCESS_KEY and MIRROR_SECRET_KEY are required when MIRROR_ENDPOINT is set")
	}

	if strings.HasPrefix(c.Mirror.Endpoint, "http://") && c.Mirror.UseSSL {
		return fmt.Errorf("MIRROR_ENDPOINT uses http:// but MIRROR_USE_SSL is true")
	}

	return nil
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
