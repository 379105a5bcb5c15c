package config

// Version is the adcmdr server version reported by the health endpoint.
// Set at build time via: -ldflags "-X github.com/adcommander/adcmdr-tools/internal/config.Version=<tag>"
var Version = "1.4.0-dev"
