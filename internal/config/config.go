// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers a YAML file and MOVIERANK_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"time"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the persistence backend: memory or mongo.
	Store string `koanf:"store"`

	MongoURI       string `koanf:"mongo_uri"`
	MongoDatabase  string `koanf:"mongo_database"`
	MongoTimeoutMS int    `koanf:"mongo_timeout_ms"`

	// JWTSecret signs access tokens (HS256).
	JWTSecret       string `koanf:"jwt_secret"`
	TokenTTLMinutes int    `koanf:"token_ttl_minutes"`
	BcryptCost      int    `koanf:"bcrypt_cost"`

	// TopLimit is the default size of a user's ranked list; MaxTopLimit caps ?limit.
	TopLimit    int `koanf:"top_limit"`
	MaxTopLimit int `koanf:"max_top_limit"`

	// HydrationConcurrency bounds parallel movie lookups per top-N request.
	HydrationConcurrency int `koanf:"hydration_concurrency"`

	// RankRetries bounds optimistic-concurrency retries per rank mutation.
	RankRetries int `koanf:"rank_retries"`

	CatalogBaseURL   string  `koanf:"catalog_base_url"`
	CatalogAPIKey    string  `koanf:"catalog_api_key"`
	CatalogTimeoutMS int     `koanf:"catalog_timeout_ms"`
	CatalogRPS       float64 `koanf:"catalog_rps"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":3000",
		Store:                StoreMemory,
		MongoDatabase:        "movierank",
		MongoTimeoutMS:       10_000,
		JWTSecret:            "",
		TokenTTLMinutes:      24 * 60,
		BcryptCost:           10,
		TopLimit:             100,
		MaxTopLimit:          100,
		HydrationConcurrency: 16,
		RankRetries:          3,
		CatalogBaseURL:       "https://www.omdbapi.com/",
		CatalogTimeoutMS:     5_000,
		CatalogRPS:           5,
	}
}

// MongoTimeout returns the connect/operation timeout for MongoDB.
func (c *Config) MongoTimeout() time.Duration {
	return time.Duration(c.MongoTimeoutMS) * time.Millisecond
}

// TokenTTL returns the access token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// CatalogTimeout returns the per-request timeout for the external catalog.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.CatalogTimeoutMS) * time.Millisecond
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.JWTSecret == "":
		return fmt.Errorf("%w: jwt_secret must not be empty", ErrInvalidConfig)
	case c.Store != StoreMemory && c.Store != StoreMongo:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.Store == StoreMongo && c.MongoURI == "":
		return fmt.Errorf("%w: mongo_uri is required when store is mongo", ErrInvalidConfig)
	case c.TopLimit < 1 || c.MaxTopLimit < c.TopLimit:
		return fmt.Errorf("%w: top_limit must be in [1, max_top_limit]", ErrInvalidConfig)
	}
	return nil
}
