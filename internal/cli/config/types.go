// Package config provides configuration management for the lims CLI.
//
// The shared store, ingest, webhook and serve settings live in internal/config
// and are re-exported here via type aliases for convenience.
package config

import (
	sharedcfg "github.com/bmh-lims/lims/internal/config"
)

// StoreConfig is an alias for the shared store configuration.
type StoreConfig = sharedcfg.StoreConfig

// IngestConfig is an alias for the shared ingestion configuration.
type IngestConfig = sharedcfg.IngestConfig

// WebhookConfig is an alias for the shared webhook configuration.
type WebhookConfig = sharedcfg.WebhookConfig

// ServeConfig is an alias for the shared HTTP server configuration.
type ServeConfig = sharedcfg.ServeConfig

// WatchConfig holds configuration for the inbox watcher.
type WatchConfig struct {
	Dir      string `koanf:"dir"`
	Profile  string `koanf:"profile"`
	Debounce string `koanf:"debounce"`
}

// Config holds all CLI configuration options.
type Config struct {
	ProjectRoot  string               `koanf:"-"`
	StatePath    string               `koanf:"state_path"`
	RefData      string               `koanf:"refdata"`
	Environment  string               `koanf:"environment"`
	Verbose      bool                 `koanf:"verbose"`
	LogLevel     string               `koanf:"log_level"`
	OutputFormat string               `koanf:"output"`
	Store        *StoreConfig         `koanf:"store"`
	Ingest       *IngestConfig        `koanf:"ingest"`
	Webhook      *WebhookConfig       `koanf:"webhook"`
	Serve        *ServeConfig         `koanf:"serve"`
	Watch        *WatchConfig         `koanf:"watch"`
	Environments map[string]EnvConfig `koanf:"environments"`
}

// EnvConfig holds environment-specific configuration overrides.
type EnvConfig struct {
	Store   *StoreConfig   `koanf:"store"`
	Webhook *WebhookConfig `koanf:"webhook"`
}

// Default configuration values.
const (
	DefaultStateFile     = "lims.db"
	DefaultEnv           = "dev"
	DefaultOutput        = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel      = "info"
	DefaultWatchDebounce = "100ms"
)
