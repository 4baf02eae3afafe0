package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	sharedcfg "github.com/bmh-lims/lims/internal/config"
)

var validOutputs = map[string]bool{"auto": true, "text": true, "markdown": true, "json": true}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !validOutputs[c.OutputFormat] {
		return fmt.Errorf("invalid output format %q (want auto, text, markdown or json)", c.OutputFormat)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Store != nil {
		if err := c.Store.Validate(); err != nil {
			return fmt.Errorf("invalid store configuration: %w", err)
		}
	}
	if c.Ingest != nil {
		for name, p := range c.Ingest.Profiles {
			if len(p.RequiredColumns) == 0 {
				return fmt.Errorf("ingest profile %q: required_columns must not be empty", name)
			}
			if _, err := c.Ingest.Rules(name); err != nil {
				return fmt.Errorf("ingest profile %q: %w", name, err)
			}
		}
	}
	if c.Watch != nil && c.Watch.Debounce != "" {
		if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
			return fmt.Errorf("invalid watch.debounce %q: %w", c.Watch.Debounce, err)
		}
	}
	return nil
}

// ValidateWatchDir checks that the watched inbox exists.
func (c *Config) ValidateWatchDir() error {
	if c.Watch == nil || c.Watch.Dir == "" {
		return fmt.Errorf("no inbox directory\nHint: pass a directory or set watch.dir in %s", sharedcfg.ConfigFileName)
	}
	info, err := os.Stat(c.Watch.Dir)
	if os.IsNotExist(err) {
		return fmt.Errorf("inbox directory does not exist: %s", c.Watch.Dir)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("inbox is not a directory: %s", c.Watch.Dir)
	}
	return nil
}

// ParseLogLevel maps a log_level value onto a slog level. Empty means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log_level %q (want debug, info, warn or error)", s)
}
