package config

import (
	"time"

	"github.com/bmh-lims/lims/internal/schema"
	"github.com/bmh-lims/lims/internal/tabular"
)

// Default configuration values.
const (
	DefaultStoreType      = "sqlite"
	DefaultPostgresPort   = 5432
	DefaultSSLMode        = "disable"
	DefaultTestSampleName = "test_donotuse"
	DefaultMaxUploadMB    = 10
	DefaultWebhookTimeout = 10 * time.Second
	DefaultPort           = 8080
)

// DefaultProfiles returns the built-in ingestion profiles.
// The form profile mirrors the submission template; the bulk profile only needs a
// sample name and its lab per row.
func DefaultProfiles() map[string]ProfileConfig {
	return map[string]ProfileConfig{
		ProfileForm: {
			RequiredColumns:      append([]string(nil), schema.DefaultRequired...),
			RejectUnknownColumns: true,
		},
		ProfileBulk: {
			RequiredColumns:         []string{"sample_name", "submitting_lab"},
			ResolveSubmitterProject: true,
		},
	}
}

// ApplyStoreDefaults applies default values to a StoreConfig based on its type.
func ApplyStoreDefaults(s *StoreConfig) {
	if s == nil {
		return
	}
	if s.Type == "" {
		s.Type = DefaultStoreType
	}
	if s.Type == "postgres" {
		if s.Port == 0 {
			s.Port = DefaultPostgresPort
		}
		if s.SSLMode == "" {
			s.SSLMode = DefaultSSLMode
		}
	}
}

// ApplyIngestDefaults fills unset ingestion settings. Profiles missing from c are
// added; configured profiles are kept as written.
func ApplyIngestDefaults(c *IngestConfig) {
	if c == nil {
		return
	}
	if c.Sheet == "" {
		c.Sheet = tabular.DefaultSheet
	}
	if c.TestSampleName == "" {
		c.TestSampleName = DefaultTestSampleName
	}
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = DefaultMaxUploadMB
	}
	if c.Profiles == nil {
		c.Profiles = make(map[string]ProfileConfig)
	}
	for name, p := range DefaultProfiles() {
		if _, ok := c.Profiles[name]; !ok {
			c.Profiles[name] = p
		}
	}
}

// ApplyWebhookDefaults applies default values to a WebhookConfig.
func ApplyWebhookDefaults(w *WebhookConfig) {
	if w == nil {
		return
	}
	if w.Timeout <= 0 {
		w.Timeout = DefaultWebhookTimeout
	}
}

// ApplyServeDefaults applies default values to a ServeConfig.
func ApplyServeDefaults(s *ServeConfig) {
	if s == nil {
		return
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
}
