// Package config provides the shared configuration types of the sample service.
// It is decoupled from CLI concerns so the web server and the watcher can build
// stores and pipelines from the same values.
package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bmh-lims/lims/internal/schema"
	"github.com/bmh-lims/lims/internal/state"
	"github.com/bmh-lims/lims/internal/validate"
)

// StoreConfig selects and locates the sample database.
type StoreConfig struct {
	Type string `koanf:"type"` // sqlite, postgres

	// SQLite
	Path string `koanf:"path"`

	// PostgreSQL, either as a full DSN or as parts
	DSN      string `koanf:"dsn"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
	SSLMode  string `koanf:"sslmode"`
}

// Validate checks the store type and the fields it needs.
func (s *StoreConfig) Validate() error {
	if s.Type == "" {
		return fmt.Errorf("store type is required")
	}
	switch state.Dialect(strings.ToLower(s.Type)) {
	case state.DialectSQLite:
		if s.Path == "" {
			return fmt.Errorf("store.path is required for sqlite")
		}
	case state.DialectPostgres:
		if s.DSN == "" && (s.Host == "" || s.Database == "") {
			return fmt.Errorf("store.dsn or store.host and store.database are required for postgres")
		}
	default:
		return fmt.Errorf("unknown store type %q (want sqlite or postgres)\nHint: set store.type in %s", s.Type, ConfigFileName)
	}
	return nil
}

// ConnectionString returns the DSN handed to the database driver.
func (s *StoreConfig) ConnectionString() string {
	if state.Dialect(strings.ToLower(s.Type)) != state.DialectPostgres {
		return s.Path
	}
	if s.DSN != "" {
		return s.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(s.Host, strconv.Itoa(s.Port)),
		Path:   "/" + s.Database,
	}
	if s.User != "" {
		if s.Password != "" {
			u.User = url.UserPassword(s.User, s.Password)
		} else {
			u.User = url.User(s.User)
		}
	}
	if s.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {s.SSLMode}}.Encode()
	}
	return u.String()
}

// StateConfig converts the store settings into a state.Config.
func (s *StoreConfig) StateConfig() state.Config {
	return state.Config{
		Dialect: state.Dialect(strings.ToLower(s.Type)),
		DSN:     s.ConnectionString(),
	}
}

// ProfileConfig holds the column and field rules of one ingestion path.
type ProfileConfig struct {
	RequiredColumns      []string `koanf:"required_columns"`
	RejectUnknownColumns bool     `koanf:"reject_unknown_columns"`
	// SampleNamePattern overrides the profile's sample_name regular expression.
	SampleNamePattern       string `koanf:"sample_name_pattern"`
	ResolveSubmitterProject bool   `koanf:"resolve_submitter_project"`
}

// Rules builds the row validation rules of the profile.
func (p ProfileConfig) Rules(base validate.Rules) (validate.Rules, error) {
	rules := base
	rules.Required = append([]string(nil), p.RequiredColumns...)
	rules.ResolveSubmitterProject = p.ResolveSubmitterProject
	if p.SampleNamePattern != "" {
		re, err := regexp.Compile(p.SampleNamePattern)
		if err != nil {
			return rules, fmt.Errorf("invalid sample_name_pattern: %w", err)
		}
		rules.NamePattern = re
		rules.NameMessage = fmt.Sprintf("Field should match the pattern %s.", p.SampleNamePattern)
	}
	return rules, nil
}

// Schema builds the header validator of the profile.
func (p ProfileConfig) Schema() *schema.Validator {
	return schema.New(p.RequiredColumns, p.RejectUnknownColumns)
}

// IngestConfig holds ingestion settings shared by every entry point.
type IngestConfig struct {
	Sheet          string                   `koanf:"sheet"`
	TestSampleName string                   `koanf:"test_sample_name"`
	MaxUploadMB    int                      `koanf:"max_upload_mb"`
	TypedCSV       bool                     `koanf:"typed_csv"`
	Profiles       map[string]ProfileConfig `koanf:"profiles"`
}

// Profile names.
const (
	ProfileForm = "form"
	ProfileBulk = "bulk"
)

// Profile returns the named profile.
func (c *IngestConfig) Profile(name string) (ProfileConfig, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return ProfileConfig{}, fmt.Errorf("unknown ingest profile %q", name)
	}
	return p, nil
}

// Rules returns the validation rules of the named profile.
func (c *IngestConfig) Rules(name string) (validate.Rules, error) {
	p, err := c.Profile(name)
	if err != nil {
		return validate.Rules{}, err
	}
	base := validate.BulkRules(nil)
	if name == ProfileForm {
		base = validate.FormRules(nil)
	}
	return p.Rules(base)
}

// WebhookConfig configures the ingestion notification hook.
type WebhookConfig struct {
	URL        string            `koanf:"url"`
	Timeout    time.Duration     `koanf:"timeout"`
	RetryCount int               `koanf:"retry_count"`
	Headers    map[string]string `koanf:"headers"`
}

// Enabled reports whether a webhook URL is configured.
func (w *WebhookConfig) Enabled() bool {
	return w != nil && w.URL != ""
}

// ServeConfig configures the HTTP server.
type ServeConfig struct {
	Port          int    `koanf:"port"`
	SessionSecret string `koanf:"session_secret"`
}
