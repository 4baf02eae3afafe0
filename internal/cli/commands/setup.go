package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmh-lims/lims/internal/cli/config"
	"github.com/bmh-lims/lims/internal/cli/output"
	intconfig "github.com/bmh-lims/lims/internal/config"
	"github.com/bmh-lims/lims/internal/ingest"
	"github.com/bmh-lims/lims/internal/notify"
	"github.com/bmh-lims/lims/internal/state"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Store    *state.SQLStore
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with a migrated store and a renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutStore(cmd)

	store, err := openStore(cmd.Context(), cc.Cfg, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	cc.Store = store

	cleanup := func() {
		_ = store.Close()
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutStore creates a CommandContext without a store.
// Useful for commands that don't need database access.
func NewCommandContextWithoutStore(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	statePath := getEnvOrDefault("LIMS_STATE_PATH", config.DefaultStateFile)
	cfg := &config.Config{
		StatePath:    statePath,
		RefData:      os.Getenv("LIMS_REFDATA"),
		Environment:  getEnvOrDefault("LIMS_ENVIRONMENT", config.DefaultEnv),
		Verbose:      os.Getenv("LIMS_VERBOSE") == "true",
		LogLevel:     getEnvOrDefault("LIMS_LOG_LEVEL", config.DefaultLogLevel),
		OutputFormat: os.Getenv("LIMS_OUTPUT"),
		Store:        &config.StoreConfig{Path: statePath},
		Ingest:       &config.IngestConfig{},
		Webhook:      &config.WebhookConfig{},
		Serve:        &config.ServeConfig{},
		Watch: &config.WatchConfig{
			Profile:  intconfig.ProfileBulk,
			Debounce: config.DefaultWatchDebounce,
		},
	}
	intconfig.ApplyStoreDefaults(cfg.Store)
	intconfig.ApplyIngestDefaults(cfg.Ingest)
	intconfig.ApplyWebhookDefaults(cfg.Webhook)
	intconfig.ApplyServeDefaults(cfg.Serve)
	return cfg
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// openStore connects to the configured store and applies pending migrations.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*state.SQLStore, error) {
	if cfg.Store.Type == string(state.DialectSQLite) && cfg.Store.Path != ":memory:" {
		dir := filepath.Dir(cfg.Store.Path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	stateCfg := cfg.Store.StateConfig()
	stateCfg.Logger = logger
	store, err := state.Open(ctx, stateCfg)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// newPipeline builds the ingestion pipeline of the named profile.
func newPipeline(cfg *config.Config, store *state.SQLStore, profile string, notifier ingest.Notifier, metrics *ingest.Metrics, logger *slog.Logger) (*ingest.Pipeline, error) {
	p, err := cfg.Ingest.Profile(profile)
	if err != nil {
		return nil, err
	}
	rules, err := cfg.Ingest.Rules(profile)
	if err != nil {
		return nil, err
	}
	return ingest.New(ingest.Config{
		Store:          store,
		Schema:         p.Schema(),
		Rules:          rules,
		TestSampleName: cfg.Ingest.TestSampleName,
		Notifier:       notifier,
		Metrics:        metrics,
		Logger:         logger.With("profile", profile),
	}), nil
}

// newWebhook returns the configured webhook notifier, or nil when none is set.
func newWebhook(cfg *config.Config, logger *slog.Logger) ingest.Notifier {
	if !cfg.Webhook.Enabled() {
		return nil
	}
	return notify.NewWebhook(notify.WebhookConfig{
		URL:        cfg.Webhook.URL,
		Timeout:    cfg.Webhook.Timeout,
		RetryCount: cfg.Webhook.RetryCount,
		Headers:    cfg.Webhook.Headers,
		Logger:     logger,
	})
}
