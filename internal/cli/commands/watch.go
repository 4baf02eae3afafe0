package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmh-lims/lims/internal/ingest"
	"github.com/bmh-lims/lims/internal/tabular"
	"github.com/bmh-lims/lims/pkg/core"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// WatchOptions holds options for the watch command.
type WatchOptions struct {
	Profile  string
	Debounce string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Ingest every spreadsheet dropped into an inbox directory",
		Long: `Watch a directory and ingest each .xlsx or .csv file written to it.

Files are picked up once writes have settled for the debounce interval. Every run
is logged; refused files are logged and the watch continues. Without an argument
the directory named by watch.dir in lims.yaml is used.`,
		Example: `  # Watch the configured inbox
  lims watch

  # Watch a specific directory with a longer debounce
  lims watch ./inbox --debounce 2s`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Profile, "profile", "p", "", "Ingestion profile (default: watch.profile)")
	// Bound through the config loader as watch.debounce.
	cmd.Flags().StringVar(&opts.Debounce, "debounce", "", "Quiet period before a file is read (default: 100ms)")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string, opts *WatchOptions) error {
	cfg := getConfig()
	if len(args) == 1 {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		cfg.Watch.Dir = abs
	}
	if err := cfg.ValidateWatchDir(); err != nil {
		return err
	}
	debounce, err := time.ParseDuration(cfg.Watch.Debounce)
	if err != nil {
		return fmt.Errorf("invalid watch.debounce: %w", err)
	}
	profile := cfg.Watch.Profile
	if opts.Profile != "" {
		profile = opts.Profile
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	pipeline, err := newPipeline(cfg, cc.Store, profile, newWebhook(cfg, cc.Logger), nil, cc.Logger)
	if err != nil {
		return err
	}

	readOpts := tabular.Options{Sheet: cfg.Ingest.Sheet}
	if cfg.Ingest.TypedCSV {
		duck, err := tabular.NewDuckDBReader(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = duck.Close() }()
		readOpts.DuckDB = duck
	}

	r := cc.Renderer
	ingestFile := func(ctx context.Context, path string) error {
		name := filepath.Base(path)
		table, err := tabular.ReadFile(ctx, path, readOpts)
		if err != nil {
			cc.Logger.Warn("unreadable file", "file", name, "error", err)
			r.StatusLine(name, "failed", err.Error())
			return nil
		}
		res, err := pipeline.Ingest(ingest.WithSource(ctx, name), table)
		switch {
		case core.IsStructural(err):
			cc.Logger.Warn("file refused", "file", name, "error", err)
			r.StatusLine(name, "failed", err.Error())
			return nil
		case err != nil:
			return err
		}
		status := "success"
		if res.RejectedCount > 0 {
			status = "skipped"
		}
		r.StatusLine(name, status, res.Summary())
		for _, msg := range res.Messages {
			r.Muted("  " + msg)
		}
		return nil
	}

	w, err := newInboxWatcher(cfg.Watch.Dir, debounce, ingestFile, cc.Logger)
	if err != nil {
		return err
	}

	r.Printf("Watching %s (profile %s)\n", cfg.Watch.Dir, profile)
	r.Println("Press Ctrl+C to stop")
	return w.Run(cmd.Context())
}

// inboxWatcher reports settled spreadsheet files written to one directory.
type inboxWatcher struct {
	dir      string
	debounce time.Duration
	ingest   func(ctx context.Context, path string) error
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
}

// newInboxWatcher starts watching dir. Events arriving before Run are kept.
func newInboxWatcher(dir string, debounce time.Duration, ingest func(context.Context, string) error, logger *slog.Logger) (*inboxWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &inboxWatcher{dir: dir, debounce: debounce, ingest: ingest, watcher: watcher, logger: logger}, nil
}

// Run dispatches settled files to the ingest function until ctx is cancelled.
// Files are ingested one at a time in the order they settle.
func (w *inboxWatcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()

	ready := make(chan string)
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return w.loop(ctx, ready)
	})
	eg.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case path := <-ready:
				if err := w.ingest(ctx, path); err != nil {
					return fmt.Errorf("ingest %s: %w", filepath.Base(path), err)
				}
			}
		}
	})

	return eg.Wait()
}

func (w *inboxWatcher) loop(ctx context.Context, ready chan<- string) error {
	var mu sync.Mutex
	timers := make(map[string]*time.Timer)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !isInboxFile(event.Name) {
				continue
			}

			path := event.Name
			mu.Lock()
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(w.debounce, func() {
				mu.Lock()
				delete(timers, path)
				mu.Unlock()
				w.logger.Debug("file settled", "file", filepath.Base(path))
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})
			mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// isInboxFile reports whether name is a spreadsheet worth ingesting. Hidden files
// and Office lock files are ignored.
func isInboxFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	_, err := tabular.FormatFromName(base)
	return err == nil
}
