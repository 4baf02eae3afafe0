package commands

import (
	"fmt"

	intconfig "github.com/bmh-lims/lims/internal/config"
	"github.com/bmh-lims/lims/internal/ingest"
	"github.com/bmh-lims/lims/internal/notify"
	"github.com/bmh-lims/lims/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port       int
	WebhookURL string
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the upload and sample API server",
		Long: `Start an HTTP server for spreadsheet submissions and the sample API.

Routes:
  POST /upload                 submission form upload (multipart, field excel_file)
  GET  /upload                 pending messages of the last upload
  POST /api/samples/upload     bulk ingestion of JSON rows
  GET  /api/samples            list samples (?lab=, ?limit=)
  GET  /api/samples/{id}       one sample
  GET  /api/events             completed runs as server-sent events
  GET  /metrics                Prometheus metrics
  GET  /healthz                liveness`,
		Example: `  # Start on the configured port
  lims serve

  # Custom port with a notification hook
  lims serve --port 9000 --webhook-url https://hooks.example.org/lims`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	// Bound through the config loader as serve.port and webhook.url.
	cmd.Flags().IntVar(&opts.Port, "port", intconfig.DefaultPort, "Port to serve on")
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "POST every completed run to this URL")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cc.Cfg
	logger := cc.Logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := ingest.NewMetrics(reg)

	events := notify.NewBroadcaster()
	notifier := notify.Fanout{newWebhook(cfg, logger), events}

	form, err := newPipeline(cfg, cc.Store, intconfig.ProfileForm, notifier, metrics, logger)
	if err != nil {
		return err
	}
	bulk, err := newPipeline(cfg, cc.Store, intconfig.ProfileBulk, notifier, metrics, logger)
	if err != nil {
		return err
	}

	server := web.NewServer(web.Config{
		Store:         cc.Store,
		Form:          form,
		Bulk:          bulk,
		Events:        events,
		Sheet:         cfg.Ingest.Sheet,
		MaxUploadMB:   cfg.Ingest.MaxUploadMB,
		Port:          cfg.Serve.Port,
		SessionSecret: cfg.Serve.SessionSecret,
		Gatherer:      reg,
		Logger:        logger,
	})

	cc.Renderer.Printf("Starting server on http://localhost:%d\n", cfg.Serve.Port)
	if cfg.Webhook.Enabled() {
		cc.Renderer.Muted(fmt.Sprintf("Notifying %s", cfg.Webhook.URL))
	}
	cc.Renderer.Println("Press Ctrl+C to stop")

	return server.Serve(cmd.Context())
}
