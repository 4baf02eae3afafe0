// Package web serves the upload form and the sample API over HTTP.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bmh-lims/lims/internal/ingest"
	"github.com/bmh-lims/lims/internal/notify"
	"github.com/bmh-lims/lims/pkg/core"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Config holds configuration for the HTTP server.
type Config struct {
	Store core.Store
	// Form ingests uploads from the submission form.
	Form *ingest.Pipeline
	// Bulk ingests JSON rows posted to the API.
	Bulk *ingest.Pipeline
	// Events, when set, streams completed runs on /api/events.
	Events        *notify.Broadcaster
	Sheet         string
	MaxUploadMB   int
	Port          int
	SessionSecret string
	Gatherer      prometheus.Gatherer
	Logger        *slog.Logger
}

// Server is the HTTP front end of the sample service.
type Server struct {
	handlers *Handlers
	events   *notify.Broadcaster
	gatherer prometheus.Gatherer
	port     int
	logger   *slog.Logger
}

// NewServer creates a new server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		// Flash cookies then only survive until restart.
		logger.Warn("serve.session_secret not set, using a random key")
		secret = securecookie.GenerateRandomKey(32)
	}
	sessionStore := sessions.NewCookieStore(secret)
	sessionStore.MaxAge(3600)
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	maxMB := cfg.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 10
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		handlers: &Handlers{
			store:        cfg.Store,
			form:         cfg.Form,
			bulk:         cfg.Bulk,
			sessionStore: sessionStore,
			sheet:        cfg.Sheet,
			maxUploadMB:  maxMB,
			logger:       logger,
		},
		events:   cfg.Events,
		gatherer: gatherer,
		port:     cfg.Port,
		logger:   logger,
	}
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		requestLogger(s.logger),
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Get("/upload", s.handlers.UploadMessages)
	r.Post("/upload", s.handlers.Upload)

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.Compress(5)).Get("/samples", s.handlers.ListSamples)
		r.Get("/samples/{sample_id}", s.handlers.GetSample)
		r.Post("/samples/upload", s.handlers.UploadRows)
		if s.events != nil {
			r.Get("/events", s.streamEvents)
		}
	})

	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
