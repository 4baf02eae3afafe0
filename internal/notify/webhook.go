// Package notify delivers ingestion results to external systems.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bmh-lims/lims/internal/ingest"
	resty "github.com/go-resty/resty/v2"
)

// EventIngestCompleted is the event name of a finished ingestion run.
const EventIngestCompleted = "ingest.completed"

// Event is the JSON body posted to the webhook.
type Event struct {
	Event           string    `json:"event"`
	RunID           string    `json:"run_id"`
	Source          string    `json:"source,omitempty"`
	Summary         string    `json:"summary"`
	AcceptedCount   int       `json:"accepted_count"`
	RejectedCount   int       `json:"rejected_count"`
	SkippedTestRows int       `json:"skipped_test_rows"`
	SampleIDs       []string  `json:"sample_ids"`
	Messages        []string  `json:"messages"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// NewEvent builds the webhook payload for res.
func NewEvent(res *ingest.Result) Event {
	ids := make([]string, 0, len(res.AcceptedSamples))
	for _, s := range res.AcceptedSamples {
		ids = append(ids, s.SampleID)
	}
	messages := res.Messages
	if messages == nil {
		messages = []string{}
	}
	return Event{
		Event:           EventIngestCompleted,
		RunID:           res.RunID,
		Source:          res.Source,
		Summary:         res.Summary(),
		AcceptedCount:   res.AcceptedCount,
		RejectedCount:   res.RejectedCount,
		SkippedTestRows: res.SkippedTestRows,
		SampleIDs:       ids,
		Messages:        messages,
		StartedAt:       res.StartedAt,
		FinishedAt:      res.FinishedAt,
	}
}

// WebhookConfig configures a Webhook.
type WebhookConfig struct {
	URL        string
	Timeout    time.Duration
	RetryCount int
	Headers    map[string]string
	Logger     *slog.Logger
}

// Webhook posts an Event for every completed ingestion.
type Webhook struct {
	url    string
	client *resty.Client
	logger *slog.Logger
}

var _ ingest.Notifier = (*Webhook)(nil)

// NewWebhook creates a Webhook notifier.
func NewWebhook(cfg WebhookConfig) *Webhook {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetHeader("Content-Type", "application/json").
		SetHeaders(cfg.Headers)
	return &Webhook{url: cfg.URL, client: client, logger: logger}
}

// Notify posts the result. Non-2xx responses are errors.
func (w *Webhook) Notify(ctx context.Context, res *ingest.Result) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(NewEvent(res)).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned %s", resp.Status())
	}
	w.logger.Debug("webhook delivered", "run_id", res.RunID, "status", resp.StatusCode())
	return nil
}

// Nop discards every notification.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, *ingest.Result) error { return nil }
