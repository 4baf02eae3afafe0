package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bmh-lims/lims/internal/ingest"
	"github.com/bmh-lims/lims/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *ingest.Result {
	return &ingest.Result{
		RunID:           "run-1",
		Source:          "samples.xlsx",
		AcceptedCount:   2,
		RejectedCount:   1,
		Messages:        []string{"Row 3 (S3): Sample with the same sample name S3 in lab LabA already exists"},
		AcceptedSamples: []*core.Sample{{SampleID: "LIMS-2024-000001"}, {SampleID: "LIMS-2024-000002"}},
		StartedAt:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestWebhook_PostsEvent(t *testing.T) {
	var got Event
	var token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		token = r.Header.Get("X-Token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(WebhookConfig{URL: srv.URL, Headers: map[string]string{"X-Token": "secret"}})
	require.NoError(t, wh.Notify(context.Background(), sampleResult()))

	assert.Equal(t, "secret", token)
	assert.Equal(t, EventIngestCompleted, got.Event)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "samples.xlsx", got.Source)
	assert.Equal(t, 2, got.AcceptedCount)
	assert.Equal(t, 1, got.RejectedCount)
	assert.Equal(t, []string{"LIMS-2024-000001", "LIMS-2024-000002"}, got.SampleIDs)
	assert.Equal(t, "2 samples added, 1 rows skipped.", got.Summary)
	assert.Len(t, got.Messages, 1)
}

func TestWebhook_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(WebhookConfig{URL: srv.URL}).Notify(context.Background(), sampleResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhook_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewWebhook(WebhookConfig{URL: url, Timeout: time.Second}).Notify(context.Background(), sampleResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook request failed")
}

func TestNewEvent_EmptyResult(t *testing.T) {
	ev := NewEvent(&ingest.Result{RunID: "r"})
	assert.NotNil(t, ev.SampleIDs)
	assert.NotNil(t, ev.Messages)

	b, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"sample_ids":[]`)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Notify(context.Background(), sampleResult()))
}
