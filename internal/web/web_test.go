package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bmh-lims/lims/internal/ingest"
	"github.com/bmh-lims/lims/internal/notify"
	"github.com/bmh-lims/lims/internal/schema"
	"github.com/bmh-lims/lims/internal/testutil"
	"github.com/bmh-lims/lims/internal/validate"
	"github.com/bmh-lims/lims/pkg/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var bulkRequired = []string{"sample_name", "submitting_lab"}

type testServer struct {
	store   *testutil.MemStore
	events  *notify.Broadcaster
	handler http.Handler
}

func newTestServer(t *testing.T, maxMB int) *testServer {
	t.Helper()
	store := testutil.NewMemStore()
	labA := store.AddLab("LabA")
	store.AddProject("ProjA", labA)

	reg := prometheus.NewRegistry()
	metrics := ingest.NewMetrics(reg)
	events := notify.NewBroadcaster()
	logger := testutil.NewTestLogger(t)

	form := ingest.New(ingest.Config{
		Store:          store,
		Schema:         schema.New(schema.DefaultRequired, true),
		Rules:          validate.FormRules(schema.DefaultRequired),
		TestSampleName: ingest.DefaultTestSampleName,
		Notifier:       events,
		Metrics:        metrics,
		Logger:         logger,
	})
	bulk := ingest.New(ingest.Config{
		Store:          store,
		Schema:         schema.New(bulkRequired, false),
		Rules:          validate.BulkRules(bulkRequired),
		TestSampleName: ingest.DefaultTestSampleName,
		Notifier:       events,
		Metrics:        metrics,
		Logger:         logger,
	})

	srv := NewServer(Config{
		Store:         store,
		Form:          form,
		Bulk:          bulk,
		Events:        events,
		MaxUploadMB:   maxMB,
		SessionSecret: "test-secret-test-secret-test-sec",
		Gatherer:      reg,
		Logger:        logger,
	})
	return &testServer{store: store, events: events, handler: srv.Handler()}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// upload posts a multipart form and returns the flash messages shown after the redirect.
func (ts *testServer) upload(t *testing.T, filename string, content []byte, fields map[string]string) []Flash {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile(FieldFile, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := ts.do(req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/upload", rec.Header().Get("Location"))

	follow := httptest.NewRequest(http.MethodGet, "/upload", nil)
	for _, c := range rec.Result().Cookies() {
		follow.AddCookie(c)
	}
	page := ts.do(follow)
	require.Equal(t, http.StatusOK, page.Code)

	var payload struct {
		MaxUploadMB int     `json:"max_upload_mb"`
		Messages    []Flash `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(page.Body.Bytes(), &payload))
	return payload.Messages
}

func workbook(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func formWorkbook(t *testing.T) []byte {
	t.Helper()
	header := make([]any, len(schema.DefaultRequired))
	for i, c := range schema.DefaultRequired {
		header[i] = c
	}
	return workbook(t,
		header,
		[]any{"Sample_1", "Cells (in DNA/RNA shield)", "T1", 10.0, "WGS", "Escherichia", "coli"},
		[]any{"Sample_2", "DNA", "T2", 12.5, "WGS", "Salmonella", "enterica"},
	)
}

func texts(flashes []Flash) []string {
	out := make([]string, len(flashes))
	for i, f := range flashes {
		out[i] = f.Text
	}
	return out
}

func TestUpload_Submission(t *testing.T) {
	ts := newTestServer(t, 10)

	flashes := ts.upload(t, "samples.xlsx", formWorkbook(t), map[string]string{
		FieldLab:        "LabA",
		FieldBMHProject: "ProjA",
	})
	require.Len(t, flashes, 1)
	assert.Equal(t, LevelSuccess, flashes[0].Level)
	assert.Contains(t, flashes[0].Text, "Data uploaded successfully")
	assert.Len(t, ts.store.Samples(), 2)

	// Same file again: every row is a duplicate.
	flashes = ts.upload(t, "samples.xlsx", formWorkbook(t), map[string]string{
		FieldLab:        "LabA",
		FieldBMHProject: "ProjA",
	})
	require.Len(t, flashes, 3)
	assert.Equal(t, LevelWarning, flashes[0].Level)
	assert.Equal(t, LevelError, flashes[1].Level)
	assert.Len(t, ts.store.Samples(), 2)
}

func TestUpload_InvalidSubmission(t *testing.T) {
	ts := newTestServer(t, 10)
	flashes := ts.upload(t, "samples.xlsx", formWorkbook(t), map[string]string{FieldLab: "LabA"})
	require.Len(t, flashes, 1)
	assert.Equal(t, LevelError, flashes[0].Level)
	assert.Empty(t, ts.store.Samples())
}

func TestUpload_MissingColumns(t *testing.T) {
	ts := newTestServer(t, 10)
	content := workbook(t, []any{"sample_name", "genus"}, []any{"S1", "Escherichia"})

	flashes := ts.upload(t, "samples.xlsx", content, map[string]string{
		FieldLab:        "LabA",
		FieldBMHProject: "ProjA",
	})
	require.Len(t, flashes, 1)
	assert.Contains(t, flashes[0].Text, "Missing required columns:")
	assert.Empty(t, ts.store.Samples())
}

func TestUpload_Guards(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		want     string
	}{
		{
			name:     "no file",
			filename: "",
			want:     MsgEmptyFile,
		},
		{
			name:     "empty file",
			filename: "samples.xlsx",
			content:  []byte{},
			want:     MsgEmptyFile,
		},
		{
			name:     "csv is not excel",
			filename: "samples.csv",
			content:  []byte("sample_name\nS1\n"),
			want:     MsgNonExcelFile,
		},
		{
			name:     "too large",
			filename: "samples.xlsx",
			content:  bytes.Repeat([]byte("x"), 3<<19),
			want:     "File size exceeds the maximum limit of 1 MB.",
		},
		{
			name:     "not a workbook",
			filename: "samples.xlsx",
			content:  []byte("definitely not a zip"),
			want:     "Error reading file:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, 1)
			flashes := ts.upload(t, tt.filename, tt.content, nil)
			require.Len(t, flashes, 1)
			assert.Equal(t, LevelError, flashes[0].Level)
			assert.Contains(t, flashes[0].Text, tt.want)
		})
	}
}

func TestUploadMessages_Empty(t *testing.T) {
	ts := newTestServer(t, 10)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/upload", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, []any{}, payload["messages"])
	assert.EqualValues(t, 10, payload["max_upload_mb"])
}

func postRows(ts *testServer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/samples/upload", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return ts.do(req)
}

func TestUploadRows(t *testing.T) {
	ts := newTestServer(t, 10)

	rec := postRows(ts, `{"source":"api.json","rows":[
		{"sample_name":"S1","submitting_lab":"LabA","submitter_project":"ProjA","sample_type":"DNA"},
		{"sample_name":"S2","submitting_lab":"Nowhere"}
	]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res struct {
		RunID         string   `json:"run_id"`
		Source        string   `json:"source"`
		AcceptedCount int      `json:"accepted_count"`
		RejectedCount int      `json:"rejected_count"`
		Messages      []string `json:"messages"`
		Summary       string   `json:"summary"`
		SampleIDs     []string `json:"sample_ids"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "api.json", res.Source)
	assert.Equal(t, 1, res.AcceptedCount)
	assert.Equal(t, 1, res.RejectedCount)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0], "Row 2 (S2)")
	require.Len(t, res.SampleIDs, 1)
	assert.Contains(t, res.SampleIDs[0], "LIMS-")

	// Nothing new: still a valid request.
	rec = postRows(ts, `{"rows":[{"sample_name":"S1","submitting_lab":"LabA"}]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadRows_BadRequests(t *testing.T) {
	ts := newTestServer(t, 10)

	rec := postRows(ts, `{"rows":[{"sample_name":"S1"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing required columns: submitting_lab")

	rec = postRows(ts, `{"rows":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postRows(ts, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid JSON body")
}

func TestUploadRows_CleanRunListsAreEmpty(t *testing.T) {
	ts := newTestServer(t, 10)

	rec := postRows(ts, `{"rows":[{"sample_name":"S1","submitting_lab":"LabA"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []any{}, res["messages"])
	assert.Equal(t, []any{}, res["rejections"])
}

func TestUploadRows_InfiniteNumbersRejected(t *testing.T) {
	ts := newTestServer(t, 10)

	rec := postRows(ts, `{"rows":[
		{"sample_name":"S1","submitting_lab":"LabA","sample_volume_in_ul":"inf"},
		{"sample_name":"S2","submitting_lab":"LabA","qubit_concentration_in_ng_ul":"-Infinity"}
	]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), validate.MsgNumber)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/samples", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListSamples_EncodeFailure(t *testing.T) {
	ts := newTestServer(t, 10)
	inf := math.Inf(1)
	require.NoError(t, ts.store.CreateSample(context.Background(), &core.Sample{
		SampleID:         "LIMS-2024-000001",
		SampleName:       "S1",
		SubmittingLab:    "LabA",
		SampleVolumeInUL: &inf,
	}))

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/samples", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"failed to encode response"}`, rec.Body.String())
}

func TestListAndGetSamples(t *testing.T) {
	ts := newTestServer(t, 10)
	rec := postRows(ts, `{"rows":[
		{"sample_name":"S1","submitting_lab":"LabA","sample_type":"Cells (in DNA/RNA shield)","culture_date":"2021-01-01"},
		{"sample_name":"S2","submitting_lab":"LabA"}
	]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/samples?lab=LabA", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var samples []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &samples))
	require.Len(t, samples, 2)
	assert.Equal(t, "S1", samples[0]["sample_name"])
	assert.Equal(t, "CELLS", samples[0]["sample_type"])
	assert.Equal(t, "2021-01-01", samples[0]["culture_date"])
	assert.Nil(t, samples[1]["sample_type"])
	assert.Contains(t, samples[1], "genus")
	assert.Nil(t, samples[1]["genus"])

	id, ok := samples[0]["sample_id"].(string)
	require.True(t, ok)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/samples/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var one SampleJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, id, one.SampleID)
	assert.Equal(t, "LabA", one.SubmittingLab)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/samples?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &samples))
	assert.Len(t, samples, 1)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/samples?lab=LabB", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListSamples_BadLimit(t *testing.T) {
	ts := newTestServer(t, 10)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/samples?limit=lots", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSample_NotFound(t *testing.T) {
	ts := newTestServer(t, 10)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/samples/LIMS-2024-999999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Not found."}`, rec.Body.String())
}

func TestHealthzAndMetrics(t *testing.T) {
	ts := newTestServer(t, 10)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	postRows(ts, `{"rows":[{"sample_name":"S1","submitting_lab":"LabA"}]}`)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `lims_ingest_rows_total{outcome="accepted"} 1`)
	assert.Contains(t, rec.Body.String(), `lims_ingest_runs_total{result="completed"} 1`)
}

func TestStreamEvents(t *testing.T) {
	ts := newTestServer(t, 10)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	rec := postRows(ts, `{"source":"stream.json","rows":[{"sample_name":"S1","submitting_lab":"LabA"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var data string
	for data == "" {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(strings.TrimSpace(line), "data: ")
		}
	}
	var ev notify.Event
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, notify.EventIngestCompleted, ev.Event)
	assert.Equal(t, "stream.json", ev.Source)
	assert.Equal(t, 1, ev.AcceptedCount)
}
