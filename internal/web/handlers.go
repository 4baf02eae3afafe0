package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/bmh-lims/lims/internal/ingest"
	"github.com/bmh-lims/lims/internal/resolve"
	"github.com/bmh-lims/lims/internal/tabular"
	"github.com/bmh-lims/lims/pkg/core"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
)

// Upload form fields.
const (
	FieldFile             = "excel_file"
	FieldLab              = "lab"
	FieldBMHProject       = "bmh_project"
	FieldSubmitterProject = "submitter_project"
)

// Upload guard messages.
const (
	MsgEmptyFile    = "Empty file uploaded. Please upload a valid Excel file."
	MsgNonExcelFile = "Non-excel file uploaded. Currently, only excel (.xlsx) files are supported."
	msgFileTooLarge = "File size exceeds the maximum limit of %d MB."
)

const defaultListLimit = 100

// Handlers provides the HTTP handlers of the server.
type Handlers struct {
	store        core.Store
	form         *ingest.Pipeline
	bulk         *ingest.Pipeline
	sessionStore sessions.Store
	sheet        string
	maxUploadMB  int
	logger       *slog.Logger
}

// Upload ingests a spreadsheet posted by the submission form, records the outcome
// as flash messages and redirects back to the form.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(h.maxUploadMB) << 20
	tooLarge := fmt.Sprintf(msgFileTooLarge, h.maxUploadMB)

	// Headroom for the other form fields and multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			h.flashRedirect(w, r, Flash{Level: LevelError, Text: tooLarge})
			return
		}
		h.flashRedirect(w, r, Flash{Level: LevelError, Text: MsgEmptyFile})
		return
	}

	file, header, err := r.FormFile(FieldFile)
	if err != nil {
		h.flashRedirect(w, r, Flash{Level: LevelError, Text: MsgEmptyFile})
		return
	}
	defer file.Close()

	switch {
	case header.Size == 0:
		h.flashRedirect(w, r, Flash{Level: LevelError, Text: MsgEmptyFile})
		return
	case header.Size > maxBytes:
		h.flashRedirect(w, r, Flash{Level: LevelError, Text: tooLarge})
		return
	}
	if format, err := tabular.FormatFromName(header.Filename); err != nil || format != tabular.FormatXLSX {
		h.flashRedirect(w, r, Flash{Level: LevelError, Text: MsgNonExcelFile})
		return
	}

	table, err := tabular.ReadXLSX(file, h.sheet)
	if err != nil {
		h.logger.Info("unreadable upload", "file", header.Filename, "error", err)
		h.flashRedirect(w, r, Flash{Level: LevelError, Text: "Error reading file: " + err.Error()})
		return
	}

	ctx := ingest.WithSource(r.Context(), header.Filename)
	var res *ingest.Result
	if lab := r.FormValue(FieldLab); lab != "" {
		res, err = h.form.IngestSubmission(ctx, resolve.Submission{
			Lab:             lab,
			ExistingProject: r.FormValue(FieldBMHProject),
			NewProject:      r.FormValue(FieldSubmitterProject),
		}, table)
	} else {
		res, err = h.form.Ingest(ctx, table)
	}
	if err != nil {
		if core.IsStructural(err) {
			h.flashRedirect(w, r, Flash{Level: LevelError, Text: err.Error()})
			return
		}
		h.logger.Error("upload failed", "file", header.Filename, "error", err)
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}

	flashes := []Flash{{Level: LevelSuccess, Text: res.Summary()}}
	if res.RejectedCount > 0 {
		flashes[0].Level = LevelWarning
	}
	for _, msg := range res.Messages {
		flashes = append(flashes, Flash{Level: LevelError, Text: msg})
	}
	h.flashRedirect(w, r, flashes...)
}

// UploadMessages returns and clears the pending flash messages.
func (h *Handlers) UploadMessages(w http.ResponseWriter, r *http.Request) {
	flashes, err := popFlashes(w, r, h.sessionStore)
	if err != nil {
		h.logger.Warn("failed to read flash messages", "error", err)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"max_upload_mb": h.maxUploadMB,
		"sample_types":  core.SampleTypeChoices,
		"messages":      flashes,
	})
}

func (h *Handlers) flashRedirect(w http.ResponseWriter, r *http.Request, flashes ...Flash) {
	if err := addFlashes(w, r, h.sessionStore, flashes...); err != nil {
		h.logger.Warn("failed to save flash messages", "error", err)
	}
	http.Redirect(w, r, "/upload", http.StatusSeeOther)
}

// rowsRequest is the body of POST /api/samples/upload.
type rowsRequest struct {
	Source string           `json:"source"`
	Rows   []map[string]any `json:"rows"`
}

// UploadRows ingests JSON rows with the bulk rules.
func (h *Handlers) UploadRows(w http.ResponseWriter, r *http.Request) {
	var req rowsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, int64(h.maxUploadMB)<<20))
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	ctx := r.Context()
	if req.Source != "" {
		ctx = ingest.WithSource(ctx, req.Source)
	}
	res, err := h.bulk.Ingest(ctx, tableFromRows(req.Rows))
	if err != nil {
		if core.IsStructural(err) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("row upload failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	status := http.StatusCreated
	if res.AcceptedCount == 0 {
		status = http.StatusOK
	}
	ids := make([]string, 0, len(res.AcceptedSamples))
	for _, s := range res.AcceptedSamples {
		ids = append(ids, s.SampleID)
	}
	h.writeJSON(w, status, struct {
		*ingest.Result
		Summary   string   `json:"summary"`
		SampleIDs []string `json:"sample_ids"`
	}{res, res.Summary(), ids})
}

// tableFromRows builds a table whose header is the sorted union of the row keys.
func tableFromRows(rows []map[string]any) *core.Table {
	seen := make(map[string]bool)
	var cols []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)

	t := core.NewTable(cols...)
	for i, row := range rows {
		values := make(map[string]any, len(row))
		for k, v := range row {
			values[k] = v
		}
		t.Rows = append(t.Rows, core.RawRow{Line: i + 1, Values: values})
	}
	return t
}

// ListSamples returns stored samples, optionally filtered by ?lab= and capped by ?limit=.
func (h *Handlers) ListSamples(w http.ResponseWriter, r *http.Request) {
	filter := core.SampleFilter{LabName: r.URL.Query().Get("lab"), Limit: defaultListLimit}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	samples, err := h.store.ListSamples(r.Context(), filter)
	if err != nil {
		h.logger.Error("list samples failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list samples")
		return
	}
	out := make([]SampleJSON, 0, len(samples))
	for _, s := range samples {
		out = append(out, NewSampleJSON(s))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// GetSample returns one sample by its sample_id.
func (h *Handlers) GetSample(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.GetSample(r.Context(), chi.URLParam(r, "sample_id"))
	if errors.Is(err, core.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "Not found.")
		return
	}
	if err != nil {
		h.logger.Error("get sample failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load sample")
		return
	}
	h.writeJSON(w, http.StatusOK, NewSampleJSON(s))
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("failed to encode response", "error", err)
		status = http.StatusInternalServerError
		data, _ = json.Marshal(map[string]string{"detail": "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, detail string) {
	h.writeJSON(w, status, map[string]string{"detail": detail})
}
