package ingest

import (
	"fmt"
	"time"

	"github.com/bmh-lims/lims/pkg/core"
)

// Rejection describes one row that was not stored.
type Rejection struct {
	Line       int    `json:"line"`
	SampleName string `json:"sample_name"`
	Reason     string `json:"reason"`
	Err        error  `json:"-"`
}

// Result is the outcome of one ingestion run.
type Result struct {
	RunID           string         `json:"run_id"`
	Source          string         `json:"source,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
	AcceptedCount   int            `json:"accepted_count"`
	RejectedCount   int            `json:"rejected_count"`
	SkippedTestRows int            `json:"skipped_test_rows"`
	DroppedColumns  []string       `json:"dropped_columns,omitempty"`
	Messages        []string       `json:"messages"`
	Rejections      []Rejection    `json:"rejections"`
	AcceptedSamples []*core.Sample `json:"-"`
}

func (r *Result) accept(s *core.Sample) {
	r.AcceptedCount++
	r.AcceptedSamples = append(r.AcceptedSamples, s)
}

func (r *Result) reject(line int, name string, err error) {
	r.RejectedCount++
	msg := fmt.Sprintf("Row %d: %v", line, err)
	if name != "" {
		msg = fmt.Sprintf("Row %d (%s): %v", line, name, err)
	}
	r.Messages = append(r.Messages, msg)
	r.Rejections = append(r.Rejections, Rejection{Line: line, SampleName: name, Reason: err.Error(), Err: err})
}

// Summary is a one-line description of the run for humans.
func (r *Result) Summary() string {
	if r.RejectedCount == 0 {
		return fmt.Sprintf("Data uploaded successfully: %d samples added.", r.AcceptedCount)
	}
	return fmt.Sprintf("%d samples added, %d rows skipped.", r.AcceptedCount, r.RejectedCount)
}

// Total returns the number of rows that reached row processing.
func (r *Result) Total() int {
	return r.AcceptedCount + r.RejectedCount
}
