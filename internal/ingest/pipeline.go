// Package ingest turns an uploaded table into stored Samples.
//
// A run fails as a whole only on structural problems (empty input, missing or
// unexpected columns, an invalid form submission) or when the store fails.
// Every other problem rejects a single row, is recorded in the Result, and
// processing continues with the next row in input order.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bmh-lims/lims/internal/normalize"
	"github.com/bmh-lims/lims/internal/resolve"
	"github.com/bmh-lims/lims/internal/schema"
	"github.com/bmh-lims/lims/internal/validate"
	"github.com/bmh-lims/lims/pkg/core"
	"github.com/google/uuid"
)

// DefaultTestSampleName marks template rows that are never ingested.
const DefaultTestSampleName = "test_donotuse"

// Notifier receives the result of every completed run.
type Notifier interface {
	Notify(ctx context.Context, res *Result) error
}

type sourceKey struct{}

// WithSource records the name of the uploaded file on ctx; runs started with it
// carry the name in Result.Source.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFromContext returns the source recorded by WithSource, or "".
func SourceFromContext(ctx context.Context) string {
	s, _ := ctx.Value(sourceKey{}).(string)
	return s
}

// Config holds the collaborators and rules of a Pipeline.
type Config struct {
	Store  core.Store
	Schema *schema.Validator
	Rules  validate.Rules
	// TestSampleName rows are dropped before processing. Empty disables the filter.
	TestSampleName string
	Notifier       Notifier
	Metrics        *Metrics
	Clock          func() time.Time
	Logger         *slog.Logger
}

// Pipeline ingests tables. It holds no per-run state and may be shared.
type Pipeline struct {
	store          core.Store
	schema         *schema.Validator
	rules          validate.Rules
	testSampleName string
	notifier       Notifier
	metrics        *Metrics
	clock          func() time.Time
	logger         *slog.Logger
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	sv := cfg.Schema
	if sv == nil {
		sv = schema.New(cfg.Rules.Required, false)
	}
	return &Pipeline{
		store:          cfg.Store,
		schema:         sv,
		rules:          cfg.Rules,
		testSampleName: cfg.TestSampleName,
		notifier:       cfg.Notifier,
		metrics:        cfg.Metrics,
		clock:          clock,
		logger:         logger,
	}
}

// Ingest validates and stores every row of t. Unknown columns tolerated by the
// schema are dropped from t.
func (p *Pipeline) Ingest(ctx context.Context, t *core.Table) (*Result, error) {
	return p.run(ctx, t, nil)
}

// IngestSubmission ingests t as a form upload: the selected lab and project are
// checked first and then written onto every row.
func (p *Pipeline) IngestSubmission(ctx context.Context, sub resolve.Submission, t *core.Table) (*Result, error) {
	return p.run(ctx, t, &sub)
}

func (p *Pipeline) run(ctx context.Context, t *core.Table, sub *resolve.Submission) (*Result, error) {
	res := &Result{
		RunID:      uuid.NewString(),
		Source:     SourceFromContext(ctx),
		StartedAt:  p.clock(),
		Messages:   []string{},
		Rejections: []Rejection{},
	}
	logger := p.logger.With("run_id", res.RunID)
	if res.Source != "" {
		logger = logger.With("source", res.Source)
	}

	resolver := resolve.New(resolve.Config{Labs: p.store, Projects: p.store, Logger: logger})

	var selected *resolve.ResolvedSubmission
	if sub != nil {
		var err error
		selected, err = resolver.ResolveSubmission(ctx, *sub)
		if err != nil {
			return nil, p.fail(logger, res, err)
		}
	}

	unknown, err := p.schema.Check(t)
	if err != nil {
		return nil, p.fail(logger, res, err)
	}
	if len(unknown) > 0 {
		t.DropColumns(unknown...)
		res.DroppedColumns = unknown
		logger.Info("dropped unknown columns", "columns", unknown)
	}

	if selected != nil {
		applySubmission(t, selected)
	}

	res.SkippedTestRows = p.removeTestRows(t)

	if err := resolver.Prepare(ctx, p.labNames(t), p.projectNames(t)); err != nil {
		return res, p.fail(logger, res, err)
	}

	validator := validate.New(validate.Config{
		Samples:  p.store,
		Resolver: resolver,
		Rules:    p.rules,
		Logger:   logger,
	})

	for _, row := range t.Rows {
		if err := p.processRow(ctx, validator, res, row, logger); err != nil {
			return res, p.fail(logger, res, err)
		}
	}

	res.FinishedAt = p.clock()
	logger.Info("ingestion complete",
		"accepted", res.AcceptedCount,
		"rejected", res.RejectedCount,
		"skipped_test_rows", res.SkippedTestRows)
	p.metrics.observeRun(runCompleted, res)
	p.notify(ctx, logger, res)
	return res, nil
}

// processRow handles one row. Only infrastructure failures are returned.
func (p *Pipeline) processRow(ctx context.Context, v *validate.Validator, res *Result, row core.RawRow, logger *slog.Logger) error {
	rec := normalize.Row(row)
	name := rec.Text(core.ColSampleName)

	sample, err := v.Validate(ctx, rec)
	if err != nil {
		if !validate.IsRowError(err) {
			return err
		}
		logger.Debug("row rejected", "line", row.Line, "sample_name", name, "reason", err)
		res.reject(row.Line, name, err)
		return nil
	}

	seq, err := p.store.NextSampleNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to allocate sample id: %w", err)
	}
	sample.SampleID = core.FormatSampleID(p.clock().Year(), seq)

	if err := p.store.CreateSample(ctx, sample); err != nil {
		if errors.Is(err, core.ErrSampleExists) {
			// Lost the race with a concurrent upload of the same (lab, name).
			dup := &core.DuplicateSampleError{Name: sample.SampleName, Lab: sample.SubmittingLab}
			logger.Debug("row rejected at insert", "line", row.Line, "sample_name", name)
			res.reject(row.Line, name, dup)
			return nil
		}
		return fmt.Errorf("failed to create sample %q: %w", name, err)
	}

	logger.Debug("sample created", "line", row.Line, "sample_id", sample.SampleID)
	res.accept(sample)
	return nil
}

func (p *Pipeline) fail(logger *slog.Logger, res *Result, err error) error {
	res.FinishedAt = p.clock()
	if core.IsStructural(err) {
		logger.Info("ingestion refused", "error", err)
		p.metrics.observeRun(runStructural, nil)
		return err
	}
	logger.Error("ingestion aborted", "error", err, "accepted", res.AcceptedCount)
	p.metrics.observeRun(runFailed, res)
	return fmt.Errorf("ingestion aborted after %d rows: %w", res.Total(), err)
}

func (p *Pipeline) notify(ctx context.Context, logger *slog.Logger, res *Result) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, res); err != nil {
		logger.Warn("notification failed", "error", err)
	}
}

// removeTestRows drops template example rows and returns how many were removed.
func (p *Pipeline) removeTestRows(t *core.Table) int {
	if p.testSampleName == "" {
		return 0
	}
	kept := t.Rows[:0]
	removed := 0
	for _, row := range t.Rows {
		if name, ok := normalize.String(row.Get(core.ColSampleName)).(string); ok && name == p.testSampleName {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	t.Rows = kept
	return removed
}

func (p *Pipeline) labNames(t *core.Table) []string {
	return resolve.DistinctNames(t, core.ColSubmittingLab)
}

func (p *Pipeline) projectNames(t *core.Table) []string {
	names := resolve.DistinctNames(t, core.ColBMHProject)
	if p.rules.ResolveSubmitterProject {
		names = append(names, resolve.DistinctNames(t, core.ColSubmitterProject)...)
	}
	return names
}

// applySubmission writes the form selections onto every row.
func applySubmission(t *core.Table, sel *resolve.ResolvedSubmission) {
	t.SetColumn(core.ColSubmittingLab, sel.Lab.Name)
	if sel.Project != nil {
		t.SetColumn(core.ColBMHProject, sel.Project.Name)
	} else {
		t.SetColumn(core.ColBMHProject, nil)
	}
	if sel.NewProject != "" {
		t.SetColumn(core.ColSubmitterProject, sel.NewProject)
	} else {
		t.SetColumn(core.ColSubmitterProject, nil)
	}
}
