// Package validate decides whether one normalized row becomes a Sample.
//
// Validation order per row:
//  1. sample_name and submitting_lab presence (no store access)
//  2. submitting lab resolution
//  3. duplicate check on (lab, sample_name)
//  4. optional project resolution
//  5. field-level constraints
//
// A rejected row yields one of the structured errors from pkg/core. Any other
// error is an infrastructure failure and is returned as-is.
package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bmh-lims/lims/internal/normalize"
	"github.com/bmh-lims/lims/internal/resolve"
	"github.com/bmh-lims/lims/pkg/core"
	"github.com/go-viper/mapstructure/v2"
)

// Config holds the collaborators of a Validator.
type Config struct {
	Samples  core.SampleStore
	Resolver *resolve.Resolver
	Rules    Rules
	Logger   *slog.Logger
}

// Validator performs per-row admission control.
type Validator struct {
	samples  core.SampleStore
	resolver *resolve.Resolver
	rules    Rules
	logger   *slog.Logger
}

// New creates a Validator.
func New(cfg Config) *Validator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Validator{
		samples:  cfg.Samples,
		resolver: cfg.Resolver,
		rules:    cfg.Rules,
		logger:   logger,
	}
}

// Validate returns the candidate Sample for rec, with SampleID left empty.
func (v *Validator) Validate(ctx context.Context, rec normalize.Record) (*core.Sample, error) {
	name := rec.Text(core.ColSampleName)
	labName := rec.Text(core.ColSubmittingLab)

	var presence core.FieldErrors
	if name == "" {
		presence = append(presence, &core.FieldValidationError{Field: core.ColSampleName, Reason: MsgRequired})
	}
	if labName == "" {
		presence = append(presence, &core.FieldValidationError{Field: core.ColSubmittingLab, Reason: MsgRequired})
	}
	if len(presence) > 0 {
		return nil, presence
	}

	lab, err := v.resolver.Lab(ctx, labName)
	if err != nil {
		return nil, err
	}

	exists, err := v.samples.SampleExists(ctx, lab.ID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check for duplicate sample %q: %w", name, err)
	}
	if exists {
		return nil, &core.DuplicateSampleError{Name: name, Lab: lab.Name}
	}

	project, err := v.resolver.Project(ctx, core.ColBMHProject, rec.Text(core.ColBMHProject))
	if err != nil {
		return nil, err
	}
	if v.rules.ResolveSubmitterProject {
		submitted, err := v.resolver.Project(ctx, core.ColSubmitterProject, rec.Text(core.ColSubmitterProject))
		if err != nil {
			return nil, err
		}
		if project == nil {
			project = submitted
		}
	}

	if errs := CheckFields(rec, v.rules); len(errs) > 0 {
		return nil, errs
	}

	sample, err := decode(rec)
	if err != nil {
		return nil, err
	}
	sample.SubmittingLabID = lab.ID
	sample.SubmittingLab = lab.Name
	if project != nil {
		id, projectName := project.ID, project.Name
		sample.BMHProjectID = &id
		sample.BMHProject = &projectName
	}
	return sample, nil
}

// decode maps a checked record onto a Sample.
func decode(rec normalize.Record) (*core.Sample, error) {
	var sample core.Sample
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &sample,
		TagName:    "mapstructure",
		DecodeHook: mapstructure.StringToTimeHookFunc(normalize.DateLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build sample decoder: %w", err)
	}
	if err := dec.Decode(rec.Fields()); err != nil {
		return nil, fmt.Errorf("failed to decode sample row: %w", err)
	}
	return &sample, nil
}

// IsRowError reports whether err rejects a single row rather than signalling
// an infrastructure failure.
func IsRowError(err error) bool {
	var (
		lab       *core.UnresolvedLabError
		project   *core.UnresolvedProjectError
		duplicate *core.DuplicateSampleError
		field     *core.FieldValidationError
	)
	return errors.As(err, &lab) || errors.As(err, &project) ||
		errors.As(err, &duplicate) || errors.As(err, &field)
}
