package validate

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/bmh-lims/lims/internal/normalize"
	"github.com/bmh-lims/lims/internal/resolve"
	"github.com/bmh-lims/lims/internal/schema"
	"github.com/bmh-lims/lims/internal/testutil"
	"github.com/bmh-lims/lims/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store *testutil.MemStore
	labA  *core.Lab
	projA *core.Project
}

func newFixture() *fixture {
	store := testutil.NewMemStore()
	labA := store.AddLab("LabA")
	projA := store.AddProject("ProjA", labA)
	return &fixture{store: store, labA: labA, projA: projA}
}

func (f *fixture) validator(t *testing.T, rules Rules) *Validator {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	return New(Config{
		Samples:  f.store,
		Resolver: resolve.New(resolve.Config{Labs: f.store, Projects: f.store, Logger: logger}),
		Rules:    rules,
		Logger:   logger,
	})
}

func record(values map[string]any) normalize.Record {
	return normalize.Row(core.RawRow{Line: 1, Values: values})
}

func formRow() map[string]any {
	return map[string]any{
		"sample_name":         "Sample_1",
		"sample_type":         "Cells (in DNA/RNA shield)",
		"tube_plate_label":    "TUBE-1",
		"sample_volume_in_ul": "25",
		"requested_services":  "WGS",
		"genus":               "Escherichia",
		"species":             "coli",
		"submitting_lab":      "LabA",
		"bmh_project":         "ProjA",
		"culture_date":        "2021-01-01",
		"well":                "A01",
	}
}

func TestValidator_AcceptsCompleteRow(t *testing.T) {
	f := newFixture()
	v := f.validator(t, FormRules(schema.DefaultRequired))

	sample, err := v.Validate(context.Background(), record(formRow()))
	require.NoError(t, err)

	assert.Empty(t, sample.SampleID, "sample_id is assigned at creation time")
	assert.Equal(t, "Sample_1", sample.SampleName)
	assert.Equal(t, core.SampleTypeCells, sample.SampleType)
	assert.Equal(t, f.labA.ID, sample.SubmittingLabID)
	require.NotNil(t, sample.BMHProjectID)
	assert.Equal(t, f.projA.ID, *sample.BMHProjectID)
	require.NotNil(t, sample.SampleVolumeInUL)
	assert.Equal(t, 25.0, *sample.SampleVolumeInUL)
	require.NotNil(t, sample.CultureDate)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), *sample.CultureDate)
	assert.Nil(t, sample.Strain, "missing optionals stay nil")
	assert.Nil(t, sample.DNAExtractionDate)
}

func TestValidator_MissingNameNeverReachesResolution(t *testing.T) {
	f := newFixture()
	v := f.validator(t, FormRules(schema.DefaultRequired))

	row := formRow()
	row["sample_name"] = ""
	_, err := v.Validate(context.Background(), record(row))

	var fe *core.FieldValidationError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, core.ColSampleName, fe.Field)
	assert.Equal(t, MsgRequired, fe.Reason)
	assert.True(t, IsRowError(err))

	assert.Zero(t, f.store.Calls("FindLabByName"))
	assert.Zero(t, f.store.Calls("SampleExists"))
}

func TestValidator_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(row map[string]any)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unknown lab",
			mutate: func(row map[string]any) { row["submitting_lab"] = "DoesNotExist" },
			check: func(t *testing.T, err error) {
				var e *core.UnresolvedLabError
				require.True(t, errors.As(err, &e))
				assert.Contains(t, err.Error(), "Invalid submitting_lab")
			},
		},
		{
			name:   "unknown project",
			mutate: func(row map[string]any) { row["bmh_project"] = "Ghost" },
			check: func(t *testing.T, err error) {
				var e *core.UnresolvedProjectError
				require.True(t, errors.As(err, &e))
				assert.Equal(t, "Ghost", e.Name)
			},
		},
		{
			name:   "bad date",
			mutate: func(row map[string]any) { row["culture_date"] = "lol" },
			check:  fieldFailure("culture_date", "Date has wrong format."),
		},
		{
			name:   "impossible date",
			mutate: func(row map[string]any) { row["dna_extraction_date"] = "2021-02-30" },
			check:  fieldFailure("dna_extraction_date", "Date has wrong format."),
		},
		{
			name:   "unknown sample type",
			mutate: func(row map[string]any) { row["sample_type"] = "Plasmid" },
			check:  fieldFailure("sample_type", `"Plasmid" is not a valid choice.`),
		},
		{
			name:   "negative volume",
			mutate: func(row map[string]any) { row["sample_volume_in_ul"] = -3.0 },
			check:  fieldFailure("sample_volume_in_ul", MsgNonNegative),
		},
		{
			name:   "non numeric concentration",
			mutate: func(row map[string]any) { row["qubit_concentration_in_ng_ul"] = "high" },
			check:  fieldFailure("qubit_concentration_in_ng_ul", MsgNumber),
		},
		{
			name:   "infinite volume",
			mutate: func(row map[string]any) { row["sample_volume_in_ul"] = "inf" },
			check:  fieldFailure("sample_volume_in_ul", MsgNumber),
		},
		{
			name:   "negative infinite concentration",
			mutate: func(row map[string]any) { row["qubit_concentration_in_ng_ul"] = "-inf" },
			check:  fieldFailure("qubit_concentration_in_ng_ul", MsgNumber),
		},
		{
			name:   "infinite typed cell",
			mutate: func(row map[string]any) { row["sample_volume_in_ul"] = math.Inf(1) },
			check:  fieldFailure("sample_volume_in_ul", MsgNumber),
		},
		{
			name:   "genome size beyond int64",
			mutate: func(row map[string]any) { row["approx_genome_size_in_bp"] = "1e20" },
			check:  fieldFailure("approx_genome_size_in_bp", MsgInteger),
		},
		{
			name:   "fractional genome size",
			mutate: func(row map[string]any) { row["approx_genome_size_in_bp"] = 1.5 },
			check:  fieldFailure("approx_genome_size_in_bp", MsgInteger),
		},
		{
			name:   "name with space under strict rules",
			mutate: func(row map[string]any) { row["sample_name"] = "Sample 1" },
			check:  fieldFailure("sample_name", MsgStrictName),
		},
		{
			name:   "genus with digits",
			mutate: func(row map[string]any) { row["genus"] = "E4" },
			check:  fieldFailure("genus", MsgAlphabetic),
		},
		{
			name:   "lowercase well",
			mutate: func(row map[string]any) { row["well"] = "a1" },
			check:  fieldFailure("well", "You provided: a1"),
		},
		{
			name:   "name too long",
			mutate: func(row map[string]any) { row["sample_name"] = strings.Repeat("S", 51) },
			check:  fieldFailure("sample_name", "no more than 50 characters"),
		},
		{
			name:   "required value blank",
			mutate: func(row map[string]any) { row["genus"] = "  " },
			check:  fieldFailure("genus", MsgRequired),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			v := f.validator(t, FormRules(schema.DefaultRequired))
			row := formRow()
			tt.mutate(row)

			sample, err := v.Validate(context.Background(), record(row))
			assert.Nil(t, sample)
			require.Error(t, err)
			assert.True(t, IsRowError(err), "row errors are data, not failures: %v", err)
			tt.check(t, err)
		})
	}
}

func fieldFailure(field, reason string) func(t *testing.T, err error) {
	return func(t *testing.T, err error) {
		t.Helper()
		var errs core.FieldErrors
		require.True(t, errors.As(err, &errs), "want field errors, got %T", err)
		for _, fe := range errs {
			if fe.Field == field {
				assert.Contains(t, fe.Reason, reason)
				return
			}
		}
		t.Errorf("no failure for %s in %v", field, errs)
	}
}

func TestValidator_AllFieldFailuresReportedTogether(t *testing.T) {
	f := newFixture()
	v := f.validator(t, FormRules(schema.DefaultRequired))
	row := formRow()
	row["culture_date"] = "lol"
	row["genus"] = "E4"
	row["species"] = ""

	_, err := v.Validate(context.Background(), record(row))
	var errs core.FieldErrors
	require.True(t, errors.As(err, &errs))
	assert.True(t, errs.Has("culture_date"))
	assert.True(t, errs.Has("genus"))
	assert.True(t, errs.Has("species"))
}

func TestValidator_Duplicate(t *testing.T) {
	f := newFixture()
	v := f.validator(t, FormRules(schema.DefaultRequired))
	ctx := context.Background()

	sample, err := v.Validate(ctx, record(formRow()))
	require.NoError(t, err)
	sample.SampleID = core.FormatSampleID(2024, 1)
	require.NoError(t, f.store.CreateSample(ctx, sample))

	_, err = v.Validate(ctx, record(formRow()))
	var dup *core.DuplicateSampleError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "Sample_1", dup.Name)
	assert.Equal(t, "LabA", dup.Lab)

	// Same name under another lab is a different sample.
	f.store.AddLab("LabB")
	row := formRow()
	row["submitting_lab"] = "LabB"
	row["bmh_project"] = ""
	_, err = v.Validate(ctx, record(row))
	assert.NoError(t, err)
}

func TestValidator_BulkRules(t *testing.T) {
	f := newFixture()
	v := f.validator(t, BulkRules([]string{"sample_name", "submitting_lab"}))

	sample, err := v.Validate(context.Background(), record(map[string]any{
		"sample_name":       "Sample 1",
		"submitting_lab":    "LabA",
		"submitter_project": "ProjA",
	}))
	require.NoError(t, err)
	assert.Equal(t, "Sample 1", sample.SampleName)
	require.NotNil(t, sample.SubmitterProject)
	assert.Equal(t, "ProjA", *sample.SubmitterProject)
	require.NotNil(t, sample.BMHProjectID, "resolved submitter project becomes the project handle")
	assert.Equal(t, f.projA.ID, *sample.BMHProjectID)

	_, err = v.Validate(context.Background(), record(map[string]any{
		"sample_name":       "Sample 2",
		"submitting_lab":    "LabA",
		"submitter_project": "Unknown",
	}))
	var pe *core.UnresolvedProjectError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, err.Error(), "Invalid submitter_project")
}

func TestValidator_StoreFailureIsNotARowError(t *testing.T) {
	f := newFixture()
	f.store.FailWith["SampleExists"] = errors.New("disk I/O error")
	v := f.validator(t, FormRules(schema.DefaultRequired))

	_, err := v.Validate(context.Background(), record(formRow()))
	require.Error(t, err)
	assert.False(t, IsRowError(err))
}
