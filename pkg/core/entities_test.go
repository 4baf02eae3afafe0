package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleType(t *testing.T) {
	tests := []struct {
		code  SampleType
		valid bool
		label string
	}{
		{SampleTypeCells, true, "Cells (in DNA/RNA shield)"},
		{SampleTypeDNA, true, "DNA"},
		{SampleTypePreparedLibrary, true, "Prepared Library - details in comments"},
		{"Cells (in DNA/RNA shield)", false, "Cells (in DNA/RNA shield)"},
		{"PLASMID", false, "PLASMID"},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.code.Valid())
			assert.Equal(t, tt.label, tt.code.Label())
		})
	}

	assert.Equal(t, []string{"CELLS", "DNA", "RNA", "AMPLICON", "PREPARED_LIBRARY", "OTHER"}, SampleTypeCodes())
}

func TestFormatSampleID(t *testing.T) {
	assert.Equal(t, "LIMS-2024-000001", FormatSampleID(2024, 1))
	assert.Equal(t, "LIMS-2025-123456", FormatSampleID(2025, 123456))
	assert.Equal(t, "LIMS-2025-1234567", FormatSampleID(2025, 1234567))

	year, seq, err := ParseSampleID("LIMS-2024-000042")
	require.NoError(t, err)
	assert.Equal(t, 2024, year)
	assert.Equal(t, int64(42), seq)

	for _, bad := range []string{"", "LIMS-2024", "ABC-2024-000001", "LIMS-20x4-000001", "LIMS-2024-12"} {
		_, _, err := ParseSampleID(bad)
		assert.Error(t, err, bad)
	}
}

func TestProjectBelongsTo(t *testing.T) {
	labID := int64(7)
	p := &Project{Name: "ProjA", SupportingLabID: &labID}
	assert.True(t, p.BelongsTo(7))
	assert.False(t, p.BelongsTo(8))
	assert.False(t, (&Project{Name: "Orphan"}).BelongsTo(7))
}

func TestWorkflowStatus(t *testing.T) {
	assert.True(t, WorkflowInProgress.Valid())
	assert.True(t, WorkflowComplete.Valid())
	assert.True(t, WorkflowFail.Valid())
	assert.False(t, WorkflowStatus("PAUSED").Valid())
}

func TestLookupField(t *testing.T) {
	f, ok := LookupField("culture_date")
	require.True(t, ok)
	assert.Equal(t, KindDate, f.Kind)

	f, ok = LookupField(ColSampleName)
	require.True(t, ok)
	assert.Equal(t, SmallChar, f.MaxLength)

	_, ok = LookupField("sample_id")
	assert.False(t, ok, "generated columns are not uploadable")
}

func TestTable(t *testing.T) {
	tbl := NewTable("sample_name", "genus")
	tbl.Append("S1", "Escherichia")
	tbl.Append("S2")

	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, 2, tbl.Rows[1].Line)
	assert.Nil(t, tbl.Rows[1].Get("genus"))

	tbl.SetColumn("submitting_lab", "LabA")
	assert.True(t, tbl.HasColumn("submitting_lab"))
	assert.Equal(t, "LabA", tbl.Rows[1].Get("submitting_lab"))

	tbl.DropColumns("genus")
	assert.Equal(t, []string{"sample_name", "submitting_lab"}, tbl.Columns)
	assert.Nil(t, tbl.Rows[0].Get("genus"))

	var nilTable *Table
	assert.Equal(t, 0, nilTable.Len())
}

func TestErrors(t *testing.T) {
	assert.Equal(t, "Missing required columns: genus, species",
		(&MissingColumnsError{Columns: []string{"genus", "species"}}).Error())
	assert.Contains(t, (&UnresolvedLabError{Name: "DoesNotExist"}).Error(), "Invalid submitting_lab")
	assert.Contains(t, (&UnresolvedProjectError{Name: "Nope"}).Error(), "Invalid bmh_project")
	assert.Contains(t, (&DuplicateSampleError{Name: "S1", Lab: "LabA"}).Error(), "S1")

	fieldErrs := FieldErrors{
		{Field: "culture_date", Reason: "Date has wrong format."},
		{Field: "genus", Reason: "Field should only contain alphabetic characters"},
	}
	var err error = fieldErrs
	var fe *FieldValidationError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "culture_date", fe.Field)
	assert.True(t, fieldErrs.Has("genus"))
	assert.False(t, fieldErrs.Has("species"))
	assert.Equal(t, "culture_date: Date has wrong format.; genus: Field should only contain alphabetic characters", err.Error())

	assert.True(t, IsStructural(&EmptyInputError{}))
	assert.True(t, IsStructural(&UnexpectedColumnsError{Columns: []string{"x"}}))
	assert.False(t, IsStructural(&UnresolvedLabError{Name: "x"}))
}
