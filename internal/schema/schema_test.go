package schema

import (
	"errors"
	"testing"

	"github.com/bmh-lims/lims/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullTable(extra ...string) *core.Table {
	cols := append(append([]string{}, DefaultRequired...), extra...)
	t := core.NewTable(cols...)
	t.Append("S1", "DNA", "T1", 10.0, "WGS", "Escherichia", "coli")
	return t
}

func TestValidator_Check(t *testing.T) {
	tests := []struct {
		name          string
		table         *core.Table
		rejectUnknown bool
		wantErr       any
		wantCols      []string
		wantUnknown   []string
	}{
		{
			name:    "empty table",
			table:   core.NewTable(DefaultRequired...),
			wantErr: &core.EmptyInputError{},
		},
		{
			name:    "empty table without columns is still empty",
			table:   &core.Table{},
			wantErr: &core.EmptyInputError{},
		},
		{
			name: "every missing column is listed",
			table: func() *core.Table {
				tbl := core.NewTable("sample_name", "sample_type", "tube_plate_label", "requested_services")
				tbl.Append("S1", "DNA", "T1", "WGS")
				return tbl
			}(),
			wantErr:  &core.MissingColumnsError{},
			wantCols: []string{"sample_volume_in_ul", "genus", "species"},
		},
		{
			name:          "unknown column rejected",
			table:         fullTable("favourite_colour", "well"),
			rejectUnknown: true,
			wantErr:       &core.UnexpectedColumnsError{},
			wantCols:      []string{"favourite_colour"},
			wantUnknown:   []string{"favourite_colour"},
		},
		{
			name:        "unknown column tolerated",
			table:       fullTable("favourite_colour"),
			wantUnknown: []string{"favourite_colour"},
		},
		{
			name:          "all known",
			table:         fullTable("well", "culture_date"),
			rejectUnknown: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(DefaultRequired, tt.rejectUnknown)
			unknown, err := v.Check(tt.table)
			assert.Equal(t, tt.wantUnknown, unknown)

			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, core.IsStructural(err))

			switch tt.wantErr.(type) {
			case *core.EmptyInputError:
				var e *core.EmptyInputError
				assert.True(t, errors.As(err, &e))
			case *core.MissingColumnsError:
				var e *core.MissingColumnsError
				require.True(t, errors.As(err, &e))
				assert.Equal(t, tt.wantCols, e.Columns)
			case *core.UnexpectedColumnsError:
				var e *core.UnexpectedColumnsError
				require.True(t, errors.As(err, &e))
				assert.Equal(t, tt.wantCols, e.Columns)
			}
		})
	}
}

func TestValidator_RequiredIsConfiguration(t *testing.T) {
	v := New([]string{"sample_name", "submitting_lab"}, false)
	tbl := core.NewTable("sample_name", "submitting_lab", "submitter_project")
	tbl.Append("Sample 1", "LabA", "ProjA")

	unknown, err := v.Check(tbl)
	require.NoError(t, err)
	assert.Empty(t, unknown)
	assert.Equal(t, []string{"sample_name", "submitting_lab"}, v.Required())
}

func TestKnownSampleFields(t *testing.T) {
	known := KnownSampleFields()
	assert.True(t, known["qubit_concentration_in_ng_ul"])
	assert.True(t, known["bmh_project"])
	assert.False(t, known["sample_id"])
}
