package core

import (
	"fmt"
	"strings"
	"time"
)

// SampleType is the internal code of a sample type.
type SampleType string

// Sample type codes.
const (
	SampleTypeCells           SampleType = "CELLS"
	SampleTypeDNA             SampleType = "DNA"
	SampleTypeRNA             SampleType = "RNA"
	SampleTypeAmplicon        SampleType = "AMPLICON"
	SampleTypePreparedLibrary SampleType = "PREPARED_LIBRARY"
	SampleTypeOther           SampleType = "OTHER"
)

// SampleTypeChoice pairs an internal code with the label shown to submitters.
type SampleTypeChoice struct {
	Code  SampleType
	Label string
}

// SampleTypeChoices is the controlled vocabulary for Sample.SampleType, in display order.
var SampleTypeChoices = []SampleTypeChoice{
	{SampleTypeCells, "Cells (in DNA/RNA shield)"},
	{SampleTypeDNA, "DNA"},
	{SampleTypeRNA, "RNA"},
	{SampleTypeAmplicon, "Amplicon - details in comments"},
	{SampleTypePreparedLibrary, "Prepared Library - details in comments"},
	{SampleTypeOther, "Other - details in comments"},
}

// Valid reports whether t is one of the internal codes.
func (t SampleType) Valid() bool {
	for _, c := range SampleTypeChoices {
		if c.Code == t {
			return true
		}
	}
	return false
}

// Label returns the human-readable label for t, or the code itself when unknown.
func (t SampleType) Label() string {
	for _, c := range SampleTypeChoices {
		if c.Code == t {
			return c.Label
		}
	}
	return string(t)
}

// SampleTypeCodes returns the internal codes in display order.
func SampleTypeCodes() []string {
	codes := make([]string, len(SampleTypeChoices))
	for i, c := range SampleTypeChoices {
		codes[i] = string(c.Code)
	}
	return codes
}

// Lab is an organizational submitter of samples.
type Lab struct {
	ID        int64
	Name      string
	Contact   string
	Notes     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Project is a named research effort samples are associated with.
type Project struct {
	ID              int64
	Name            string
	Description     *string
	Lead            *string
	SupportingLabID *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BelongsTo reports whether the project is supported by the given lab.
func (p *Project) BelongsTo(labID int64) bool {
	return p.SupportingLabID != nil && *p.SupportingLabID == labID
}

// Sample is a physical biological specimen record.
// Optional fields are nil when missing, never empty strings.
type Sample struct {
	ID       int64  `mapstructure:"-"`
	SampleID string `mapstructure:"-"`

	SampleName        string     `mapstructure:"sample_name"`
	TubePlateLabel    *string    `mapstructure:"tube_plate_label"`
	SubmittingLabID   int64      `mapstructure:"-"`
	SubmittingLab     string     `mapstructure:"submitting_lab"`
	SampleType        SampleType `mapstructure:"sample_type"`
	SampleVolumeInUL  *float64   `mapstructure:"sample_volume_in_ul"`
	RequestedServices *string    `mapstructure:"requested_services"`
	Genus             *string    `mapstructure:"genus"`
	Species           *string    `mapstructure:"species"`

	Well                     *string    `mapstructure:"well"`
	SubmitterProject         *string    `mapstructure:"submitter_project"`
	BMHProjectID             *int64     `mapstructure:"-"`
	BMHProject               *string    `mapstructure:"bmh_project"`
	Strain                   *string    `mapstructure:"strain"`
	Isolate                  *string    `mapstructure:"isolate"`
	SubspeciesSubtypeLineage *string    `mapstructure:"subspecies_subtype_lineage"`
	ApproxGenomeSizeInBP     *int64     `mapstructure:"approx_genome_size_in_bp"`
	Comments                 *string    `mapstructure:"comments"`
	CultureDate              *time.Time `mapstructure:"culture_date"`
	CultureConditions        *string    `mapstructure:"culture_conditions"`
	DNAExtractionDate        *time.Time `mapstructure:"dna_extraction_date"`
	DNAExtractionMethod      *string    `mapstructure:"dna_extraction_method"`
	QubitConcentrationInNgUL *float64   `mapstructure:"qubit_concentration_in_ng_ul"`
	Received                 *bool      `mapstructure:"received"`

	CreatedAt time.Time `mapstructure:"-"`
	UpdatedAt time.Time `mapstructure:"-"`
}

// SampleIDPrefix starts every generated sample_id.
const SampleIDPrefix = "LIMS"

// FormatSampleID renders the human-readable identifier LIMS-<year>-<6-digit sequence>.
func FormatSampleID(year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%06d", SampleIDPrefix, year, seq)
}

// ParseSampleID splits a sample_id into its year and sequence number.
func ParseSampleID(id string) (year int, seq int64, err error) {
	parts := strings.Split(id, "-")
	if len(parts) != 3 || parts[0] != SampleIDPrefix || len(parts[2]) < 6 {
		return 0, 0, fmt.Errorf("invalid sample id: %q", id)
	}
	if _, err := fmt.Sscanf(parts[1]+" "+parts[2], "%d %d", &year, &seq); err != nil {
		return 0, 0, fmt.Errorf("invalid sample id: %q", id)
	}
	return year, seq, nil
}

// Batch groups aliquots that are processed together.
type Batch struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Aliquot is a sub-portion of a Sample, assigned to one Batch.
type Aliquot struct {
	ID       int64
	SampleID int64
	BatchID  int64
	VolumeUL *float64
}

// Workflow is a named lab procedure.
type Workflow struct {
	ID          int64
	Name        string
	Description *string
}

// WorkflowStatus is the state of a workflow execution.
type WorkflowStatus string

// Workflow execution states.
const (
	WorkflowInProgress WorkflowStatus = "IN_PROGRESS"
	WorkflowComplete   WorkflowStatus = "COMPLETE"
	WorkflowFail       WorkflowStatus = "FAIL"
)

// Valid reports whether s is a known workflow status.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowInProgress, WorkflowComplete, WorkflowFail:
		return true
	}
	return false
}

// WorkflowExecution is one run of a Workflow against an Aliquot.
type WorkflowExecution struct {
	ID         int64
	AliquotID  int64
	WorkflowID int64
	Status     WorkflowStatus
}
