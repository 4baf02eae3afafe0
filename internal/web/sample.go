package web

import (
	"time"

	"github.com/bmh-lims/lims/pkg/core"
)

// SampleJSON is the API representation of a Sample. Missing optional values
// encode as null and sample_type carries the internal code.
type SampleJSON struct {
	SampleID                 string   `json:"sample_id"`
	SampleName               string   `json:"sample_name"`
	TubePlateLabel           *string  `json:"tube_plate_label"`
	Well                     *string  `json:"well"`
	SubmittingLab            string   `json:"submitting_lab"`
	SampleType               *string  `json:"sample_type"`
	SampleVolumeInUL         *float64 `json:"sample_volume_in_ul"`
	RequestedServices        *string  `json:"requested_services"`
	SubmitterProject         *string  `json:"submitter_project"`
	BMHProject               *string  `json:"bmh_project"`
	Strain                   *string  `json:"strain"`
	Isolate                  *string  `json:"isolate"`
	Genus                    *string  `json:"genus"`
	Species                  *string  `json:"species"`
	SubspeciesSubtypeLineage *string  `json:"subspecies_subtype_lineage"`
	ApproxGenomeSizeInBP     *int64   `json:"approx_genome_size_in_bp"`
	Comments                 *string  `json:"comments"`
	CultureDate              *string  `json:"culture_date"`
	CultureConditions        *string  `json:"culture_conditions"`
	DNAExtractionDate        *string  `json:"dna_extraction_date"`
	DNAExtractionMethod      *string  `json:"dna_extraction_method"`
	QubitConcentrationInNgUL *float64 `json:"qubit_concentration_in_ng_ul"`
	Received                 *bool    `json:"received"`
	Created                  string   `json:"created"`
	Modified                 string   `json:"modified"`
}

// NewSampleJSON converts a stored Sample.
func NewSampleJSON(s *core.Sample) SampleJSON {
	var sampleType *string
	if s.SampleType != "" {
		v := string(s.SampleType)
		sampleType = &v
	}
	return SampleJSON{
		SampleID:                 s.SampleID,
		SampleName:               s.SampleName,
		TubePlateLabel:           s.TubePlateLabel,
		Well:                     s.Well,
		SubmittingLab:            s.SubmittingLab,
		SampleType:               sampleType,
		SampleVolumeInUL:         s.SampleVolumeInUL,
		RequestedServices:        s.RequestedServices,
		SubmitterProject:         s.SubmitterProject,
		BMHProject:               s.BMHProject,
		Strain:                   s.Strain,
		Isolate:                  s.Isolate,
		Genus:                    s.Genus,
		Species:                  s.Species,
		SubspeciesSubtypeLineage: s.SubspeciesSubtypeLineage,
		ApproxGenomeSizeInBP:     s.ApproxGenomeSizeInBP,
		Comments:                 s.Comments,
		CultureDate:              isoDate(s.CultureDate),
		CultureConditions:        s.CultureConditions,
		DNAExtractionDate:        isoDate(s.DNAExtractionDate),
		DNAExtractionMethod:      s.DNAExtractionMethod,
		QubitConcentrationInNgUL: s.QubitConcentrationInNgUL,
		Received:                 s.Received,
		Created:                  s.CreatedAt.UTC().Format(time.RFC3339),
		Modified:                 s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func isoDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}
