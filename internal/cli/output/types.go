package output

// IngestOutput is the JSON shape of an upload or watch run.
type IngestOutput struct {
	RunID           string            `json:"run_id"`
	Source          string            `json:"source"`
	Profile         string            `json:"profile"`
	Summary         string            `json:"summary"`
	AcceptedCount   int               `json:"accepted_count"`
	RejectedCount   int               `json:"rejected_count"`
	SkippedTestRows int               `json:"skipped_test_rows"`
	DroppedColumns  []string          `json:"dropped_columns"`
	SampleIDs       []string          `json:"sample_ids"`
	Rejections      []RejectionOutput `json:"rejections"`
}

// RejectionOutput describes one rejected row.
type RejectionOutput struct {
	Line       int    `json:"line"`
	SampleName string `json:"sample_name,omitempty"`
	Reason     string `json:"reason"`
}

// SeedOutput is the JSON shape of a reference data seed.
type SeedOutput struct {
	Source           string `json:"source"`
	LabsCreated      int    `json:"labs_created"`
	LabsExisting     int    `json:"labs_existing"`
	ProjectsCreated  int    `json:"projects_created"`
	ProjectsExisting int    `json:"projects_existing"`
}

// MigrateOutput is the JSON shape of a migration run.
type MigrateOutput struct {
	Store   string `json:"store"`
	Version int64  `json:"version"`
}
