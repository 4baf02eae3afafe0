package core

import "context"

// LabStore looks up and creates Labs.
type LabStore interface {
	// FindLabByName returns nil, nil when no lab has the exact name.
	FindLabByName(ctx context.Context, name string) (*Lab, error)
	// ListLabsByNames resolves a set of names in one round trip.
	// Names without a match are absent from the result.
	ListLabsByNames(ctx context.Context, names []string) (map[string]*Lab, error)
	CreateLab(ctx context.Context, lab *Lab) error
	ListLabs(ctx context.Context) ([]*Lab, error)
}

// ProjectStore looks up and creates Projects.
type ProjectStore interface {
	FindProjectByName(ctx context.Context, name string) (*Project, error)
	ListProjectsByNames(ctx context.Context, names []string) (map[string]*Project, error)
	CreateProject(ctx context.Context, project *Project) error
}

// SampleFilter narrows ListSamples.
type SampleFilter struct {
	LabName string
	Limit   int
}

// SampleStore persists Samples.
type SampleStore interface {
	SampleExists(ctx context.Context, labID int64, name string) (bool, error)
	// NextSampleNumber atomically allocates the next sample sequence number.
	NextSampleNumber(ctx context.Context) (int64, error)
	// CreateSample inserts s and fills its ID and timestamps.
	// A (lab, sample_name) collision returns an error wrapping ErrSampleExists.
	CreateSample(ctx context.Context, s *Sample) error
	GetSample(ctx context.Context, sampleID string) (*Sample, error)
	ListSamples(ctx context.Context, filter SampleFilter) ([]*Sample, error)
}

// Store is the full persistence contract used by the ingestion pipeline.
type Store interface {
	LabStore
	ProjectStore
	SampleStore
	Close() error
}
