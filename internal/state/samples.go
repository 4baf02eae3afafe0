package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bmh-lims/lims/pkg/core"
)

const sampleSequence = "sample"

// sampleInsertColumns are written by CreateSample, in argument order.
const sampleInsertColumns = `sample_id, sample_name, tube_plate_label, submitting_lab_id, sample_type,
	sample_volume_in_ul, requested_services, genus, species, well, submitter_project, bmh_project_id,
	strain, isolate, subspecies_subtype_lineage, approx_genome_size_in_bp, comments, culture_date,
	culture_conditions, dna_extraction_date, dna_extraction_method, qubit_concentration_in_ng_ul,
	received, created_at, updated_at`

const sampleSelect = `SELECT s.id, s.sample_id, s.sample_name, s.tube_plate_label, s.submitting_lab_id, l.name,
	s.sample_type, s.sample_volume_in_ul, s.requested_services, s.genus, s.species, s.well,
	s.submitter_project, s.bmh_project_id, p.name, s.strain, s.isolate, s.subspecies_subtype_lineage,
	s.approx_genome_size_in_bp, s.comments, s.culture_date, s.culture_conditions, s.dna_extraction_date,
	s.dna_extraction_method, s.qubit_concentration_in_ng_ul, s.received, s.created_at, s.updated_at
	FROM samples s
	JOIN labs l ON l.id = s.submitting_lab_id
	LEFT JOIN projects p ON p.id = s.bmh_project_id`

func scanSample(r rowScanner) (*core.Sample, error) {
	var (
		s          core.Sample
		sampleType sql.NullString
	)
	err := r.Scan(
		&s.ID, &s.SampleID, &s.SampleName, &s.TubePlateLabel, &s.SubmittingLabID, &s.SubmittingLab,
		&sampleType, &s.SampleVolumeInUL, &s.RequestedServices, &s.Genus, &s.Species, &s.Well,
		&s.SubmitterProject, &s.BMHProjectID, &s.BMHProject, &s.Strain, &s.Isolate, &s.SubspeciesSubtypeLineage,
		&s.ApproxGenomeSizeInBP, &s.Comments, &s.CultureDate, &s.CultureConditions, &s.DNAExtractionDate,
		&s.DNAExtractionMethod, &s.QubitConcentrationInNgUL, &s.Received, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.SampleType = core.SampleType(sampleType.String)
	return &s, nil
}

// SampleExists reports whether labID already has a sample named name.
func (s *SQLStore) SampleExists(ctx context.Context, labID int64, name string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	var one int
	err := s.queryRow(ctx,
		"SELECT 1 FROM samples WHERE submitting_lab_id = ? AND sample_name = ? LIMIT 1",
		labID, name,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check sample %q: %w", name, err)
	}
	return true, nil
}

// NextSampleNumber increments and returns the sample sequence.
func (s *SQLStore) NextSampleNumber(ctx context.Context) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int64
	err := s.queryRow(ctx,
		"UPDATE sequences SET value = value + 1 WHERE name = ? RETURNING value",
		sampleSequence,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("sequence %q is missing; run migrations", sampleSequence)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to advance sample sequence: %w", err)
	}
	return n, nil
}

// CreateSample inserts smp. A (lab, sample_name) or sample_id collision wraps core.ErrSampleExists.
func (s *SQLStore) CreateSample(ctx context.Context, smp *core.Sample) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	now := s.clock()

	var sampleType any
	if smp.SampleType != "" {
		sampleType = string(smp.SampleType)
	}

	err := s.queryRow(ctx,
		"INSERT INTO samples ("+sampleInsertColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		smp.SampleID, smp.SampleName, nullable(smp.TubePlateLabel), smp.SubmittingLabID, sampleType,
		nullable(smp.SampleVolumeInUL), nullable(smp.RequestedServices), nullable(smp.Genus), nullable(smp.Species),
		nullable(smp.Well), nullable(smp.SubmitterProject), nullable(smp.BMHProjectID),
		nullable(smp.Strain), nullable(smp.Isolate), nullable(smp.SubspeciesSubtypeLineage),
		nullable(smp.ApproxGenomeSizeInBP), nullable(smp.Comments), nullable(smp.CultureDate),
		nullable(smp.CultureConditions), nullable(smp.DNAExtractionDate), nullable(smp.DNAExtractionMethod),
		nullable(smp.QubitConcentrationInNgUL), nullable(smp.Received), now, now,
	).Scan(&smp.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s in lab %d", core.ErrSampleExists, smp.SampleName, smp.SubmittingLabID)
		}
		return fmt.Errorf("failed to create sample %q: %w", smp.SampleName, err)
	}
	smp.CreatedAt, smp.UpdatedAt = now, now
	return nil
}

// GetSample returns the sample with the given sample_id, or core.ErrNotFound.
func (s *SQLStore) GetSample(ctx context.Context, sampleID string) (*core.Sample, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	smp, err := scanSample(s.queryRow(ctx, sampleSelect+" WHERE s.sample_id = ?", sampleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sample %s: %w", sampleID, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sample %s: %w", sampleID, err)
	}
	return smp, nil
}

// ListSamples returns samples in insertion order.
func (s *SQLStore) ListSamples(ctx context.Context, filter core.SampleFilter) ([]*core.Sample, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := sampleSelect
	var args []any
	if filter.LabName != "" {
		query += " WHERE l.name = ?"
		args = append(args, filter.LabName)
	}
	query += " ORDER BY s.id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	defer rows.Close()

	var samples []*core.Sample
	for rows.Next() {
		smp, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, smp)
	}
	return samples, rows.Err()
}
