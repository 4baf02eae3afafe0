package core

import (
	"errors"
	"fmt"
	"strings"
)

// Store sentinels.
var (
	// ErrNotFound is returned by store lookups that expect exactly one row.
	ErrNotFound = errors.New("not found")
	// ErrSampleExists is returned when a create violates the (lab, sample_name) uniqueness guard.
	ErrSampleExists = errors.New("sample already exists")
)

// EmptyInputError reports an input table with zero rows.
type EmptyInputError struct{}

func (e *EmptyInputError) Error() string {
	return "Empty file uploaded. No samples added."
}

// MissingColumnsError lists every required column absent from the input.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "Missing required columns: " + strings.Join(e.Columns, ", ")
}

// UnexpectedColumnsError lists every column outside the known Sample field set.
type UnexpectedColumnsError struct {
	Columns []string
}

func (e *UnexpectedColumnsError) Error() string {
	return "Extra columns in data: " + strings.Join(e.Columns, ", ")
}

// UnresolvedLabError reports a submitting_lab name with no matching Lab.
type UnresolvedLabError struct {
	Name string
}

func (e *UnresolvedLabError) Error() string {
	return fmt.Sprintf("Invalid submitting_lab: lab with name '%s' does not exist", e.Name)
}

// UnresolvedProjectError reports a non-empty project name with no matching Project.
type UnresolvedProjectError struct {
	Column string
	Name   string
}

func (e *UnresolvedProjectError) Error() string {
	col := e.Column
	if col == "" {
		col = ColBMHProject
	}
	return fmt.Sprintf("Invalid %s: project with name '%s' does not exist", col, e.Name)
}

// DuplicateSampleError reports a sample whose (lab, name) pair is already stored.
type DuplicateSampleError struct {
	Name string
	Lab  string
}

func (e *DuplicateSampleError) Error() string {
	return fmt.Sprintf("Sample with the same sample name %s in lab %s already exists", e.Name, e.Lab)
}

// FieldValidationError reports one field that failed a constraint.
type FieldValidationError struct {
	Field  string
	Reason string
}

func (e *FieldValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// FieldErrors aggregates the field failures of one row.
type FieldErrors []*FieldValidationError

func (e FieldErrors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes each field failure to errors.As.
func (e FieldErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, fe := range e {
		errs[i] = fe
	}
	return errs
}

// Has reports whether field failed.
func (e FieldErrors) Has(field string) bool {
	for _, fe := range e {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// SubmissionError reports broken form-path rules for lab and project selection.
type SubmissionError struct {
	Problems []string
}

func (e *SubmissionError) Error() string {
	return strings.Join(e.Problems, " ")
}

// IsStructural reports whether err aborts an ingestion before any row is processed.
func IsStructural(err error) bool {
	var (
		empty      *EmptyInputError
		missing    *MissingColumnsError
		unexpected *UnexpectedColumnsError
		submission *SubmissionError
	)
	return errors.As(err, &empty) || errors.As(err, &missing) ||
		errors.As(err, &unexpected) || errors.As(err, &submission)
}
