// Package core defines the shared language of the LIMS ingestion system.
//
// This package contains:
//   - Domain entities (Lab, Project, Sample, Batch, Aliquot, WorkflowExecution)
//   - The uploadable sample field table (SampleFields)
//   - The untyped row abstraction consumed by every pipeline stage (RawRow, Table)
//   - Store contracts (LabStore, ProjectStore, SampleStore, Store)
//   - Structured ingestion errors
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
