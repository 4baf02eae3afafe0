package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bmh-lims/lims/pkg/core"
)

// Submission messages shown to the uploader.
const (
	MsgBothProjects       = "Please select only one of Existing Project and New Project."
	MsgNoProject          = "Both Existing Project and New Project cannot be empty."
	MsgProjectLabMismatch = "Selected project should be associated with the selected lab"
)

// Submission is what the upload form selects for every row of a file.
type Submission struct {
	Lab             string
	ExistingProject string
	NewProject      string
}

// ResolvedSubmission carries the stored entities behind a Submission.
type ResolvedSubmission struct {
	Lab        *core.Lab
	Project    *core.Project
	NewProject string
}

// CheckSubmission applies the form rules: an existing project XOR a new project name,
// and an existing project must be supported by the selected lab.
// All broken rules are reported together in one *core.SubmissionError.
func CheckSubmission(lab *core.Lab, existing *core.Project, existingName, newProject string) error {
	var problems []string
	switch {
	case existingName != "" && newProject != "":
		problems = append(problems, MsgBothProjects)
	case existingName == "" && newProject == "":
		problems = append(problems, MsgNoProject)
	}
	if lab != nil && existing != nil && !existing.BelongsTo(lab.ID) {
		problems = append(problems, MsgProjectLabMismatch)
	}
	if len(problems) > 0 {
		return &core.SubmissionError{Problems: problems}
	}
	return nil
}

// ResolveSubmission resolves the selected lab and existing project, then applies CheckSubmission.
func (r *Resolver) ResolveSubmission(ctx context.Context, sub Submission) (*ResolvedSubmission, error) {
	sub.Lab = strings.TrimSpace(sub.Lab)
	sub.ExistingProject = strings.TrimSpace(sub.ExistingProject)
	sub.NewProject = strings.TrimSpace(sub.NewProject)

	var problems []string

	lab, err := r.Lab(ctx, sub.Lab)
	var labErr *core.UnresolvedLabError
	switch {
	case errors.As(err, &labErr):
		problems = append(problems, fmt.Sprintf("Lab with name '%s' does not exist.", sub.Lab))
	case err != nil:
		return nil, err
	}

	project, err := r.Project(ctx, core.ColBMHProject, sub.ExistingProject)
	var projectErr *core.UnresolvedProjectError
	switch {
	case errors.As(err, &projectErr):
		problems = append(problems, fmt.Sprintf("Project with name '%s' does not exist.", sub.ExistingProject))
	case err != nil:
		return nil, err
	}

	if err := CheckSubmission(lab, project, sub.ExistingProject, sub.NewProject); err != nil {
		var se *core.SubmissionError
		if errors.As(err, &se) {
			problems = append(problems, se.Problems...)
		}
	}
	if len(problems) > 0 {
		return nil, &core.SubmissionError{Problems: problems}
	}

	return &ResolvedSubmission{Lab: lab, Project: project, NewProject: sub.NewProject}, nil
}
