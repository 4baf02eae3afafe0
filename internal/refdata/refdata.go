// Package refdata seeds labs and projects from a YAML document.
//
// Example:
//
//	labs:
//	  - name: LabA
//	    contact: lab-a@example.org
//	projects:
//	  - name: ProjA
//	    lead: Dr. A
//	    supporting_lab: LabA
//
// Apply is idempotent: entities are matched by exact name and existing ones are left untouched.
package refdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bmh-lims/lims/pkg/core"
	"gopkg.in/yaml.v3"
)

// LabSpec describes one lab.
type LabSpec struct {
	Name    string `yaml:"name"`
	Contact string `yaml:"contact"`
	Notes   string `yaml:"notes,omitempty"`
}

// ProjectSpec describes one project.
type ProjectSpec struct {
	Name          string `yaml:"name"`
	Description   string `yaml:"description,omitempty"`
	Lead          string `yaml:"lead,omitempty"`
	SupportingLab string `yaml:"supporting_lab,omitempty"`
}

// Document is the root of a reference data file.
type Document struct {
	Labs     []LabSpec     `yaml:"labs"`
	Projects []ProjectSpec `yaml:"projects"`
}

// Load decodes and validates a document.
func Load(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("failed to parse reference data: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile reads a document from path.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference data: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Validate checks names are present, unique and within the column limits.
func (d *Document) Validate() error {
	var problems []string
	labs := make(map[string]bool, len(d.Labs))
	for i, l := range d.Labs {
		name := strings.TrimSpace(l.Name)
		switch {
		case name == "":
			problems = append(problems, fmt.Sprintf("labs[%d]: name is required", i))
		case labs[name]:
			problems = append(problems, fmt.Sprintf("labs[%d]: duplicate lab %q", i, name))
		case len([]rune(name)) > core.SmallChar:
			problems = append(problems, fmt.Sprintf("labs[%d]: name longer than %d characters", i, core.SmallChar))
		}
		labs[name] = true
	}
	projects := make(map[string]bool, len(d.Projects))
	for i, p := range d.Projects {
		name := strings.TrimSpace(p.Name)
		switch {
		case name == "":
			problems = append(problems, fmt.Sprintf("projects[%d]: name is required", i))
		case projects[name]:
			problems = append(problems, fmt.Sprintf("projects[%d]: duplicate project %q", i, name))
		case len([]rune(name)) > core.SmallChar:
			problems = append(problems, fmt.Sprintf("projects[%d]: name longer than %d characters", i, core.SmallChar))
		}
		projects[name] = true
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid reference data: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Store is what Apply needs from persistence.
type Store interface {
	core.LabStore
	core.ProjectStore
}

// Report counts what Apply did.
type Report struct {
	LabsCreated      int
	LabsExisting     int
	ProjectsCreated  int
	ProjectsExisting int
}

// Apply creates every lab and project in doc that does not exist yet.
// Labs are applied first so projects may reference labs from the same document.
func Apply(ctx context.Context, store Store, doc *Document, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var rep Report

	for _, spec := range doc.Labs {
		name := strings.TrimSpace(spec.Name)
		existing, err := store.FindLabByName(ctx, name)
		if err != nil {
			return rep, err
		}
		if existing != nil {
			rep.LabsExisting++
			continue
		}
		lab := &core.Lab{Name: name, Contact: spec.Contact, Notes: optional(spec.Notes)}
		if err := store.CreateLab(ctx, lab); err != nil {
			return rep, err
		}
		logger.Info("lab created", "name", name, "id", lab.ID)
		rep.LabsCreated++
	}

	for _, spec := range doc.Projects {
		name := strings.TrimSpace(spec.Name)
		existing, err := store.FindProjectByName(ctx, name)
		if err != nil {
			return rep, err
		}
		if existing != nil {
			rep.ProjectsExisting++
			continue
		}

		project := &core.Project{
			Name:        name,
			Description: optional(spec.Description),
			Lead:        optional(spec.Lead),
		}
		if labName := strings.TrimSpace(spec.SupportingLab); labName != "" {
			lab, err := store.FindLabByName(ctx, labName)
			if err != nil {
				return rep, err
			}
			if lab == nil {
				return rep, fmt.Errorf("project %q: supporting lab %q does not exist", name, labName)
			}
			project.SupportingLabID = &lab.ID
		}
		if err := store.CreateProject(ctx, project); err != nil {
			return rep, err
		}
		logger.Info("project created", "name", name, "id", project.ID)
		rep.ProjectsCreated++
	}
	return rep, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
