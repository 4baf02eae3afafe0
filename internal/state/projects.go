package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bmh-lims/lims/pkg/core"
)

const projectColumns = "id, name, description, lead, supporting_lab_id, created_at, updated_at"

func scanProject(r rowScanner) (*core.Project, error) {
	var p core.Project
	if err := r.Scan(&p.ID, &p.Name, &p.Description, &p.Lead, &p.SupportingLabID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindProjectByName returns the project with the exact name, or nil when none exists.
func (s *SQLStore) FindProjectByName(ctx context.Context, name string) (*core.Project, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	p, err := scanProject(s.queryRow(ctx, "SELECT "+projectColumns+" FROM projects WHERE name = ?", name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %q: %w", name, err)
	}
	return p, nil
}

// ListProjectsByNames resolves names in a single query.
func (s *SQLStore) ListProjectsByNames(ctx context.Context, names []string) (map[string]*core.Project, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make(map[string]*core.Project, len(names))
	if len(names) == 0 {
		return out, nil
	}

	placeholders, args := inClause(names)
	rows, err := s.query(ctx, "SELECT "+projectColumns+" FROM projects WHERE name IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		out[p.Name] = p
	}
	return out, rows.Err()
}

// CreateProject inserts project and fills its ID and timestamps.
func (s *SQLStore) CreateProject(ctx context.Context, project *core.Project) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	now := s.clock()
	err := s.queryRow(ctx,
		`INSERT INTO projects (name, description, lead, supporting_lab_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		project.Name, nullable(project.Description), nullable(project.Lead), nullable(project.SupportingLabID), now, now,
	).Scan(&project.ID)
	if err != nil {
		return fmt.Errorf("failed to create project %q: %w", project.Name, err)
	}
	project.CreatedAt, project.UpdatedAt = now, now
	return nil
}
