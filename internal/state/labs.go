package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bmh-lims/lims/pkg/core"
)

const labColumns = "id, name, contact, notes, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLab(r rowScanner) (*core.Lab, error) {
	var l core.Lab
	if err := r.Scan(&l.ID, &l.Name, &l.Contact, &l.Notes, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// FindLabByName returns the lab with the exact name, or nil when none exists.
func (s *SQLStore) FindLabByName(ctx context.Context, name string) (*core.Lab, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	lab, err := scanLab(s.queryRow(ctx, "SELECT "+labColumns+" FROM labs WHERE name = ?", name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lab %q: %w", name, err)
	}
	return lab, nil
}

// ListLabsByNames resolves names in a single query.
func (s *SQLStore) ListLabsByNames(ctx context.Context, names []string) (map[string]*core.Lab, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make(map[string]*core.Lab, len(names))
	if len(names) == 0 {
		return out, nil
	}

	placeholders, args := inClause(names)
	rows, err := s.query(ctx, "SELECT "+labColumns+" FROM labs WHERE name IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list labs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		lab, err := scanLab(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lab: %w", err)
		}
		out[lab.Name] = lab
	}
	return out, rows.Err()
}

// CreateLab inserts lab and fills its ID and timestamps.
func (s *SQLStore) CreateLab(ctx context.Context, lab *core.Lab) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	now := s.clock()
	err := s.queryRow(ctx,
		"INSERT INTO labs (name, contact, notes, created_at, updated_at) VALUES (?, ?, ?, ?, ?) RETURNING id",
		lab.Name, lab.Contact, nullable(lab.Notes), now, now,
	).Scan(&lab.ID)
	if err != nil {
		return fmt.Errorf("failed to create lab %q: %w", lab.Name, err)
	}
	lab.CreatedAt, lab.UpdatedAt = now, now
	return nil
}

// ListLabs returns every lab ordered by name.
func (s *SQLStore) ListLabs(ctx context.Context) ([]*core.Lab, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, "SELECT "+labColumns+" FROM labs ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list labs: %w", err)
	}
	defer rows.Close()

	var labs []*core.Lab
	for rows.Next() {
		lab, err := scanLab(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lab: %w", err)
		}
		labs = append(labs, lab)
	}
	return labs, rows.Err()
}

// nullable turns a nil pointer into SQL NULL and dereferences the rest.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
