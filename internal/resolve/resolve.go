// Package resolve maps lab and project names onto stored entities.
//
// A Resolver caches every answer, including misses, for the lifetime of one
// ingestion. Prepare warms the cache with one batched lookup per entity kind so
// that per-row resolution never goes back to the store for a name it has seen.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bmh-lims/lims/internal/normalize"
	"github.com/bmh-lims/lims/pkg/core"
)

// Config holds the collaborators of a Resolver.
type Config struct {
	Labs     core.LabStore
	Projects core.ProjectStore
	Logger   *slog.Logger
}

// Resolver resolves names for a single ingestion run. It is not safe for concurrent use.
type Resolver struct {
	labs     core.LabStore
	projects core.ProjectStore
	logger   *slog.Logger

	labCache     map[string]*core.Lab
	projectCache map[string]*core.Project
}

// New creates a Resolver with empty caches.
func New(cfg Config) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		labs:         cfg.Labs,
		projects:     cfg.Projects,
		logger:       logger,
		labCache:     make(map[string]*core.Lab),
		projectCache: make(map[string]*core.Project),
	}
}

// DistinctNames collects the normalized, non-missing values of col, sorted.
func DistinctNames(t *core.Table, col string) []string {
	seen := make(map[string]bool)
	for _, row := range t.Rows {
		if s, ok := normalize.String(row.Get(col)).(string); ok {
			seen[s] = true
		}
	}
	names := make([]string, 0, len(seen))
	for s := range seen {
		names = append(names, s)
	}
	sort.Strings(names)
	return names
}

// Prepare resolves the given lab and project names in one lookup each.
// Names without a match are cached as misses.
func (r *Resolver) Prepare(ctx context.Context, labNames, projectNames []string) error {
	if pending := r.uncachedLabs(labNames); len(pending) > 0 {
		found, err := r.labs.ListLabsByNames(ctx, pending)
		if err != nil {
			return fmt.Errorf("failed to resolve labs: %w", err)
		}
		for _, name := range pending {
			r.labCache[name] = found[name]
		}
		r.logger.Debug("resolved labs", "requested", len(pending), "found", len(found))
	}

	if pending := r.uncachedProjects(projectNames); len(pending) > 0 {
		found, err := r.projects.ListProjectsByNames(ctx, pending)
		if err != nil {
			return fmt.Errorf("failed to resolve projects: %w", err)
		}
		for _, name := range pending {
			r.projectCache[name] = found[name]
		}
		r.logger.Debug("resolved projects", "requested", len(pending), "found", len(found))
	}
	return nil
}

func (r *Resolver) uncachedLabs(names []string) []string {
	var out []string
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.labCache[n]; !ok && n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func (r *Resolver) uncachedProjects(names []string) []string {
	var out []string
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.projectCache[n]; !ok && n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// Lab resolves a submitting lab by exact name.
// An empty or unknown name returns *core.UnresolvedLabError.
func (r *Resolver) Lab(ctx context.Context, name string) (*core.Lab, error) {
	if name == "" {
		return nil, &core.UnresolvedLabError{Name: name}
	}
	lab, cached := r.labCache[name]
	if !cached {
		var err error
		lab, err = r.labs.FindLabByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to look up lab %q: %w", name, err)
		}
		r.labCache[name] = lab
	}
	if lab == nil {
		return nil, &core.UnresolvedLabError{Name: name}
	}
	return lab, nil
}

// Project resolves an optional project reference held in column.
// An empty name resolves to nil without error; an unknown one returns *core.UnresolvedProjectError.
func (r *Resolver) Project(ctx context.Context, column, name string) (*core.Project, error) {
	if name == "" {
		return nil, nil
	}
	project, cached := r.projectCache[name]
	if !cached {
		var err error
		project, err = r.projects.FindProjectByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to look up project %q: %w", name, err)
		}
		r.projectCache[name] = project
	}
	if project == nil {
		return nil, &core.UnresolvedProjectError{Column: column, Name: name}
	}
	return project, nil
}
