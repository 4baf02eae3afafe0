package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bmh-lims/lims/pkg/core"
)

// MemStore is an in-memory core.Store for tests that do not need SQL.
// It enforces the same (lab, sample_name) uniqueness guard as the SQL store
// and counts calls so tests can assert on lookup batching.
type MemStore struct {
	mu       sync.Mutex
	labs     []*core.Lab
	projects []*core.Project
	samples  []*core.Sample
	nextID   int64
	seq      int64
	calls    map[string]int

	// FailWith, when set, is returned by every method named in it.
	FailWith map[string]error
	// Clock stamps created entities; defaults to time.Now.
	Clock func() time.Time
}

var _ core.Store = (*MemStore)(nil)

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		calls:    make(map[string]int),
		FailWith: make(map[string]error),
		Clock:    time.Now,
	}
}

func (m *MemStore) enter(method string) error {
	m.calls[method]++
	return m.FailWith[method]
}

func (m *MemStore) id() int64 {
	m.nextID++
	return m.nextID
}

// Calls returns how many times method was invoked.
func (m *MemStore) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// AddLab stores a lab and returns it.
func (m *MemStore) AddLab(name string) *core.Lab {
	lab := &core.Lab{Name: name, Contact: "lab@example.org"}
	if err := m.CreateLab(context.Background(), lab); err != nil {
		panic(err)
	}
	return lab
}

// AddProject stores a project supported by lab (which may be nil) and returns it.
func (m *MemStore) AddProject(name string, lab *core.Lab) *core.Project {
	p := &core.Project{Name: name}
	if lab != nil {
		id := lab.ID
		p.SupportingLabID = &id
	}
	if err := m.CreateProject(context.Background(), p); err != nil {
		panic(err)
	}
	return p
}

// Samples returns a copy of every stored sample in insertion order.
func (m *MemStore) Samples() []*core.Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*core.Sample(nil), m.samples...)
}

func (m *MemStore) FindLabByName(_ context.Context, name string) (*core.Lab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindLabByName"); err != nil {
		return nil, err
	}
	for _, l := range m.labs {
		if l.Name == name {
			return l, nil
		}
	}
	return nil, nil
}

func (m *MemStore) ListLabsByNames(_ context.Context, names []string) (map[string]*core.Lab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListLabsByNames"); err != nil {
		return nil, err
	}
	out := make(map[string]*core.Lab)
	for _, n := range names {
		for _, l := range m.labs {
			if l.Name == n {
				out[n] = l
				break
			}
		}
	}
	return out, nil
}

func (m *MemStore) CreateLab(_ context.Context, lab *core.Lab) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateLab"); err != nil {
		return err
	}
	lab.ID = m.id()
	lab.CreatedAt = m.Clock()
	lab.UpdatedAt = lab.CreatedAt
	m.labs = append(m.labs, lab)
	return nil
}

func (m *MemStore) ListLabs(_ context.Context) ([]*core.Lab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListLabs"); err != nil {
		return nil, err
	}
	return append([]*core.Lab(nil), m.labs...), nil
}

func (m *MemStore) FindProjectByName(_ context.Context, name string) (*core.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindProjectByName"); err != nil {
		return nil, err
	}
	for _, p := range m.projects {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, nil
}

func (m *MemStore) ListProjectsByNames(_ context.Context, names []string) (map[string]*core.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListProjectsByNames"); err != nil {
		return nil, err
	}
	out := make(map[string]*core.Project)
	for _, n := range names {
		for _, p := range m.projects {
			if p.Name == n {
				out[n] = p
				break
			}
		}
	}
	return out, nil
}

func (m *MemStore) CreateProject(_ context.Context, p *core.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateProject"); err != nil {
		return err
	}
	p.ID = m.id()
	p.CreatedAt = m.Clock()
	p.UpdatedAt = p.CreatedAt
	m.projects = append(m.projects, p)
	return nil
}

func (m *MemStore) SampleExists(_ context.Context, labID int64, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SampleExists"); err != nil {
		return false, err
	}
	for _, s := range m.samples {
		if s.SubmittingLabID == labID && s.SampleName == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemStore) NextSampleNumber(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("NextSampleNumber"); err != nil {
		return 0, err
	}
	m.seq++
	return m.seq, nil
}

func (m *MemStore) CreateSample(_ context.Context, s *core.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateSample"); err != nil {
		return err
	}
	for _, existing := range m.samples {
		if existing.SubmittingLabID == s.SubmittingLabID && existing.SampleName == s.SampleName {
			return fmt.Errorf("%w: %s", core.ErrSampleExists, s.SampleName)
		}
	}
	s.ID = m.id()
	s.CreatedAt = m.Clock()
	s.UpdatedAt = s.CreatedAt
	stored := *s
	m.samples = append(m.samples, &stored)
	return nil
}

func (m *MemStore) GetSample(_ context.Context, sampleID string) (*core.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetSample"); err != nil {
		return nil, err
	}
	for _, s := range m.samples {
		if s.SampleID == sampleID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *MemStore) ListSamples(_ context.Context, filter core.SampleFilter) ([]*core.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListSamples"); err != nil {
		return nil, err
	}
	var out []*core.Sample
	for _, s := range m.samples {
		if filter.LabName != "" && s.SubmittingLab != filter.LabName {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemStore) Close() error { return nil }
