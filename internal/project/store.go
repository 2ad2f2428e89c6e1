package project

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/forgeqa/forgeqa/internal/shared"
)

// Store owns project state in memory. The mutation façade is the only
// writer; the mutex is the hardening point a multi-writer server port
// would extend into a per-project transaction.
type Store struct {
	mu       sync.RWMutex
	projects map[int64]Project
	nextID   int64
	now      func() time.Time
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		projects: make(map[int64]Project),
		nextID:   1,
		now:      time.Now,
	}
}

// Create inserts a validated project and assigns its ID.
func (s *Store) Create(p Project) (Project, error) {
	if err := validate(p); err != nil {
		return Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p = p.Clone()
	p.ID = s.nextID
	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.projects[p.ID] = p
	s.nextID++
	return p.Clone(), nil
}

// Get fetches a project by ID.
func (s *Store) Get(id int64) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return Project{}, fmt.Errorf("project: id %d: %w", id, shared.ErrNotFound)
	}
	return p.Clone(), nil
}

// List returns all projects ordered by ID.
func (s *Store) List() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Update replaces the stored project. The owner cannot change; the project
// must still contain the owner and pass structural validation.
func (s *Store) Update(p Project) (Project, error) {
	if err := validate(p); err != nil {
		return Project{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.projects[p.ID]
	if !ok {
		return Project{}, fmt.Errorf("project: id %d: %w", p.ID, shared.ErrNotFound)
	}
	if current.OwnerID != p.OwnerID {
		return Project{}, fmt.Errorf("project: owner is immutable")
	}
	p = p.Clone()
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = s.now()
	s.projects[p.ID] = p
	return p.Clone(), nil
}

func validate(p Project) error {
	if p.Name == "" {
		return fmt.Errorf("project: name required")
	}
	if p.OwnerID == 0 {
		return fmt.Errorf("project: owner required")
	}
	if p.Permissions == nil {
		return fmt.Errorf("project: permission map required")
	}
	if _, ok := p.Permissions[p.OwnerID]; !ok {
		return fmt.Errorf("project: owner must be a member")
	}
	return nil
}
