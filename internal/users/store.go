package users

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/forgeqa/forgeqa/internal/shared"
)

// Store owns user state in memory. All writes flow through the mutation
// façade; readers receive copies.
type Store struct {
	mu     sync.RWMutex
	users  map[int64]User
	nextID int64
	now    func() time.Time
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		users:  make(map[int64]User),
		nextID: 1,
		now:    time.Now,
	}
}

// Create registers a new user and assigns its ID.
func (s *Store) Create(name, email string, role Role) (User, error) {
	if !role.Valid() {
		return User{}, fmt.Errorf("users: invalid role %q", role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	u := User{
		ID:        s.nextID,
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[u.ID] = u
	s.nextID++
	return u, nil
}

// Get fetches a user by ID.
func (s *Store) Get(id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, fmt.Errorf("users: id %d: %w", id, shared.ErrNotFound)
	}
	return u, nil
}

// List returns all users ordered by ID.
func (s *Store) List() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetRole updates the global role of a user.
func (s *Store) SetRole(id int64, role Role) (User, error) {
	if !role.Valid() {
		return User{}, fmt.Errorf("users: invalid role %q", role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, fmt.Errorf("users: id %d: %w", id, shared.ErrNotFound)
	}
	u.Role = role
	u.UpdatedAt = s.now()
	s.users[id] = u
	return u, nil
}

// Deactivate flags a user inactive without removing it.
func (s *Store) Deactivate(id int64) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, fmt.Errorf("users: id %d: %w", id, shared.ErrNotFound)
	}
	u.IsActive = false
	u.UpdatedAt = s.now()
	s.users[id] = u
	return u, nil
}
