package procedures

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/liamcoop/marches/rules"
)

// Store manages procedure persistence and retrieval
type Store interface {
	// Add a new procedure
	Add(ctx context.Context, p *Procedure) error

	// Get a procedure by ID
	Get(ctx context.Context, id string) (*Procedure, error)

	// List all procedures, oldest first
	List(ctx context.Context) ([]*Procedure, error)

	// Update an existing procedure's data
	Update(ctx context.Context, p *Procedure) error

	// Delete a procedure
	Delete(ctx context.Context, id string) error

	// Search returns procedures with a field value containing query,
	// case-insensitively
	Search(ctx context.Context, query string) ([]*Procedure, error)

	// BulkInsert adds all procedures or none
	BulkInsert(ctx context.Context, ps []*Procedure) (int, error)
}

// InMemoryStore implements Store using an in-memory map.
// Thread-safe with RWMutex.
type InMemoryStore struct {
	procedures map[string]*Procedure
	mu         sync.RWMutex
}

// NewInMemoryStore creates a new in-memory procedure store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		procedures: make(map[string]*Procedure),
	}
}

// Add adds a new procedure to the store.
// Sets CreatedAt and UpdatedAt when they are zero.
func (s *InMemoryStore) Add(ctx context.Context, p *Procedure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.procedures[p.ID]; exists {
		return fmt.Errorf("procedure %s: %w", p.ID, ErrAlreadyExists)
	}

	stampNew(p)
	s.procedures[p.ID] = p.clone()
	return nil
}

// Get retrieves a procedure by ID
func (s *InMemoryStore) Get(ctx context.Context, id string) (*Procedure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.procedures[id]
	if !exists {
		return nil, fmt.Errorf("procedure %s: %w", id, ErrNotFound)
	}
	return p.clone(), nil
}

// List returns all procedures ordered by creation time
func (s *InMemoryStore) List(ctx context.Context) ([]*Procedure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Procedure, 0, len(s.procedures))
	for _, p := range s.procedures {
		out = append(out, p.clone())
	}
	sortByCreation(out)
	return out, nil
}

// Update replaces the data of an existing procedure.
// Preserves the original CreatedAt timestamp.
func (s *InMemoryStore) Update(ctx context.Context, p *Procedure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.procedures[p.ID]
	if !exists {
		return fmt.Errorf("procedure %s: %w", p.ID, ErrNotFound)
	}

	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now()
	s.procedures[p.ID] = p.clone()
	return nil
}

// Delete removes a procedure from the store
func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.procedures[id]; !exists {
		return fmt.Errorf("procedure %s: %w", id, ErrNotFound)
	}

	delete(s.procedures, id)
	return nil
}

// Search returns the procedures whose ID or a field value contains query
func (s *InMemoryStore) Search(ctx context.Context, query string) ([]*Procedure, error) {
	needle := strings.ToLower(strings.TrimSpace(query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Procedure
	for _, p := range s.procedures {
		if matchesQuery(p, needle) {
			out = append(out, p.clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

// BulkInsert adds every procedure, or none if any ID is already taken or
// repeated in the batch.
func (s *InMemoryStore) BulkInsert(ctx context.Context, ps []*Procedure) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(ps))
	for _, p := range ps {
		if _, exists := s.procedures[p.ID]; exists || seen[p.ID] {
			return 0, fmt.Errorf("procedure %s: %w", p.ID, ErrAlreadyExists)
		}
		seen[p.ID] = true
	}

	for _, p := range ps {
		stampNew(p)
		s.procedures[p.ID] = p.clone()
	}
	return len(ps), nil
}

func stampNew(p *Procedure) {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
}

func sortByCreation(ps []*Procedure) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].CreatedAt.Before(ps[j].CreatedAt)
	})
}

// matchesQuery reports whether the ID or any field value of p contains the
// lower-cased needle. An empty needle matches everything.
func matchesQuery(p *Procedure, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.ID), needle) {
		return true
	}
	for _, v := range p.Data {
		if strings.Contains(strings.ToLower(rules.FormatValue(v)), needle) {
			return true
		}
	}
	return false
}
