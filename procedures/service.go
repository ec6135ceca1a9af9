package procedures

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/marches/internal/metrics"
	"github.com/liamcoop/marches/rules"
)

// Service manages procedures and derives their status on every read.
// Statuses are computed with the service clock and never written back.
type Service struct {
	store  Store
	cache  Cache
	engine *rules.Engine
	now    func() time.Time

	// generation changes on every write; a list read from the store is
	// only cached if no write happened while it was being read
	mu         sync.Mutex
	generation uint64
}

// Option configures a Service
type Option func(*Service)

// WithClock sets the clock used as "today" when computing statuses
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithCache sets the procedure list cache
func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// NewService creates a service over store using engine for statuses.
// Without options it uses the wall clock and an in-memory cache.
func NewService(store Store, engine *rules.Engine, opts ...Option) *Service {
	s := &Service{
		store:  store,
		cache:  NewInMemoryCache(DefaultCacheConfig()),
		engine: engine,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NoCache{}
	}
	return s
}

// Engine returns the status engine used by the service
func (s *Service) Engine() *rules.Engine {
	return s.engine
}

// Now returns the service clock's current time
func (s *Service) Now() time.Time {
	return s.now()
}

// Create validates data and stores it as a new procedure
func (s *Service) Create(ctx context.Context, data rules.Record) (*View, error) {
	if err := ValidateRecord(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	p := &Procedure{
		ID:   uuid.New().String(),
		Data: data,
	}
	if err := s.store.Add(ctx, p); err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return s.view(p, s.now()), nil
}

// BulkImport stores every record as a new procedure, all or nothing
func (s *Service) BulkImport(ctx context.Context, records []rules.Record) (int, error) {
	if err := ValidateBatch(records); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	ps := make([]*Procedure, len(records))
	for i, r := range records {
		ps[i] = &Procedure{ID: uuid.New().String(), Data: r}
	}

	n, err := s.store.BulkInsert(ctx, ps)
	if err != nil {
		return 0, err
	}

	s.invalidate(ctx)
	return n, nil
}

// Get returns one procedure with its current status
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	return s.GetAt(ctx, id, s.now())
}

// GetAt returns one procedure with its status as of now
func (s *Service) GetAt(ctx context.Context, id string, now time.Time) (*View, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(p, now), nil
}

// Status computes the current status of one procedure
func (s *Service) Status(ctx context.Context, id string) (rules.StatusLabel, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return v.Statut, nil
}

// List returns every procedure with its current status.
// The procedure list is served from cache when possible.
func (s *Service) List(ctx context.Context) ([]*View, error) {
	return s.listAt(ctx, s.now())
}

func (s *Service) listAt(ctx context.Context, now time.Time) ([]*View, error) {
	ps, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(ps, now), nil
}

// Search returns matching procedures with their current status.
// An empty query lists everything.
func (s *Service) Search(ctx context.Context, query string) ([]*View, error) {
	if query == "" {
		return s.List(ctx)
	}

	ps, err := s.store.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.views(ps, s.now()), nil
}

// Update replaces the data of a procedure
func (s *Service) Update(ctx context.Context, id string, data rules.Record) (*View, error) {
	if err := ValidateRecord(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	p := &Procedure{ID: id, Data: data}
	if err := s.store.Update(ctx, p); err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return s.view(p, s.now()), nil
}

// Delete removes a procedure
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Summary counts procedures per status. Every status label is present,
// with zero when no procedure has it.
func (s *Service) Summary(ctx context.Context) (map[rules.StatusLabel]int, error) {
	return s.SummaryAt(ctx, s.now())
}

// SummaryAt counts procedures per status as of now
func (s *Service) SummaryAt(ctx context.Context, now time.Time) (map[rules.StatusLabel]int, error) {
	views, err := s.listAt(ctx, now)
	if err != nil {
		return nil, err
	}

	counts := make(map[rules.StatusLabel]int, len(rules.Statuses()))
	for _, label := range rules.Statuses() {
		counts[label] = 0
	}
	for _, v := range views {
		counts[v.Statut]++
	}
	return counts, nil
}

func (s *Service) list(ctx context.Context) ([]*Procedure, error) {
	if ps, ok := s.cache.Get(ctx); ok {
		metrics.ObserveCacheLookup(true)
		return ps, nil
	}
	metrics.ObserveCacheLookup(false)

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	ps, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.generation == gen {
		s.cache.Set(ctx, ps)
	}
	s.mu.Unlock()
	return ps, nil
}

func (s *Service) invalidate(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	s.cache.Invalidate(ctx)
	s.mu.Unlock()
}

// views computes all statuses against a single reading of the clock
func (s *Service) views(ps []*Procedure, now time.Time) []*View {
	out := make([]*View, len(ps))
	for i, p := range ps {
		out[i] = s.view(p, now)
	}
	return out
}

func (s *Service) view(p *Procedure, now time.Time) *View {
	start := time.Now()
	status := s.engine.ComputeStatus(p.Data, now)
	metrics.ObserveStatus(string(status), time.Since(start))

	return &View{Procedure: p, Statut: status}
}
