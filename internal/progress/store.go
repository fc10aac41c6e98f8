// Package progress persists the UserProgress record.
//
// Stores are plain read/overwrite persistence with no business rules. When the
// backing medium fails they keep working from memory for the rest of the
// process, so callers never see a persistence error.
package progress

import (
	"context"
	"sync"

	"github.com/elecsonJ/everyday-english-writing/pkg/models"
	"go.uber.org/zap"
)

// Store loads and saves a single UserProgress record
type Store interface {
	// Load returns the stored record, or the empty record if none exists
	Load(ctx context.Context) models.UserProgress
	// Save overwrites the stored record
	Save(ctx context.Context, p models.UserProgress)
}

// MemoryStore keeps the record in process memory only
type MemoryStore struct {
	mu       sync.RWMutex
	progress *models.UserProgress
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) models.UserProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.progress == nil {
		return models.NewUserProgress()
	}
	return s.progress.Clone()
}

func (s *MemoryStore) Save(_ context.Context, p models.UserProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := p.Clone()
	s.progress = &c
}

// backend is a durable medium that can fail
type backend interface {
	get(ctx context.Context) (*models.UserProgress, error)
	put(ctx context.Context, p models.UserProgress) error
	describe() string
}

// durableStore adapts a backend to Store. The first backend error switches it
// to memory-only for the rest of the process.
type durableStore struct {
	backend backend
	log     *zap.Logger

	mu       sync.Mutex
	mem      MemoryStore
	degraded bool
}

func newDurableStore(b backend, log *zap.Logger) *durableStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &durableStore{backend: b, log: log}
}

func (s *durableStore) Load(ctx context.Context) models.UserProgress {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		return s.mem.Load(ctx)
	}

	p, err := s.backend.get(ctx)
	if err != nil {
		s.degrade("load", err)
		return s.mem.Load(ctx)
	}
	if p == nil {
		return models.NewUserProgress()
	}

	loaded := normalize(*p)
	s.mem.Save(ctx, loaded)
	return loaded
}

func (s *durableStore) Save(ctx context.Context, p models.UserProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p = normalize(p)
	s.mem.Save(ctx, p)
	if s.degraded {
		return
	}
	if err := s.backend.put(ctx, p); err != nil {
		s.degrade("save", err)
	}
}

// Degraded reports whether the store has fallen back to memory
func (s *durableStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *durableStore) degrade(op string, err error) {
	s.degraded = true
	s.log.Warn("progress persistence unavailable, continuing in memory",
		zap.String("op", op),
		zap.String("backend", s.backend.describe()),
		zap.Error(err),
	)
}

func normalize(p models.UserProgress) models.UserProgress {
	if p.Sessions == nil {
		p.Sessions = []models.PracticeSession{}
	}
	return p
}
