package importer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound marks a pending import that does not exist, expired, or
// belongs to another owner.
var ErrSessionNotFound = errors.New("pending import not found")

// SessionStore keeps runs parked in AwaitingConfirmation until the caller
// confirms or discards them. Entries expire; an abandoned preview never
// persists anything.
type SessionStore interface {
	Put(ctx context.Context, run Run) error
	Get(ctx context.Context, id uuid.UUID) (Run, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type memoryEntry struct {
	run       Run
	expiresAt time.Time
}

// InMemorySessions is the single-instance session store. Expiry is checked
// lazily on read.
type InMemorySessions struct {
	mu      sync.Mutex
	entries map[uuid.UUID]memoryEntry
	ttl     time.Duration
	clock   func() time.Time
}

func NewInMemorySessions(ttl time.Duration) *InMemorySessions {
	return &InMemorySessions{
		entries: make(map[uuid.UUID]memoryEntry),
		ttl:     ttl,
		clock:   time.Now,
	}
}

func (s *InMemorySessions) Put(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[run.ID] = memoryEntry{run: run, expiresAt: s.clock().Add(s.ttl)}
	return nil
}

func (s *InMemorySessions) Get(_ context.Context, id uuid.UUID) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return Run{}, ErrSessionNotFound
	}
	if s.clock().After(entry.expiresAt) {
		delete(s.entries, id)
		return Run{}, ErrSessionNotFound
	}
	return entry.run, nil
}

func (s *InMemorySessions) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}
