package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of Store
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*Identity // username -> Identity
}

// NewMemoryStore creates a new in-memory identity store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*Identity),
	}
}

func (s *MemoryStore) FindByUsername(ctx context.Context, username string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, exists := s.users[username]
	if !exists {
		return nil, ErrNotFound
	}

	return identity.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[identity.Name]; exists {
		return ErrAlreadyExists
	}

	now := time.Now()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now

	s.users[identity.Name] = identity.Clone()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[identity.Name]; !exists {
		return ErrNotFound
	}

	identity.UpdatedAt = time.Now()
	s.users[identity.Name] = identity.Clone()
	return nil
}
