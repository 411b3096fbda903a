// Package store holds the credential store collaborators consumed by the
// security layer through the security.PrincipalStore interface.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/aka0kuro/hostberry-sub000/internal/models"
)

// MemoryStore is an in-memory principal store. The appliance keeps its
// handful of accounts resident; durable storage is out of scope here.
type MemoryStore struct {
	mu         sync.RWMutex
	principals map[string]*models.Principal
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		principals: make(map[string]*models.Principal),
	}
}

// GetByUsername returns a copy of the principal, or models.ErrNotFound.
func (s *MemoryStore) GetByUsername(ctx context.Context, username string) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.principals[username]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

// Put inserts or replaces a principal record.
func (s *MemoryStore) Put(p *models.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *p
	s.principals[p.Username] = &copied
}

// TouchLastLogin stamps the principal's last successful login.
func (s *MemoryStore) TouchLastLogin(ctx context.Context, username string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.principals[username]
	if !ok {
		return models.ErrNotFound
	}
	p.LastLogin = &at
	return nil
}
