package store

import (
	"context"
	"sync"
	"time"

	"keymint/internal/apikey/models"
	"keymint/internal/sentinel"
	id "keymint/pkg/domain"
)

// InMemory stores API key records in memory for tests and single-node use.
// Maintains a secondary index by lookup prefix so candidate lookups cost
// O(records sharing the prefix), not O(total records).
type InMemory struct {
	mu       sync.RWMutex
	keys     map[id.APIKeyID]*models.APIKey
	byPrefix map[string]map[id.APIKeyID]struct{}
}

// NewInMemory creates an in-memory API key store with initialized indexes.
func NewInMemory() *InMemory {
	return &InMemory{
		keys:     make(map[id.APIKeyID]*models.APIKey),
		byPrefix: make(map[string]map[id.APIKeyID]struct{}),
	}
}

// Create persists a new record and updates the prefix index.
// Returns sentinel.ErrAlreadyUsed if the ID already exists.
func (s *InMemory) Create(_ context.Context, k *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keys[k.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	stored := k.Clone()
	s.keys[stored.ID] = stored
	ids, ok := s.byPrefix[stored.LookupPrefix]
	if !ok {
		ids = make(map[id.APIKeyID]struct{})
		s.byPrefix[stored.LookupPrefix] = ids
	}
	ids[stored.ID] = struct{}{}
	return nil
}

// FindByID retrieves a record by its ID.
// Returns sentinel.ErrNotFound if the record does not exist.
func (s *InMemory) FindByID(_ context.Context, keyID id.APIKeyID) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if k, ok := s.keys[keyID]; ok {
		return k.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// FindByPrefix returns every record whose lookup prefix equals prefix.
// Multiple records may share a prefix; all of them are returned, in no
// particular order. An empty result is not an error.
func (s *InMemory) FindByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byPrefix[prefix]
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]*models.APIKey, 0, len(ids))
	for keyID := range ids {
		out = append(out, s.keys[keyID].Clone())
	}
	return out, nil
}

// MarkRevoked sets the revocation timestamp if not already set. Revocation is
// monotonic: an existing timestamp is never overwritten.
// Returns sentinel.ErrNotFound if the record does not exist.
func (s *InMemory) MarkRevoked(_ context.Context, keyID id.APIKeyID, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[keyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if k.RevokedAt == nil {
		k.RevokedAt = &t
	}
	return nil
}

// MarkVerified records the time of a successful verification.
// Returns sentinel.ErrNotFound if the record does not exist.
func (s *InMemory) MarkVerified(_ context.Context, keyID id.APIKeyID, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[keyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	k.LastVerifiedAt = &t
	return nil
}
