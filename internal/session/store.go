// Package session provides storage for token revocations and per-user
// preferences, in memory or in Redis.
package session

import (
	"context"
	"sync"
	"time"
)

// Store is the persistence the portal needs across client sessions.
type Store interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	SetPreference(ctx context.Context, userID, key, value string) error
	// Preference returns ok=false when nothing was stored for key.
	Preference(ctx context.Context, userID, key string) (value string, ok bool, err error)
	Ping(ctx context.Context) error
	Close() error
}

// MemoryStore is the default Store when no Redis URL is configured.
type MemoryStore struct {
	mu          sync.Mutex
	revoked     map[string]time.Time
	preferences map[string]string
	now         func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		revoked:     make(map[string]time.Time),
		preferences: make(map[string]string),
		now:         now,
	}
}

func (s *MemoryStore) RevokeToken(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.revoked[jti] = expiresAt
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.revoked[jti]
	if !ok {
		return false, nil
	}
	if !s.now().Before(expiresAt) {
		delete(s.revoked, jti)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) SetPreference(_ context.Context, userID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[preferenceKey(userID, key)] = value
	return nil
}

func (s *MemoryStore) Preference(_ context.Context, userID, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.preferences[preferenceKey(userID, key)]
	return value, ok, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// sweepLocked drops revocations whose token has expired anyway.
func (s *MemoryStore) sweepLocked() {
	now := s.now()
	for jti, expiresAt := range s.revoked {
		if !now.Before(expiresAt) {
			delete(s.revoked, jti)
		}
	}
}

func preferenceKey(userID, key string) string {
	return userID + ":" + key
}
