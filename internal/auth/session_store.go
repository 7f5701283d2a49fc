package auth

import (
	"context"
	"fmt"
	"time"

	"scholarsite/internal/cache"
)

const revokedSessionKeyPrefix = "revoked_session:"

// SessionStoreInterface tracks sessions ended by sign-out before their expiry.
type SessionStoreInterface interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// SessionStore keeps the revocation list in Redis.
type SessionStore struct {
	cache *cache.Client
}

// Ensure SessionStore implements SessionStoreInterface
var _ SessionStoreInterface = (*SessionStore)(nil)

// NewSessionStore creates a new session store.
func NewSessionStore(cache *cache.Client) *SessionStore {
	return &SessionStore{cache: cache}
}

// Revoke marks a session as signed out for ttl, which should be the session's
// remaining lifetime. A non-positive ttl means the session is already expired.
func (s *SessionStore) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.cache.SetStrict(ctx, revokedSessionKeyPrefix+sessionID, []byte("1"), ttl); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// IsRevoked checks the revocation list. Redis errors are returned so the
// caller can refuse the session.
func (s *SessionStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	revoked, err := s.cache.Exists(ctx, revokedSessionKeyPrefix+sessionID)
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return revoked, nil
}
