package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"pcos-backend/internal/shared/storage/kv"
	"pcos-backend/internal/shared/telemetry"
)

var (
	// ErrSessionExpired indicates the session key is gone (expired or invalid).
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionConflict indicates another active session exists for the owner.
	ErrSessionConflict = errors.New("active session exists for another device")
)

// Session is an active login session.
type Session struct {
	ID        string
	OwnerID   string
	ExpiresIn time.Duration
	// Restored is true when an existing session was returned for an
	// idempotent replay instead of a new one being minted.
	Restored bool
}

// Service enforces the single-active-session invariant on top of the
// ephemeral store: forward session:<id> -> owner and reverse
// user:<owner> -> id mappings, both under the same TTL.
type Service struct {
	store kv.Store
	ttl   time.Duration
}

// NewService constructs a session service with the given TTL.
func NewService(store kv.Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{store: store, ttl: ttl}
}

func sessionKey(id string) string  { return "session:" + id }
func ownerKey(owner string) string { return "user:" + owner }

// Create mints a session for owner. If an active session already exists it
// is returned unchanged only when presentedID matches it (same-session
// replay); any other caller is rejected with ErrSessionConflict until the
// active session expires or is invalidated. The owner key is claimed with
// SetNX so two concurrent sign-ins cannot both mint a session.
func (s *Service) Create(ctx context.Context, ownerID, presentedID string) (Session, error) {
	id := uuid.NewString()
	claimed, err := s.store.SetNX(ctx, ownerKey(ownerID), id, s.ttl)
	if err != nil {
		return Session{}, err
	}

	if !claimed {
		existing, err := s.store.Get(ctx, ownerKey(ownerID))
		if err != nil {
			if errors.Is(err, kv.ErrKeyNotFound) {
				// The active session expired between the claim and the
				// read; the client's next sign-in attempt will succeed.
				return Session{}, ErrSessionConflict
			}
			return Session{}, err
		}
		if presentedID != "" && presentedID == existing {
			return Session{ID: existing, OwnerID: ownerID, ExpiresIn: s.ttl, Restored: true}, nil
		}
		return Session{}, ErrSessionConflict
	}

	if err := s.store.SetTTL(ctx, sessionKey(id), ownerID, s.ttl); err != nil {
		return Session{}, err
	}
	telemetry.Info("session.created", map[string]any{"user_id": ownerID})
	return Session{ID: id, OwnerID: ownerID, ExpiresIn: s.ttl}, nil
}

// Renew extends the TTL on both mappings without changing the owner.
func (s *Service) Renew(ctx context.Context, sessionID string) error {
	owner, err := s.store.Get(ctx, sessionKey(sessionID))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return ErrSessionExpired
		}
		return err
	}
	if err := s.store.Expire(ctx, sessionKey(sessionID), s.ttl); err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return ErrSessionExpired
		}
		return err
	}
	if err := s.store.Expire(ctx, ownerKey(owner), s.ttl); err != nil && !errors.Is(err, kv.ErrKeyNotFound) {
		return err
	}
	return nil
}

// Invalidate removes both mappings if present. Idempotent.
func (s *Service) Invalidate(ctx context.Context, sessionID string) error {
	owner, err := s.store.Get(ctx, sessionKey(sessionID))
	if err != nil && !errors.Is(err, kv.ErrKeyNotFound) {
		return err
	}
	if err == nil {
		if delErr := s.store.Delete(ctx, ownerKey(owner)); delErr != nil {
			return delErr
		}
	}
	return s.store.Delete(ctx, sessionKey(sessionID))
}

// Owner resolves a session ID to its owner identity; used by the auth
// middleware on every request.
func (s *Service) Owner(ctx context.Context, sessionID string) (string, error) {
	owner, err := s.store.Get(ctx, sessionKey(sessionID))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return "", ErrSessionExpired
		}
		return "", err
	}
	return owner, nil
}

// TTL returns the configured session lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}
