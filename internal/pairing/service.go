package pairing

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"pcos-backend/internal/shared/storage/kv"
	"pcos-backend/internal/shared/telemetry"
)

var (
	// ErrNotFound indicates the pairing code is unknown or expired.
	ErrNotFound = errors.New("pairing code not found")
	// ErrForbidden indicates the requester does not own the pairing code.
	ErrForbidden = errors.New("pairing code owned by another user")
	// ErrReadingPending indicates the ticket exists but the device has not
	// staged a reading yet. Expected while the device is still capturing.
	ErrReadingPending = errors.New("reading not staged yet")
)

// Reading is a sensor payload staged by the device until the owner claims it.
type Reading struct {
	SpO2        float64   `json:"spo2"`
	Temperature float64   `json:"temperature"`
	HeartRate   int       `json:"heartRate"`
	HeightCm    float64   `json:"height"`
	WeightKg    float64   `json:"weight"`
	RecordedAt  time.Time `json:"recordedAt"`
}

type ticket struct {
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service issues short-lived pairing codes binding a user identity to a
// device interaction window, and holds staged readings until claimed.
type Service struct {
	store kv.Store
	ttl   time.Duration
}

// NewService constructs a pairing service with the given ticket TTL.
func NewService(store kv.Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{store: store, ttl: ttl}
}

// TTL returns the configured pairing window.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

func codeKey(code string) string    { return "pairing:code:" + code }
func ownerKey(owner string) string  { return "pairing:owner:" + owner }
func readingKey(code string) string { return "reading:" + code }

// IssueCode generates a 6-digit code with a fresh TTL, replacing any prior
// ticket for the owner. Collisions within the live window are retried.
func (s *Service) IssueCode(ctx context.Context, ownerID string) (string, error) {
	var code string
	for attempt := 0; ; attempt++ {
		candidate, err := randomCode()
		if err != nil {
			return "", err
		}
		_, err = s.store.Get(ctx, codeKey(candidate))
		if errors.Is(err, kv.ErrKeyNotFound) {
			code = candidate
			break
		}
		if err != nil {
			return "", err
		}
		if attempt >= 5 {
			return "", fmt.Errorf("pairing code space exhausted")
		}
	}

	// Drop the owner's previous ticket so only one code is live per user.
	if prior, err := s.store.Get(ctx, ownerKey(ownerID)); err == nil {
		if delErr := s.store.Delete(ctx, codeKey(prior), readingKey(prior)); delErr != nil {
			telemetry.Error("pairing.cleanup_failed", map[string]any{"user_id": ownerID, "error": delErr.Error()})
		}
	}

	payload, err := json.Marshal(ticket{Owner: ownerID, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", err
	}
	if err := s.store.SetTTL(ctx, codeKey(code), string(payload), s.ttl); err != nil {
		return "", err
	}
	if err := s.store.SetTTL(ctx, ownerKey(ownerID), code, s.ttl); err != nil {
		return "", err
	}
	return code, nil
}

// StageReading stores a device reading under a live pairing code with its
// own fresh TTL. Repeat calls overwrite the staged reading.
func (s *Service) StageReading(ctx context.Context, code string, reading Reading) error {
	if _, err := s.store.Get(ctx, codeKey(code)); err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	if reading.RecordedAt.IsZero() {
		reading.RecordedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(reading)
	if err != nil {
		return err
	}
	return s.store.SetTTL(ctx, readingKey(code), string(payload), s.ttl)
}

// Resolve returns the staged reading for code if requesterID owns the
// ticket. ErrReadingPending means the device has not reported yet.
func (s *Service) Resolve(ctx context.Context, code, requesterID string) (Reading, error) {
	rawTicket, err := s.store.Get(ctx, codeKey(code))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return Reading{}, ErrNotFound
		}
		return Reading{}, err
	}
	var t ticket
	if err := json.Unmarshal([]byte(rawTicket), &t); err != nil {
		return Reading{}, fmt.Errorf("corrupt pairing ticket: %w", err)
	}
	if t.Owner != requesterID {
		return Reading{}, ErrForbidden
	}

	rawReading, err := s.store.Get(ctx, readingKey(code))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return Reading{}, ErrReadingPending
		}
		return Reading{}, err
	}
	var reading Reading
	if err := json.Unmarshal([]byte(rawReading), &reading); err != nil {
		return Reading{}, fmt.Errorf("corrupt staged reading: %w", err)
	}
	return reading, nil
}

// Consume deletes the ticket and staged reading for code. Best-effort:
// both keys carry a TTL, so a failed delete only delays expiry.
func (s *Service) Consume(ctx context.Context, code, ownerID string) {
	if err := s.store.Delete(ctx, codeKey(code), readingKey(code), ownerKey(ownerID)); err != nil {
		telemetry.Error("pairing.consume_failed", map[string]any{
			"user_id": ownerID,
			"error":   err.Error(),
		})
	}
}

func randomCode() (string, error) {
	// 6 decimal digits, never leading-zero-stripped.
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
