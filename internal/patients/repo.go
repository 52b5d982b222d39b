package patients

import (
	"context"
	"errors"
)

// ErrNotFound indicates no profile exists for the given email.
var ErrNotFound = errors.New("patient profile not found")

// Repo persists patient profiles.
type Repo interface {
	// Upsert inserts or replaces the profile for its email.
	Upsert(ctx context.Context, p Profile) error
	// GetByEmail returns the profile for the given email, or ErrNotFound.
	GetByEmail(ctx context.Context, email string) (Profile, error)
}
