package users

import "context"

// Repo persists accounts.
type Repo interface {
	// Create inserts a new account. Returns ErrExists when the email is
	// already registered.
	Create(ctx context.Context, u User) error
	// GetByEmail returns the account for the given email, or ErrNotFound.
	GetByEmail(ctx context.Context, email string) (User, error)
}
