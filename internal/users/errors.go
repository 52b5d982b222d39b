package users

import "errors"

var (
	// ErrNotFound indicates no account exists for the given email.
	ErrNotFound = errors.New("user not found")
	// ErrExists indicates an account with the given email already exists.
	ErrExists = errors.New("user already exists")
	// ErrInvalidCredentials indicates the email/password pair did not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrValidation indicates a malformed signup or signin request.
	ErrValidation = errors.New("validation error")
)
