package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Service handles account registration and credential checks.
type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// SignUp registers a new account. The password is stored as a bcrypt hash.
func (s *Service) SignUp(ctx context.Context, name, email, password, role string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, fmt.Errorf("users service not configured")
	}

	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	role = strings.TrimSpace(role)

	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrValidation)
	}
	if len(password) < 8 {
		return User{}, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	if role != RolePatient && role != RoleDoctor {
		return User{}, fmt.Errorf("%w: role must be patient or doctor", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{Email: email, Name: name, Role: role, PasswordHash: string(hash)}
	if err := s.Repo.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Authenticate checks the email/password pair and returns the account.
// A missing account and a wrong password both map to ErrInvalidCredentials
// so the response does not reveal which one failed.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, fmt.Errorf("users service not configured")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.Repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Get returns the account for the given email.
func (s *Service) Get(ctx context.Context, email string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, fmt.Errorf("users service not configured")
	}
	return s.Repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}
