package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGRepo is a Postgres-backed implementation of Repo.
type PGRepo struct {
	db *sql.DB
}

func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{db: db}
}

func (r *PGRepo) Create(ctx context.Context, u User) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (email, name, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (email) DO NOTHING
	`, u.Email, u.Name, u.Role, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert user rows affected: %w", err)
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT email, name, role, password_hash, created_at
		FROM users
		WHERE email = $1
	`, email)

	var u User
	err := row.Scan(&u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}
