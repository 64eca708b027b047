package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore reads accounts from the users table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Lookup(ctx context.Context, username string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash FROM users WHERE username = $1`,
		username,
	).Scan(&u.Username, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("lookup user %q: %w", username, err)
	}
	return u, nil
}

// Seed inserts u and leaves an existing row with the same username alone.
func (s *PostgresStore) Seed(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES ($1, $2)
		 ON CONFLICT (username) DO NOTHING`,
		u.Username, u.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("seed user %q: %w", u.Username, err)
	}
	return nil
}
