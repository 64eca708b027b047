package auth

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// User is a login account. PasswordHash is a bcrypt hash and never leaves
// the server.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// UserStore resolves usernames to accounts.
type UserStore interface {
	Lookup(ctx context.Context, username string) (User, error)
}

// MemoryStore is a UserStore backed by a map. It is seeded once at start.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryStore(users ...User) *MemoryStore {
	s := &MemoryStore{users: make(map[string]User, len(users))}
	for _, u := range users {
		s.users[u.Username] = u
	}
	return s
}

func (s *MemoryStore) Lookup(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// Seed adds u unless the username is already taken.
func (s *MemoryStore) Seed(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.Username]; !ok {
		s.users[u.Username] = u
	}
	return nil
}
