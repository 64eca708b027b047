package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// dummyPasswordHash is compared against when the username is unknown so that
// unknown users and wrong passwords take the same time.
func dummyPasswordHash() string {
	dummyHashOnce.Do(func() {
		dummyHash, _ = HashPassword("not-a-real-password")
	})
	return dummyHash
}

// Service is the credential service: password login and token verification.
type Service struct {
	users   UserStore
	tokens  *TokenIssuer
	lockout *Lockout
	verify  func(password, hash string) bool
}

// NewService wires a user store and a token issuer. lockout may be nil.
func NewService(users UserStore, tokens *TokenIssuer, lockout *Lockout) *Service {
	return &Service{users: users, tokens: tokens, lockout: lockout, verify: VerifyPassword}
}

// Login checks the password and returns a signed token and its expiry. Any
// authentication failure, including a locked account, is
// ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	// Locked and unknown accounts still pay for one bcrypt compare.
	if s.lockout != nil && s.lockout.IsLocked(username) {
		s.verify(password, dummyPasswordHash())
		return "", time.Time{}, ErrInvalidCredentials
	}

	user, err := s.users.Lookup(ctx, username)
	switch {
	case errors.Is(err, ErrUserNotFound):
		s.verify(password, dummyPasswordHash())
		s.fail(username)
		return "", time.Time{}, ErrInvalidCredentials
	case err != nil:
		return "", time.Time{}, err
	}

	if !s.verify(password, user.PasswordHash) {
		s.fail(username)
		return "", time.Time{}, ErrInvalidCredentials
	}

	if s.lockout != nil {
		s.lockout.RecordSuccess(username)
	}
	return s.tokens.Create(user.Username)
}

// Verify validates a session token.
func (s *Service) Verify(token string) (*Claims, error) {
	return s.tokens.Verify(token)
}

// TokenTTL is the lifetime of tokens returned by Login.
func (s *Service) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

func (s *Service) fail(username string) {
	if s.lockout != nil {
		s.lockout.RecordFailure(username)
	}
}
