package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the session lifetime when none is configured.
const DefaultTokenTTL = 30 * time.Minute

// Claims are the signed contents of a session token.
type Claims struct {
	jwt.RegisteredClaims
}

// Username returns the authenticated subject.
func (c *Claims) Username() string {
	return c.Subject
}

// TokenIssuer signs and verifies session tokens with one HMAC method.
type TokenIssuer struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer validates the algorithm name and returns an issuer.
func NewTokenIssuer(secret []byte, algorithm string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is empty")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported token algorithm %q", algorithm)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: secret, method: method, ttl: ttl, now: time.Now}, nil
}

// TTL is the lifetime given to new tokens.
func (ti *TokenIssuer) TTL() time.Duration {
	return ti.ttl
}

// Create signs a token for subject and returns it with its expiry.
func (ti *TokenIssuer) Create(subject string) (string, time.Time, error) {
	now := ti.now()
	exp := now.Add(ti.ttl)
	token := jwt.NewWithClaims(ti.method, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm and expiry. Every failure is reported
// as ErrInvalidToken wrapping the parser's reason.
func (ti *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return ti.secret, nil },
		jwt.WithValidMethods([]string{ti.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
