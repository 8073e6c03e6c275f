// Package auth issues and verifies bearer tokens and hashes passwords.
package auth

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// TokenService signs HS256 access tokens with a key fixed at construction.
type TokenService struct {
	key      []byte
	validity time.Duration
	now      func() time.Time
}

type Option func(*TokenService)

// WithClock replaces time.Now for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(key []byte, validity time.Duration, opts ...Option) *TokenService {
	s := &TokenService{
		key:      append([]byte(nil), key...),
		validity: validity,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Issue returns a token for userID with sub, iat and exp claims.
func (s *TokenService) Issue(userID string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.validity)),
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the user id carried by token. The signature is checked
// before expiry, so a tampered token is ErrTokenInvalid even when expired.
// A token is valid up to and including its exp instant, with no leeway.
func (s *TokenService) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrTokenInvalid, err)
	}
	if !parsed.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return "", common.ErrTokenInvalid
	}
	if s.now().After(claims.ExpiresAt.Time) {
		return "", common.ErrTokenExpired
	}
	return claims.Subject, nil
}
