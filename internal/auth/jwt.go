// Package auth provides JWT issuing/verification, password hashing, the
// GitHub OAuth provider, and the authentication middleware.
//
// AUTHENTICATION FLOW:
//  1. A user registers (email/password) or completes GitHub OAuth.
//  2. The server issues a signed JWT whose "sub" claim is the user ID.
//  3. The client sends it on every API call: Authorization: Bearer <token>.
//  4. RequireAuth verifies the token, loads the user, and puts the record in
//     the request context.
//
// The token is stateless — the server keeps no session table. Everything
// needed (user ID, expiry) lives inside the signed token, and the HMAC
// signature means nobody can alter it without the secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "notecode"

// TokenService handles JWT creation and validation. It holds the HMAC
// secret used for both signing and verifying, plus the default token TTL.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The secret should be at least
// 32 bytes of random data in production (openssl rand -hex 32); anything
// under 16 characters is rejected outright.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token TTL must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// claims embeds jwt.RegisteredClaims; we use the standard "sub" claim to
// carry the internal user ID.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a JWT access token for the given userID,
// expiring after the service's configured TTL.
//
// Signing algorithm: HS256 (HMAC-SHA256) — symmetric, fast, and fine for a
// single-server deployment where the same process signs and verifies.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Used by tests (to mint already-expired tokens) and for longer-lived tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the userID stored
// in the "sub" claim.
//
// The library checks the signature, expiry, and issuer for us. Passing
// jwt.WithValidMethods pins the algorithm to HS256 — without it an attacker
// could attempt an algorithm-confusion attack (e.g. a token signed with
// "none").
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
