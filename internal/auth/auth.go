// Package auth issues and verifies the bearer tokens that guard the HTTP API.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultIssuer is used when no issuer is configured.
const DefaultIssuer = "shortener"

// Claims are the verified contents of a token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// TokenService signs and verifies API tokens.
type TokenService interface {
	Sign(subject string, ttl time.Duration) (string, error)
	Verify(token string) (Claims, error)
}

type hs256Service struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewHS256 creates a TokenService using HMAC-SHA256 with secret.
// An empty issuer means DefaultIssuer.
func NewHS256(secret, issuer string) (TokenService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &hs256Service{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}, nil
}

func (h *hs256Service) Sign(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("empty subject")
	}
	if ttl <= 0 {
		return "", errors.New("jwt ttl must be > 0")
	}
	now := h.now()

	claims := jwt.RegisteredClaims{
		Issuer:    h.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(h.secret)
}

func (h *hs256Service) Verify(tokenString string) (Claims, error) {
	var parsed jwt.RegisteredClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(h.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(h.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &parsed, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected jwt signing method")
		}
		return h.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}

	c := Claims{Subject: parsed.Subject}
	if parsed.ExpiresAt != nil {
		c.ExpiresAt = parsed.ExpiresAt.Time
	}
	return c, nil
}
