// Package auth validates the bearer tokens issued by the identity provider
// and turns them into domain actors.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/leorit/backend/internal/domain/shared"
	"github.com/leorit/backend/internal/infrastructure/config"
)

// Token errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrInvalidClaims    = errors.New("invalid token claims")
)

// Claims are the JWT claims the service relies on: sub is the actor id and
// role is the marketplace role the actor acts under
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Actor converts validated claims into a domain actor
func (c *Claims) Actor() (shared.Actor, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil || id == uuid.Nil {
		return shared.Actor{}, ErrInvalidClaims
	}
	role := shared.Role(c.Role)
	if !role.IsValid() {
		return shared.Actor{}, ErrInvalidClaims
	}
	return shared.NewActor(id, role), nil
}

// JWTService validates HS256 tokens and mints development tokens
type JWTService struct {
	secret []byte
	issuer string
	devTTL time.Duration
	now    func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	ttl := cfg.DevTokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		devTTL: ttl,
		now:    time.Now,
	}
}

// Validate parses tokenString and returns its claims. The issuer is checked
// when one is configured.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, ErrTokenNotYetValid
	default:
		return nil, ErrInvalidToken
	}

	if _, err := claims.Actor(); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateActor validates tokenString and returns the actor it names
func (s *JWTService) ValidateActor(tokenString string) (shared.Actor, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return shared.Actor{}, err
	}
	return claims.Actor()
}

// Issue mints a token for actor. Production tokens come from the identity
// provider; this backs the server's -issue-token flag and tests.
func (s *JWTService) Issue(actor shared.Actor, ttl time.Duration) (string, time.Time, error) {
	if !actor.Role.IsValid() || actor.ID == uuid.Nil {
		return "", time.Time{}, ErrInvalidClaims
	}
	if ttl <= 0 {
		ttl = s.devTTL
	}

	now := s.now()
	expires := now.Add(ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role: string(actor.Role),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}
