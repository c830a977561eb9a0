package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcoot/gamestats/internal/dependencies/clock"
	"github.com/mcoot/gamestats/internal/dependencies/ids"
	"github.com/mcoot/gamestats/internal/model"
)

// Issuer is the iss claim on every token this service signs
const Issuer = "gamestats"

// MinKeyLength is the shortest accepted HS256 signing key, in bytes
const MinKeyLength = 32

// Errors
var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrKeyTooShort  = fmt.Errorf("signing key must be at least %d bytes", MinKeyLength)
)

// Token is a signed bearer credential
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Config holds configuration for the token service
type Config struct {
	Key        []byte
	DefaultTTL time.Duration
}

// DefaultTTL is the token lifetime used when none is configured
const DefaultTTL = 24 * time.Hour

// Service issues and verifies HS256 session tokens. It holds the only
// copy of the signing key.
type Service struct {
	key        []byte
	defaultTTL time.Duration
	clock      clock.Clock
	ids        ids.Generator
	parser     *jwt.Parser
}

// New creates a token Service
func New(cfg Config, clk clock.Clock, idGen ids.Generator) (*Service, error) {
	if len(cfg.Key) < MinKeyLength {
		return nil, ErrKeyTooShort
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}

	key := make([]byte, len(cfg.Key))
	copy(key, cfg.Key)

	return &Service{
		key:        key,
		defaultTTL: cfg.DefaultTTL,
		clock:      clk,
		ids:        idGen,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(clk.Now),
		),
	}, nil
}

// DefaultTTL returns the lifetime applied when Issue is given ttl <= 0
func (s *Service) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Issue signs a token for playerID that expires after ttl
func (s *Service) Issue(playerID model.PlayerID, ttl time.Duration) (Token, error) {
	if playerID == "" {
		return Token{}, fmt.Errorf("issue token: empty player id")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	now := s.clock.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   string(playerID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        s.ids.NewID(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify checks signature, issuer and expiry and returns the subject.
// Every failure is reported as ErrInvalidToken.
func (s *Service) Verify(value string) (model.PlayerID, error) {
	if value == "" {
		return "", ErrInvalidToken
	}

	var claims jwt.RegisteredClaims
	parsed, err := s.parser.ParseWithClaims(value, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return model.PlayerID(claims.Subject), nil
}
