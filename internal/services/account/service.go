package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gamestats/internal/dependencies/clock"
	"github.com/mcoot/gamestats/internal/dependencies/ids"
	"github.com/mcoot/gamestats/internal/model"
	"github.com/mcoot/gamestats/internal/services/token"
	"github.com/mcoot/gamestats/internal/storage"
)

// Secret length policy. bcrypt ignores input past 72 bytes.
const (
	MinSecretLength = 8
	MaxSecretBytes  = 72
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
)

// Session is the result of a successful registration or login
type Session struct {
	Player *model.Player
	Token  token.Token
}

// Config holds configuration for the account service
type Config struct {
	BcryptCost int
	TokenTTL   time.Duration
}

// DefaultConfig returns default account configuration
func DefaultConfig() Config {
	return Config{
		BcryptCost: bcrypt.DefaultCost,
	}
}

// Service handles registration, login and identity lookup
type Service struct {
	storage storage.Storage
	tokens  *token.Service
	clock   clock.Clock
	ids     ids.Generator
	logger  *slog.Logger

	cost     int
	tokenTTL time.Duration

	// compared against when the identity is unknown so both login
	// failure paths pay for one bcrypt comparison
	dummyHash []byte
}

// New creates a new account Service
func New(
	storage storage.Storage,
	tokens *token.Service,
	clock clock.Clock,
	ids ids.Generator,
	logger *slog.Logger,
	cfg Config,
) (*Service, error) {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultConfig().BcryptCost
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cfg.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-secret"), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}

	return &Service{
		storage:   storage,
		tokens:    tokens,
		clock:     clock,
		ids:       ids,
		logger:    logger,
		cost:      cfg.BcryptCost,
		tokenTTL:  cfg.TokenTTL,
		dummyHash: dummy,
	}, nil
}

// Register creates a player with a hashed secret and returns a session
func (s *Service) Register(ctx context.Context, name, email, secret string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = model.NormalizeEmail(email)

	if err := validateRegistration(name, email, secret); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash secret: %w", err)
	}

	player := &model.Player{
		ID:             model.PlayerID(s.ids.NewID()),
		Name:           name,
		Email:          email,
		CredentialHash: string(hash),
		CreatedAt:      s.now(),
	}

	if err := s.storage.CreatePlayer(ctx, player); err != nil {
		if errors.Is(err, model.ErrDuplicateName) || errors.Is(err, model.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("create player: %w", err)
	}

	session, err := s.newSession(player)
	if err != nil {
		return nil, err
	}

	s.logger.Info("player registered",
		slog.String("player_id", string(player.ID)),
		slog.Bool("has_email", email != ""),
	)
	return session, nil
}

// Login authenticates by name, or by email when the identifier contains
// "@". Unknown identities and wrong secrets both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, identifier, secret string) (*Session, error) {
	identifier = strings.TrimSpace(identifier)

	player, err := s.lookupIdentity(ctx, identifier)
	if err != nil {
		if !errors.Is(err, model.ErrPlayerNotFound) {
			return nil, fmt.Errorf("lookup identity: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(secret))
		s.logger.Info("login failed", slog.String("reason", "invalid_credentials"))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(player.CredentialHash), []byte(secret)); err != nil {
		s.logger.Info("login failed", slog.String("reason", "invalid_credentials"))
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.storage.RecordLogin(ctx, player.ID, now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	player.LastLoginAt = &now

	session, err := s.newSession(player)
	if err != nil {
		return nil, err
	}

	s.logger.Info("player logged in", slog.String("player_id", string(player.ID)))
	return session, nil
}

// CurrentIdentity resolves a bearer token to the calling player
func (s *Service) CurrentIdentity(ctx context.Context, bearer string) (*model.Player, error) {
	id, err := s.tokens.Verify(bearer)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	player, err := s.storage.GetPlayer(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("get player: %w", err)
	}
	return player, nil
}

// GetPlayer returns a player by ID
func (s *Service) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return s.storage.GetPlayer(ctx, id)
}

func (s *Service) lookupIdentity(ctx context.Context, identifier string) (*model.Player, error) {
	if identifier == "" {
		return nil, model.ErrPlayerNotFound
	}
	if strings.Contains(identifier, "@") {
		return s.storage.GetPlayerByEmail(ctx, identifier)
	}
	return s.storage.GetPlayerByName(ctx, identifier)
}

// now returns the clock time at the millisecond precision every backend
// persists, so a returned record matches what later reads return
func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}

func (s *Service) newSession(player *model.Player) (*Session, error) {
	tok, err := s.tokens.Issue(player.ID, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Player: player, Token: tok}, nil
}

func validateRegistration(name, email, secret string) error {
	if n := utf8.RuneCountInString(name); n < model.MinNameLength || n > model.MaxNameLength {
		return fmt.Errorf("%w: name must be %d to %d characters", model.ErrValidation, model.MinNameLength, model.MaxNameLength)
	}
	if strings.ContainsFunc(name, unicode.IsControl) {
		return fmt.Errorf("%w: name must not contain control characters", model.ErrValidation)
	}
	if strings.Contains(name, "@") {
		return fmt.Errorf("%w: name must not contain '@'", model.ErrValidation)
	}
	if utf8.RuneCountInString(secret) < MinSecretLength {
		return fmt.Errorf("%w: secret must be at least %d characters", model.ErrValidation, MinSecretLength)
	}
	if len(secret) > MaxSecretBytes {
		return fmt.Errorf("%w: secret must be at most %d bytes", model.ErrValidation, MaxSecretBytes)
	}
	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Address != email {
			return fmt.Errorf("%w: email is malformed", model.ErrValidation)
		}
	}
	return nil
}
