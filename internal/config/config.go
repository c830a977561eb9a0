// Package config reads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
	StorageMongo  = "mongo"
)

// MinTokenSecretLength is the shortest accepted signing secret, in bytes
const MinTokenSecretLength = 32

// Server is the process configuration of the gamestats server
type Server struct {
	Host string `env:"GAMESTATS_HOST"`
	Port int    `env:"GAMESTATS_PORT" envDefault:"8080"`

	Storage       string `env:"GAMESTATS_STORAGE" envDefault:"memory"`
	RedisURL      string `env:"GAMESTATS_REDIS_URL"`
	SQLitePath    string `env:"GAMESTATS_SQLITE_PATH" envDefault:"data/gamestats.db"`
	MongoURI      string `env:"GAMESTATS_MONGO_URI"`
	MongoDatabase string `env:"GAMESTATS_MONGO_DATABASE" envDefault:"gamestats"`

	TokenSecret string        `env:"GAMESTATS_TOKEN_SECRET"`
	TokenTTL    time.Duration `env:"GAMESTATS_TOKEN_TTL" envDefault:"24h"`
	BcryptCost  int           `env:"GAMESTATS_BCRYPT_COST" envDefault:"10"`

	CORSOrigins []string `env:"GAMESTATS_CORS_ORIGINS" envSeparator:","`

	RateLimitEnabled bool    `env:"GAMESTATS_RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     float64 `env:"GAMESTATS_RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst   int     `env:"GAMESTATS_RATE_LIMIT_BURST" envDefault:"10"`
	TrustProxy       bool    `env:"GAMESTATS_TRUST_PROXY"`

	LogLevel  string `env:"GAMESTATS_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"GAMESTATS_LOG_FORMAT" envDefault:"json"`
}

// Load reads an optional .env file, then the process environment, and
// validates the result
func Load(dotenvFiles ...string) (Server, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Server{}, fmt.Errorf("load dotenv: %w", err)
	}

	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom parses configuration from the given variables instead of the
// process environment
func LoadFrom(vars map[string]string) (Server, error) {
	var cfg Server
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field requirements
func (c Server) Validate() error {
	var errs []error

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("GAMESTATS_PORT %d out of range", c.Port))
	}

	switch c.Storage {
	case StorageMemory, StorageSQLite:
	case StorageRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("GAMESTATS_REDIS_URL is required when GAMESTATS_STORAGE=redis"))
		}
	case StorageMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("GAMESTATS_MONGO_URI is required when GAMESTATS_STORAGE=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("GAMESTATS_STORAGE %q must be one of memory, redis, sqlite, mongo", c.Storage))
	}
	if c.Storage == StorageSQLite && strings.TrimSpace(c.SQLitePath) == "" {
		errs = append(errs, errors.New("GAMESTATS_SQLITE_PATH is required when GAMESTATS_STORAGE=sqlite"))
	}

	if len(c.TokenSecret) < MinTokenSecretLength {
		errs = append(errs, fmt.Errorf("GAMESTATS_TOKEN_SECRET must be at least %d bytes", MinTokenSecretLength))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("GAMESTATS_TOKEN_TTL must be positive"))
	}

	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		errs = append(errs, errors.New("GAMESTATS_RATE_LIMIT_RPS and GAMESTATS_RATE_LIMIT_BURST must be positive"))
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("GAMESTATS_LOG_FORMAT %q must be json or text", c.LogFormat))
	}

	return errors.Join(errs...)
}

// NewLogger builds the process logger from LogLevel and LogFormat
func (c Server) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("GAMESTATS_LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}
