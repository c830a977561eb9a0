package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mcoot/gamestats/internal/config"
	"github.com/mcoot/gamestats/internal/dependencies/clock"
	"github.com/mcoot/gamestats/internal/dependencies/ids"
	"github.com/mcoot/gamestats/internal/metrics"
	"github.com/mcoot/gamestats/internal/services/account"
	"github.com/mcoot/gamestats/internal/services/stats"
	"github.com/mcoot/gamestats/internal/services/token"
	"github.com/mcoot/gamestats/internal/storage"
	"github.com/mcoot/gamestats/internal/storage/memory"
	mongostorage "github.com/mcoot/gamestats/internal/storage/mongo"
	redisstorage "github.com/mcoot/gamestats/internal/storage/redis"
	"github.com/mcoot/gamestats/internal/storage/sqlite"
)

// Storage type constants
const (
	StorageTypeMemory = config.StorageMemory
	StorageTypeRedis  = config.StorageRedis
	StorageTypeSQLite = config.StorageSQLite
	StorageTypeMongo  = config.StorageMongo
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock clock.Clock
	IDs   ids.Generator

	// Observability
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Services
	TokenService   *token.Service
	AccountService *account.Service
	StatsService   *stats.Service
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// MongoConfig holds MongoDB settings (required if StorageType is "mongo")
	MongoConfig *mongostorage.Config

	// TokenKey is the HS256 signing key, at least 32 bytes
	TokenKey []byte
	// TokenTTL is the session token lifetime (optional)
	TokenTTL time.Duration
	// BcryptCost is the secret hashing cost (optional)
	BcryptCost int
}

// FromServerConfig maps process configuration onto a factory Config
func FromServerConfig(cfg config.Server, logger *slog.Logger) Config {
	out := Config{
		Logger:      logger,
		StorageType: cfg.Storage,
		SQLitePath:  cfg.SQLitePath,
		TokenKey:    []byte(cfg.TokenSecret),
		TokenTTL:    cfg.TokenTTL,
		BcryptCost:  cfg.BcryptCost,
	}
	switch cfg.Storage {
	case StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		out.RedisConfig = &redisCfg
	case StorageTypeMongo:
		mongoCfg := mongostorage.DefaultConfig()
		mongoCfg.URI = cfg.MongoURI
		mongoCfg.Database = cfg.MongoDatabase
		out.MongoConfig = &mongoCfg
	}
	return out
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app, err := newWithDependencies(store, clock.New(), ids.New(), cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Info("application wired", slog.String("storage", storageName(cfg.StorageType)))
	return app, nil
}

// Close releases the storage backend
func (a *App) Close() error {
	return a.Storage.Close()
}

func storageName(storageType string) string {
	if storageType == "" {
		return StorageTypeMemory
	}
	return storageType
}

func openStorage(ctx context.Context, cfg Config) (storage.Storage, error) {
	switch storageName(cfg.StorageType) {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		return sqlite.Open(cfg.SQLitePath)
	case StorageTypeMongo:
		if cfg.MongoConfig == nil {
			return nil, errors.New("MongoConfig required when StorageType is mongo")
		}
		return mongostorage.New(ctx, *cfg.MongoConfig)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be memory, redis, sqlite or mongo", cfg.StorageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, idGen ids.Generator, cfg Config, logger *slog.Logger) (*App, error) {
	tokenService, err := token.New(token.Config{Key: cfg.TokenKey, DefaultTTL: cfg.TokenTTL}, clk, idGen)
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	accountService, err := account.New(store, tokenService, clk, idGen, logger, account.Config{
		BcryptCost: cfg.BcryptCost,
		TokenTTL:   cfg.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("account service: %w", err)
	}

	m := metrics.New()
	statsService := stats.New(store, m, logger)

	return &App{
		Storage:        store,
		Clock:          clk,
		IDs:            idGen,
		Logger:         logger,
		Metrics:        m,
		TokenService:   tokenService,
		AccountService: accountService,
		StatsService:   statsService,
	}, nil
}
