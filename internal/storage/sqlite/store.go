package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/mcoot/gamestats/internal/model"
	"github.com/mcoot/gamestats/internal/storage"
	"github.com/mcoot/gamestats/internal/storage/sqlite/migrations"
)

const playerColumns = `id, name, email, credential, wins, losses, ties, total_games, created_at, last_login_at`

// One statement per counter column. The column is never taken from input.
var incrementQueries = map[model.Outcome]string{
	model.OutcomeWin:  `UPDATE players SET wins = wins + 1, total_games = total_games + 1 WHERE id = ?`,
	model.OutcomeLoss: `UPDATE players SET losses = losses + 1, total_games = total_games + 1 WHERE id = ?`,
	model.OutcomeTie:  `UPDATE players SET ties = ties + 1, total_games = total_games + 1 WHERE id = ?`,
}

// Store is a SQLite-backed implementation of the storage interface
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies
// the embedded migrations
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	// Immediate transactions take the write lock up front, so concurrent
	// increments queue on busy_timeout instead of failing on lock upgrade.
	dsn := filepath.ToSlash(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ensure Store implements the interface
var _ storage.Storage = (*Store)(nil)

func (s *Store) CreatePlayer(ctx context.Context, player *model.Player) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO players (id, name, name_key, email, credential, wins, losses, ties, total_games, created_at, last_login_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(player.ID),
		player.Name,
		model.NameKey(player.Name),
		nullableString(model.NormalizeEmail(player.Email)),
		player.CredentialHash,
		player.Wins,
		player.Losses,
		player.Ties,
		player.TotalGames,
		toMillis(player.CreatedAt),
		nullableMillis(player.LastLoginAt),
	)
	if err != nil {
		if conflict := uniqueConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("create player: %w", err)
	}
	return nil
}

func (s *Store) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return scanPlayer(s.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = ?`, string(id)))
}

func (s *Store) GetPlayerByName(ctx context.Context, name string) (*model.Player, error) {
	return scanPlayer(s.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE name_key = ?`, model.NameKey(name)))
}

func (s *Store) GetPlayerByEmail(ctx context.Context, email string) (*model.Player, error) {
	return scanPlayer(s.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE email = ?`, model.NormalizeEmail(email)))
}

func (s *Store) RecordLogin(ctx context.Context, id model.PlayerID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE players SET last_login_at = ? WHERE id = ?`, toMillis(at), string(id))
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	if n == 0 {
		return model.ErrPlayerNotFound
	}
	return nil
}

func (s *Store) IncrementOutcome(ctx context.Context, id model.PlayerID, outcome model.Outcome) (*model.Player, error) {
	query, ok := incrementQueries[outcome]
	if !ok {
		return nil, model.ErrInvalidOutcome
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin increment: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, query, string(id))
	if err != nil {
		return nil, fmt.Errorf("increment outcome: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("increment outcome: %w", err)
	}
	if n == 0 {
		return nil, model.ErrPlayerNotFound
	}

	player, err := scanPlayer(tx.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = ?`, string(id)))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit increment: %w", err)
	}
	return player, nil
}

func (s *Store) ListRankedCandidates(ctx context.Context) ([]*model.Player, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE total_games > 0`)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	players := make([]*model.Player, 0)
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return players, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*model.Player, error) {
	var (
		p           model.Player
		id          string
		email       sql.NullString
		createdAt   int64
		lastLoginAt sql.NullInt64
	)
	err := row.Scan(&id, &p.Name, &email, &p.CredentialHash,
		&p.Wins, &p.Losses, &p.Ties, &p.TotalGames, &createdAt, &lastLoginAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("scan player: %w", err)
	}

	p.ID = model.PlayerID(id)
	if email.Valid {
		p.Email = email.String
	}
	p.CreatedAt = fromMillis(createdAt)
	if lastLoginAt.Valid {
		at := fromMillis(lastLoginAt.Int64)
		p.LastLoginAt = &at
	}
	return &p, nil
}

// uniqueConflict maps a UNIQUE violation on players to the matching domain
// error, or returns nil for any other error
func uniqueConflict(err error) error {
	isUnique := false
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			isUnique = true
		}
	}

	msg := strings.ToLower(err.Error())
	if !isUnique && !strings.Contains(msg, "unique constraint failed") {
		return nil
	}

	switch {
	case strings.Contains(msg, "players.name_key"):
		return model.ErrDuplicateName
	case strings.Contains(msg, "players.email"):
		return model.ErrDuplicateEmail
	default:
		return fmt.Errorf("create player: %w", err)
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
