package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/gamestats/internal/model"
	"github.com/mcoot/gamestats/internal/storage"
)

// Player hash fields
const (
	fieldID          = "id"
	fieldName        = "name"
	fieldEmail       = "email"
	fieldCredential  = "credential"
	fieldWins        = "wins"
	fieldLosses      = "losses"
	fieldTies        = "ties"
	fieldTotalGames  = "total_games"
	fieldCreatedAt   = "created_at"
	fieldLastLoginAt = "last_login_at"
)

// createScript claims the name (and optional email) index and writes the
// player hash in one step.
// KEYS: player, name index, [email index]. ARGV: id, then hash field/value pairs.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
	return 'name'
end
if #KEYS == 3 and redis.call('EXISTS', KEYS[3]) == 1 then
	return 'email'
end
redis.call('SET', KEYS[2], ARGV[1])
if #KEYS == 3 then
	redis.call('SET', KEYS[3], ARGV[1])
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
return 'ok'
`)

// incrementScript bumps one counter and total_games together and returns
// the refreshed hash. Returns nil when the player does not exist.
// KEYS: player, active set. ARGV: counter field, player id.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
redis.call('HINCRBY', KEYS[1], 'total_games', 1)
redis.call('SADD', KEYS[2], ARGV[2])
return redis.call('HGETALL', KEYS[1])
`)

// loginScript sets last_login_at on an existing player only.
// KEYS: player. ARGV: timestamp.
var loginScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'last_login_at', ARGV[1])
return 1
`)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
	keys   keys
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &Storage{
		client: client,
		cfg:    cfg,
		keys:   keys{prefix: cfg.KeyPrefix},
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) CreatePlayer(ctx context.Context, player *model.Player) error {
	keyList := []string{s.keys.player(player.ID), s.keys.nameIndex(player.Name)}
	if player.Email != "" {
		keyList = append(keyList, s.keys.emailIndex(player.Email))
	}

	args := []any{string(player.ID)}
	args = append(args, encodePlayer(player)...)

	res, err := createScript.Run(ctx, s.client, keyList, args...).Text()
	if err != nil {
		return fmt.Errorf("create player: %w", err)
	}

	switch res {
	case "ok":
		return nil
	case "name":
		return model.ErrDuplicateName
	case "email":
		return model.ErrDuplicateEmail
	default:
		return fmt.Errorf("create player: unexpected script result %q", res)
	}
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	fields, err := s.client.HGetAll(ctx, s.keys.player(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, model.ErrPlayerNotFound
	}
	return decodePlayer(fields)
}

func (s *Storage) GetPlayerByName(ctx context.Context, name string) (*model.Player, error) {
	return s.getByIndex(ctx, s.keys.nameIndex(name))
}

func (s *Storage) GetPlayerByEmail(ctx context.Context, email string) (*model.Player, error) {
	return s.getByIndex(ctx, s.keys.emailIndex(email))
}

func (s *Storage) RecordLogin(ctx context.Context, id model.PlayerID, at time.Time) error {
	n, err := loginScript.Run(ctx, s.client, []string{s.keys.player(id)}, formatTime(at)).Int()
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	if n == 0 {
		return model.ErrPlayerNotFound
	}
	return nil
}

func (s *Storage) IncrementOutcome(ctx context.Context, id model.PlayerID, outcome model.Outcome) (*model.Player, error) {
	if !outcome.Valid() {
		return nil, model.ErrInvalidOutcome
	}

	keyList := []string{s.keys.player(id), s.keys.active()}
	res, err := incrementScript.Run(ctx, s.client, keyList, outcome.CounterField(), string(id)).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("increment outcome: %w", err)
	}

	fields, err := pairsToMap(res)
	if err != nil {
		return nil, fmt.Errorf("increment outcome: %w", err)
	}
	return decodePlayer(fields)
}

func (s *Storage) ListRankedCandidates(ctx context.Context) ([]*model.Player, error) {
	ids, err := s.client.SMembers(ctx, s.keys.active()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Player{}, nil
	}

	// Fetch all hashes in one round trip
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.keys.player(model.PlayerID(id)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	players := make([]*model.Player, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		p, err := decodePlayer(fields)
		if err != nil {
			return nil, err
		}
		if p.TotalGames > 0 {
			players = append(players, p)
		}
	}
	return players, nil
}

func (s *Storage) getByIndex(ctx context.Context, indexKey string) (*model.Player, error) {
	id, err := s.client.Get(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return s.GetPlayer(ctx, model.PlayerID(id))
}

// encodePlayer flattens a player into HSET field/value pairs
func encodePlayer(p *model.Player) []any {
	args := []any{
		fieldID, string(p.ID),
		fieldName, p.Name,
		fieldEmail, p.Email,
		fieldCredential, p.CredentialHash,
		fieldWins, p.Wins,
		fieldLosses, p.Losses,
		fieldTies, p.Ties,
		fieldTotalGames, p.TotalGames,
		fieldCreatedAt, formatTime(p.CreatedAt),
	}
	if p.LastLoginAt != nil {
		args = append(args, fieldLastLoginAt, formatTime(*p.LastLoginAt))
	}
	return args
}

func decodePlayer(fields map[string]string) (*model.Player, error) {
	p := &model.Player{
		ID:             model.PlayerID(fields[fieldID]),
		Name:           fields[fieldName],
		Email:          fields[fieldEmail],
		CredentialHash: fields[fieldCredential],
	}

	counters := []struct {
		field string
		dst   *int
	}{
		{fieldWins, &p.Wins},
		{fieldLosses, &p.Losses},
		{fieldTies, &p.Ties},
		{fieldTotalGames, &p.TotalGames},
	}
	for _, c := range counters {
		n, err := strconv.Atoi(fields[c.field])
		if err != nil {
			return nil, fmt.Errorf("decode player %s: field %s: %w", p.ID, c.field, err)
		}
		*c.dst = n
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("decode player %s: created_at: %w", p.ID, err)
	}
	p.CreatedAt = createdAt

	if raw, ok := fields[fieldLastLoginAt]; ok && raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("decode player %s: last_login_at: %w", p.ID, err)
		}
		p.LastLoginAt = &at
	}

	return p, nil
}

// pairsToMap converts a flat HGETALL reply from a script into a map
func pairsToMap(values []any) (map[string]string, error) {
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("odd number of hash elements: %d", len(values))
	}
	m := make(map[string]string, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		k, ok1 := values[i].(string)
		v, ok2 := values[i+1].(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("unexpected hash element types %T/%T", values[i], values[i+1])
		}
		m[k] = v
	}
	return m, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
