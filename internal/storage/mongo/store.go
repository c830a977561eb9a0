package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/mcoot/gamestats/internal/model"
	"github.com/mcoot/gamestats/internal/storage"
)

const (
	nameIndexName  = "uniq_name_key"
	emailIndexName = "uniq_email"
)

// playerDocument is the BSON shape of a stored player
type playerDocument struct {
	ID          string     `bson:"_id"`
	Name        string     `bson:"name"`
	NameKey     string     `bson:"name_key"`
	Email       string     `bson:"email,omitempty"`
	Credential  string     `bson:"credential"`
	Wins        int        `bson:"wins"`
	Losses      int        `bson:"losses"`
	Ties        int        `bson:"ties"`
	TotalGames  int        `bson:"total_games"`
	CreatedAt   time.Time  `bson:"created_at"`
	LastLoginAt *time.Time `bson:"last_login_at,omitempty"`
}

// Store is a MongoDB-backed implementation of the storage interface
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// New connects to MongoDB, verifies the connection and ensures indexes
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Collection == "" {
		cfg.Collection = DefaultConfig().Collection
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConfig().ConnectTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &Store{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name_key", Value: 1}},
			Options: options.Index().SetName(nameIndexName).SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName(emailIndexName).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string"}}),
		},
		{
			Keys:    bson.D{{Key: "total_games", Value: 1}},
			Options: options.Index().SetName("total_games"),
		},
	})
	if err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	return nil
}

// Close disconnects the client
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ensure Store implements the interface
var _ storage.Storage = (*Store)(nil)

func (s *Store) CreatePlayer(ctx context.Context, player *model.Player) error {
	_, err := s.collection.InsertOne(ctx, toDocument(player))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateKind(err)
		}
		return fmt.Errorf("create player %s: %w", player.ID, err)
	}
	return nil
}

func (s *Store) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	return s.findOne(ctx, bson.M{"_id": string(id)})
}

func (s *Store) GetPlayerByName(ctx context.Context, name string) (*model.Player, error) {
	return s.findOne(ctx, bson.M{"name_key": model.NameKey(name)})
}

func (s *Store) GetPlayerByEmail(ctx context.Context, email string) (*model.Player, error) {
	normalized := model.NormalizeEmail(email)
	if normalized == "" {
		return nil, model.ErrPlayerNotFound
	}
	return s.findOne(ctx, bson.M{"email": normalized})
}

func (s *Store) RecordLogin(ctx context.Context, id model.PlayerID, at time.Time) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$set": bson.M{"last_login_at": at.UTC()}},
	)
	if err != nil {
		return fmt.Errorf("record login for player %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return model.ErrPlayerNotFound
	}
	return nil
}

func (s *Store) IncrementOutcome(ctx context.Context, id model.PlayerID, outcome model.Outcome) (*model.Player, error) {
	if !outcome.Valid() {
		return nil, model.ErrInvalidOutcome
	}

	// A single-document $inc is atomic, so the counter and total move together
	update := bson.M{"$inc": bson.M{outcome.CounterField(): 1, "total_games": 1}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc playerDocument
	err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": string(id)}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("increment outcome for player %s: %w", id, err)
	}
	return doc.toModel(), nil
}

func (s *Store) ListRankedCandidates(ctx context.Context) ([]*model.Player, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"total_games": bson.M{"$gt": 0}})
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer cursor.Close(ctx)

	players := make([]*model.Player, 0)
	for cursor.Next(ctx) {
		var doc playerDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode player: %w", err)
		}
		players = append(players, doc.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return players, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*model.Player, error) {
	var doc playerDocument
	if err := s.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("find player: %w", err)
	}
	return doc.toModel(), nil
}

// duplicateKind tells a name clash from an email clash by the index named
// in the server's E11000 message
func duplicateKind(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, emailIndexName):
		return model.ErrDuplicateEmail
	case strings.Contains(msg, nameIndexName):
		return model.ErrDuplicateName
	default:
		return fmt.Errorf("create player: %w", err)
	}
}

func toDocument(p *model.Player) playerDocument {
	doc := playerDocument{
		ID:         string(p.ID),
		Name:       p.Name,
		NameKey:    model.NameKey(p.Name),
		Email:      model.NormalizeEmail(p.Email),
		Credential: p.CredentialHash,
		Wins:       p.Wins,
		Losses:     p.Losses,
		Ties:       p.Ties,
		TotalGames: p.TotalGames,
		CreatedAt:  p.CreatedAt.UTC(),
	}
	if p.LastLoginAt != nil {
		at := p.LastLoginAt.UTC()
		doc.LastLoginAt = &at
	}
	return doc
}

func (d playerDocument) toModel() *model.Player {
	p := &model.Player{
		ID:             model.PlayerID(d.ID),
		Name:           d.Name,
		Email:          d.Email,
		CredentialHash: d.Credential,
		Wins:           d.Wins,
		Losses:         d.Losses,
		Ties:           d.Ties,
		TotalGames:     d.TotalGames,
		CreatedAt:      d.CreatedAt.UTC(),
	}
	if d.LastLoginAt != nil {
		at := d.LastLoginAt.UTC()
		p.LastLoginAt = &at
	}
	return p
}
