package redis

import (
	"fmt"

	"github.com/mcoot/gamestats/internal/model"
)

// keys builds the Redis key layout under a configurable prefix
type keys struct {
	prefix string
}

// player returns the key of the HASH holding one player record
func (k keys) player(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", k.prefix, id)
}

// nameIndex returns the key for the name -> player_id index
func (k keys) nameIndex(name string) string {
	return fmt.Sprintf("%s:idx:name:%s", k.prefix, model.NameKey(name))
}

// emailIndex returns the key for the email -> player_id index
func (k keys) emailIndex(email string) string {
	return fmt.Sprintf("%s:idx:email:%s", k.prefix, model.NormalizeEmail(email))
}

// active returns the key of the SET of players with at least one game
func (k keys) active() string {
	return fmt.Sprintf("%s:idx:active", k.prefix)
}
