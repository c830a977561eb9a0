package mongo

import "time"

// Config holds MongoDB connection configuration
type Config struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// DefaultConfig returns sensible defaults for MongoDB configuration
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017",
		Database:       "gamestats",
		Collection:     "players",
		ConnectTimeout: 10 * time.Second,
	}
}
