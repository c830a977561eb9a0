package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = strings.Repeat("s", MinTokenSecretLength)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"GAMESTATS_TOKEN_SECRET": testSecret})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, "data/gamestats.db", cfg.SQLitePath)
	assert.Equal(t, "gamestats", cfg.MongoDatabase)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Empty(t, cfg.CORSOrigins)
}

func TestLoadFromOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"GAMESTATS_TOKEN_SECRET":       testSecret,
		"GAMESTATS_PORT":               "9090",
		"GAMESTATS_STORAGE":            "redis",
		"GAMESTATS_REDIS_URL":          "redis://localhost:6379/0",
		"GAMESTATS_TOKEN_TTL":          "1h",
		"GAMESTATS_CORS_ORIGINS":       "https://a.example,https://b.example",
		"GAMESTATS_RATE_LIMIT_ENABLED": "false",
		"GAMESTATS_LOG_LEVEL":          "debug",
		"GAMESTATS_LOG_FORMAT":         "text",
	})
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, StorageRedis, cfg.Storage)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.False(t, cfg.RateLimitEnabled)
}

func TestLoadFromRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"missing secret", map[string]string{}, "GAMESTATS_TOKEN_SECRET"},
		{"short secret", map[string]string{"GAMESTATS_TOKEN_SECRET": "short"}, "GAMESTATS_TOKEN_SECRET"},
		{"unknown storage", map[string]string{"GAMESTATS_TOKEN_SECRET": testSecret, "GAMESTATS_STORAGE": "cassandra"}, "GAMESTATS_STORAGE"},
		{"redis without url", map[string]string{"GAMESTATS_TOKEN_SECRET": testSecret, "GAMESTATS_STORAGE": "redis"}, "GAMESTATS_REDIS_URL"},
		{"mongo without uri", map[string]string{"GAMESTATS_TOKEN_SECRET": testSecret, "GAMESTATS_STORAGE": "mongo"}, "GAMESTATS_MONGO_URI"},
		{"bad level", map[string]string{"GAMESTATS_TOKEN_SECRET": testSecret, "GAMESTATS_LOG_LEVEL": "loud"}, "GAMESTATS_LOG_LEVEL"},
		{"bad format", map[string]string{"GAMESTATS_TOKEN_SECRET": testSecret, "GAMESTATS_LOG_FORMAT": "xml"}, "GAMESTATS_LOG_FORMAT"},
		{"bad port", map[string]string{"GAMESTATS_TOKEN_SECRET": testSecret, "GAMESTATS_PORT": "not-a-port"}, "parse env"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadReadsDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GAMESTATS_TOKEN_SECRET="+testSecret+"\nGAMESTATS_PORT=7070\n"), 0o600))

	// godotenv never overrides variables already set, so start clean
	t.Setenv("GAMESTATS_TOKEN_SECRET", "")
	t.Setenv("GAMESTATS_PORT", "")
	require.NoError(t, os.Unsetenv("GAMESTATS_TOKEN_SECRET"))
	require.NoError(t, os.Unsetenv("GAMESTATS_PORT"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, testSecret, cfg.TokenSecret)
}

func TestLoadWithoutDotenvFile(t *testing.T) {
	t.Setenv("GAMESTATS_TOKEN_SECRET", testSecret)

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}

func TestNewLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := Server{LogLevel: "warn", LogFormat: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)

	buf.Reset()
	Server{LogLevel: "info", LogFormat: "text"}.NewLogger(&buf).Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}
