package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REDIS_DB", "")
	t.Setenv("SYNC_POLL_INTERVAL_SECONDS", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "workflow:invalidations", cfg.Push.RedisChannel)
	require.Equal(t, 2*time.Minute, cfg.Sync.PollInterval())
	require.Equal(t, 0, cfg.Redis.DB)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("SYNC_POLL_INTERVAL_SECONDS", "30")
	t.Setenv("SYNC_RETRY_BASE_MILLIS", "250")
	t.Setenv("POSTGRES_RUN_MIGRATIONS", "false")
	t.Setenv("POSTGRES_MAX_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.App.Addr())
	require.Equal(t, 30*time.Second, cfg.Sync.PollInterval())
	require.Equal(t, 250*time.Millisecond, cfg.Sync.RetryBase())
	require.False(t, cfg.Postgres.RunMigrations)
	require.Equal(t, int32(10), cfg.Postgres.MaxConns)
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")

	_, err := Load()
	require.Error(t, err)
}
