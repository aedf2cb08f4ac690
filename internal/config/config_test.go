package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 50, cfg.Database.MaxOpenConns, "default max open conns must track worker_pool + 10 (§5 design floor)")
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, ":8081", cfg.HTTP.WorkerHealthAddr)
	assert.Equal(t, "photo_stream", cfg.Queue.Stream)
	assert.Equal(t, int64(40), cfg.Queue.ReadBatchSize)
	assert.Equal(t, int64(10), cfg.Queue.ReclaimBatch)
}

func TestLoadDatabaseRejectsIdleExceedingOpen(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "5")
	t.Setenv("DB_MAX_IDLE_CONNS", "10")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDatabaseRejectsInvalidPort(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadQueueRejectsInvalidDuration(t *testing.T) {
	t.Setenv("QUEUE_READ_INTERVAL", "not-a-duration")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadHonorsEnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("QUEUE_STREAM", "custom_stream")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "custom_stream", cfg.Queue.Stream)
}
