package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/tictactoe-server/internal/config"
	"github.com/park285/tictactoe-server/internal/domain"
	"github.com/park285/tictactoe-server/internal/gamelock"
)

func testConfig(t *testing.T) *config.AppConfig {
	return &config.AppConfig{
		DatabaseDriver: "sqlite",
		DatabasePath:   filepath.Join(t.TempDir(), "app.db"),
		StorageWorkers: 2,
		LockBackend:    config.LockLocal,
	}
}

func TestNewLocal(t *testing.T) {
	d, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	assert.IsType(t, &gamelock.Local{}, d.Locks)
	assert.Nil(t, d.Redis)

	g, err := d.Engine.Create(context.Background(), 3)
	require.NoError(t, err)
	_, err = d.Engine.AddMove(context.Background(), g.ID, 0, domain.PlayerX)
	require.NoError(t, err)
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.LockBackend = config.LockRedis
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"
	cfg.LockTTL = 2 * time.Second

	d, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	assert.IsType(t, &gamelock.Redis{}, d.Locks)
	g, err := d.Engine.Create(context.Background(), 3)
	require.NoError(t, err)
	_, err = d.Engine.AddMove(context.Background(), g.ID, 4, domain.PlayerX)
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())
}

func TestNewFailsOnBadRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.LockBackend = config.LockRedis
	cfg.RedisURL = "http://nope"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestStorageConfigCarriesEveryKnob(t *testing.T) {
	cfg := &config.AppConfig{
		DatabaseDriver: "postgres",
		DatabasePath:   "ignored.db",
		DatabaseURL:    "postgres://localhost/games",
		SchemaFile:     "schema.sql",
		StorageWorkers: 3,
		StorageQueue:   7,
		BusyTimeout:    1500 * time.Millisecond,
	}
	sc := StorageConfig(cfg)
	assert.Equal(t, "postgres", sc.Driver)
	assert.Equal(t, "postgres://localhost/games", sc.DSN)
	assert.Equal(t, "schema.sql", sc.SchemaFile)
	assert.Equal(t, 3, sc.Workers)
	assert.Equal(t, 7, sc.QueueSize)
	assert.Equal(t, 1500*time.Millisecond, sc.BusyTimeout)
}
