package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/config"
)

func TestOpenAndMigrateSQLite(t *testing.T) {
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))

	assert.True(t, db.Migrator().HasTable("users"))
	assert.True(t, db.Migrator().HasTable("voice_tone_logs"))
	assert.True(t, db.Migrator().HasTable("mood_summaries"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestPoolConfigFromSQLiteUsesSingleConnection(t *testing.T) {
	pool := PoolConfigFrom(config.DatabaseConfig{Driver: "sqlite", MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLifetime: time.Hour})
	assert.Equal(t, 1, pool.MaxOpenConns)
	assert.Equal(t, 1, pool.MaxIdleConns)

	pool = PoolConfigFrom(config.DatabaseConfig{Driver: "postgres", MaxOpenConns: 20, MaxIdleConns: 5})
	assert.Equal(t, 20, pool.MaxOpenConns)
}

func TestPoolManagerPingAndClose(t *testing.T) {
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)

	pm, err := NewPoolManager(db, PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, pm.Ping(context.Background()))
	require.NoError(t, pm.Close())
	assert.Error(t, pm.Ping(context.Background()))
	assert.NoError(t, pm.Close(), "second close is a no-op")
}

func TestNewPoolManagerNilDB(t *testing.T) {
	_, err := NewPoolManager(nil, PoolConfig{}, zap.NewNop())
	assert.Error(t, err)
}
