package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutURLReturnsNilPool(t *testing.T) {
	pool, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, pool)
}

func TestNilPoolIsSafe(t *testing.T) {
	var pool *Pool

	assert.Nil(t, pool.DB())
	assert.NoError(t, pool.Close())
	assert.Equal(t, sql.DBStats{}, pool.Stats())

	err := pool.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestDefaultConfigBounds(t *testing.T) {
	cfg := DefaultConfig()
	assert.Greater(t, cfg.MaxOpenConns, cfg.MaxIdleConns)
	assert.Equal(t, 5*time.Second, cfg.PingTimeout)
}
