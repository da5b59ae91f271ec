package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/angelmondragon/storefront/pkg/config"
)

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{}, nil)
	require.Error(t, err)
}

func TestNewOpensSQLite(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{
		Driver:       config.DBDriverSQLite,
		DSN:          "file::memory:",
		MaxOpenConns: 1,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.Equal(t, config.DBDriverSQLite, client.Dialect())
	require.NoError(t, client.Ping(context.Background()))
}

func TestNewFromConn(t *testing.T) {
	conn, err := Open(sqlite.Open("file::memory:"))
	require.NoError(t, err)

	client := NewFromConn(conn, config.DBDriverSQLite)
	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.Close())
}
