package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxIdleTime)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Empty(t, cfg.URL)
}

func TestConnect_RequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), DefaultConfig())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres URL is required")
}

func TestHealthCheck(t *testing.T) {
	t.Run("healthy database", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(nil)

		err = HealthCheck(context.Background(), db, time.Second)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unhealthy database", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		err = HealthCheck(context.Background(), db, time.Second)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "database unhealthy")
	})

	t.Run("zero timeout uses caller context", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(nil)

		err = HealthCheck(context.Background(), db, 0)

		assert.NoError(t, err)
	})
}
