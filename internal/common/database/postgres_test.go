package database

import (
	"context"
	stderrors "errors"
	"testing"

	"intake-workers/internal/common/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestPostgres(t *testing.T) (*PostgresClient, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PostgresClient{DB: db}, mock
}

// ==========================
// Ping Tests
// ==========================

func TestPostgres_Ping(t *testing.T) {
	pg, mock := createTestPostgres(t)
	mock.ExpectPing()

	require.NoError(t, pg.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PingFailureIsConnectionError(t *testing.T) {
	pg, mock := createTestPostgres(t)
	cause := stderrors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
	mock.ExpectPing().WillReturnError(cause)

	err := pg.Ping(context.Background())

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDatabaseConnectionFailed))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, errors.GetRetryCount(errors.ErrCodeDatabaseConnectionFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}
