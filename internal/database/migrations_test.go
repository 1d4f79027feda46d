package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/zap"
)

func setupMockDB(t *testing.T) (*bun.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestMigrate(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS postgis`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TYPE geo_project_type AS ENUM`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS projects`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)CREATE TABLE IF NOT EXISTS features .*ON DELETE CASCADE`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), db, zap.NewNop()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_StopsOnFailure(t *testing.T) {
	db, mock := setupMockDB(t)

	mock.ExpectExec(`CREATE EXTENSION`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TYPE`).WillReturnError(errors.New("permission denied"))

	err := Migrate(context.Background(), db, zap.NewNop())
	assert.ErrorContains(t, err, "migration 2 failed")
	require.NoError(t, mock.ExpectationsWereMet())
}
