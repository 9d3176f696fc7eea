package database

import (
	"context"
	"database/sql"
)

// This file is only for test purpose and is only loaded by test framework.

// SetSQLiteMaxBatch defines the number of ranks per SQLite batch statement and returns a func restoring it.
func SetSQLiteMaxBatch(n int) func() {
	previous := sqliteDialect.maxBatch
	sqliteDialect.maxBatch = n
	return func() {
		sqliteDialect.maxBatch = previous
	}
}

// MigratePostgres creates the PostgreSQL schema on db.
func MigratePostgres(db *sql.DB) error {
	return NewPostgres(db).(*sqlDB).migrate(context.Background())
}
