// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

// Package store implements the two persistence layers of the relay server:
// the identity store (accounts, devices, magic links) and the sync store
// (encrypted updates and snapshots). Both run against an embedded SQLite
// database by default, with PostgreSQL as an alternative backend.
//
// The sync store never inspects envelope contents; storage keys are
// structural metadata only.
package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/migrations"
)

// Driver names accepted by the store openers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Connect opens one logical store on the named driver.
func Connect(ctx context.Context, driver, dsn string, log *logger.Logger) (*DB, error) {
	switch driver {
	case DriverSQLite:
		return NewConnectSQLite(ctx, dsn, log)
	case DriverPostgres:
		return NewConnectPostgres(ctx, dsn, log)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// DB wraps one logical store's database connection. The connection pool is
// capped at a single connection, so concurrent callers serialize through
// it; the database provides transactional atomicity per statement.
type DB struct {
	*sql.DB
	driver  string
	builder sq.StatementBuilderType
	logger  *logger.Logger
}

// Builder returns a squirrel statement builder configured with the
// placeholder format of the underlying driver ($1 for PostgreSQL, ? for
// SQLite).
func (db *DB) Builder() sq.StatementBuilderType {
	return db.builder
}

// Migrate applies the embedded goose migrations for the given scope
// ("identity" or "sync") against this connection.
func (db *DB) Migrate(scope string) error {
	return migrations.Migrate(db.DB, db.driver, scope)
}

func newDB(conn *sql.DB, driver string, log *logger.Logger) *DB {
	// One connection per logical store; callers serialize through it.
	conn.SetMaxOpenConns(1)

	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == DriverPostgres {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}

	return &DB{
		DB:      conn,
		driver:  driver,
		builder: builder.RunWith(conn),
		logger:  log,
	}
}
