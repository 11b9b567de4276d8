// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

// Package migrations holds the embedded goose migrations for both logical
// stores, per dialect. The directory layout is <dialect>/<scope>, where
// dialect is "sqlite" or "postgres" and scope is "identity" or "sync".
package migrations

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Migration scopes, one per logical store.
const (
	ScopeIdentity = "identity"
	ScopeSync     = "sync"
)

// Migrate applies the embedded migrations for the given scope against db.
// The driver name selects both the goose dialect and the SQL flavour of
// the applied files; it must be "sqlite3" or "pgx".
func Migrate(db *sql.DB, driver, scope string) error {
	if scope != ScopeIdentity && scope != ScopeSync {
		return fmt.Errorf("migration error: unknown scope %q", scope)
	}

	var dir string
	switch driver {
	case "sqlite3":
		dir = "sqlite/" + scope
	case "pgx":
		dir = "postgres/" + scope
	default:
		return fmt.Errorf("migration error: unknown driver %q", driver)
	}

	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("migration error setting dialect for db: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	return nil
}
