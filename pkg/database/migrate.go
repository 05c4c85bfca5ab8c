// Package database applies schema migrations for the settings table.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/docsync/core/pkg/logger"
)

// DriverPostgres is the database/sql driver name registered by lib/pq.
const DriverPostgres = "postgres"

// Migrate opens dsn with the named database/sql driver and executes each
// statement in order inside one transaction. Statements must be idempotent.
func Migrate(ctx context.Context, driver, dsn string, statements ...string) error {
	if driver == "" {
		driver = DriverPostgres
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	defer db.Close()

	return MigrateDB(ctx, db, statements...)
}

// MigrateDB is Migrate on an already open handle.
func MigrateDB(ctx context.Context, db *sql.DB, statements ...string) error {
	log := logger.WithContext(ctx, "migrations")
	start := time.Now()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range statements {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d failed: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	log.Info().
		Str("action", "migrate").
		Int("statements", len(statements)).
		Dur("duration", time.Since(start)).
		Msg("Schema migration applied")
	return nil
}
