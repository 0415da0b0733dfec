// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration provides a thin wrapper around golang-migrate for
// running database schema migrations.
//
// # Architecture
//
// This package belongs to the Infrastructure layer. It enforces schema
// idempotency during application startup, ensuring the database is always
// in the correct state before traffic is served. Both storage drivers share
// the same runner; the DDL itself is embedded per driver in [migrations.FS].
package migration

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// pgx5 driver registers "pgx5" scheme for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// sqlite driver registers "sqlite" scheme (modernc, no cgo).
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	// file source reads .sql files from disk when a path override is set.
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/taibuivan/fixoo/data/migrations"
	"github.com/taibuivan/fixoo/internal/platform/config"
)

// Options selects the target database and the migration source.
type Options struct {
	// Driver is config.StorageDriverPostgres or config.StorageDriverSQLite.
	Driver string

	// Target is the postgres:// URL or the sqlite file path.
	Target string

	// Path optionally replaces the embedded migrations with <Path>/<Driver> on disk.
	Path string
}

// RunUp applies all pending UP migrations.
//
// # Parameters
//   - options: Target database and source selection.
//   - logger: Structured logger for migration events.
func RunUp(options Options, logger *slog.Logger) error {
	databaseURL, err := databaseURL(options.Driver, options.Target)
	if err != nil {
		return err
	}

	migrator, err := newMigrator(options, databaseURL)
	if err != nil {
		return fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer func() {
		sourceError, dbError := migrator.Close()
		if sourceError != nil {
			logger.Error("migration_source_close_failed", slog.Any("error", sourceError))
		}
		if dbError != nil {
			logger.Error("migration_db_close_failed", slog.Any("error", dbError))
		}
	}()

	// Route golang-migrate output through slog.
	migrator.Log = &migrateLogger{logger: logger}

	currentVersion, isDirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration: failed to get current version: %w", err)
	}

	if isDirty {
		return fmt.Errorf("migration: database is in a dirty state at version %d (manual intervention required)", currentVersion)
	}

	logger.Info("migration_started",
		slog.String("driver", options.Driver),
		slog.Int("current_version", int(currentVersion)),
	)

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("migration_already_up_to_date")
			return nil
		}
		return fmt.Errorf("migration: up failed: %w", err)
	}

	newVersion, _, _ := migrator.Version()
	logger.Info("migration_successful",
		slog.Int("from_version", int(currentVersion)),
		slog.Int("to_version", int(newVersion)),
	)

	return nil
}

// newMigrator picks the disk override or the embedded source for the driver.
func newMigrator(options Options, databaseURL string) (*migrate.Migrate, error) {
	if options.Path != "" {
		return migrate.New("file://"+filepath.Join(options.Path, options.Driver), databaseURL)
	}

	source, err := iofs.New(migrations.FS, options.Driver)
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", source, databaseURL)
}

// databaseURL builds the golang-migrate URL for a storage driver.
func databaseURL(driver, target string) (string, error) {
	switch driver {
	case config.StorageDriverPostgres:
		return convertToPgx5DSN(target), nil
	case config.StorageDriverSQLite:
		return "sqlite://" + target, nil
	default:
		return "", fmt.Errorf("migration: unknown driver %q", driver)
	}
}

// convertToPgx5DSN ensures the DSN uses the pgx5:// scheme required by golang-migrate/v4.
func convertToPgx5DSN(dsn string) string {
	const pgx5Prefix = "pgx5://"

	for _, prefix := range []string{pgx5Prefix, "postgres://", "postgresql://"} {
		if rest, found := strings.CutPrefix(dsn, prefix); found {
			return pgx5Prefix + rest
		}
	}

	return dsn
}

// migrateLogger adapts golang-migrate's logger interface to slog.
type migrateLogger struct {
	logger  *slog.Logger
	verbose bool
}

// Printf implements migrate.Logger.
func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Verbose implements migrate.Logger.
func (l *migrateLogger) Verbose() bool {
	return l.verbose
}
