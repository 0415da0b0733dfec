// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sqlite opens the embedded single-node database used when
// STORAGE_DRIVER=sqlite.
//
// # Architecture
//
// This package is part of the Infrastructure layer, the file-backed sibling of
// [postgres.NewPool]. Schema is applied separately by the migration runner.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"
)

// pragmas are applied to every connection through the modernc DSN syntax.
const pragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// DSN returns the driver connection string for a database file.
func DSN(path string) string {
	return filepath.Clean(path) + "?" + pragmas
}

/*
Open creates the parent directory if needed, opens the database and pings it.

Description: The pool is capped at one connection. SQLite allows a single
writer, and the refresh ledger's conditional delete relies on that ordering.

Parameters:
  - context: context.Context
  - path: string (database file)
  - logger: *slog.Logger

Returns:
  - *sql.DB: Ready handle
  - error: Filesystem, open or ping failures
*/
func Open(context context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("sqlite: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	logger.Info("sqlite_database_opened", slog.String("path", path))
	return db, nil
}
