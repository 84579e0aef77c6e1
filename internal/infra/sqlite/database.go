/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// schemaVersion is stored in PRAGMA user_version. A database written
// with another layout is refused rather than migrated.
const schemaVersion = 1

var ErrSchemaVersion = errors.New("unsupported SUIT storage schema version")

// connection pragmas, applied in order
var pragmas = []string{
	"PRAGMA foreign_keys = ON;",
	"PRAGMA journal_mode = WAL;",
	"PRAGMA synchronous = FULL;",
	"PRAGMA busy_timeout = 5000;",
}

// InitDB opens the SUIT storage database at dbPath, creating the schema
// when the database is new.
func InitDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == ":memory:" {
		// every connection would get its own empty in-memory database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %s: %w", p, err)
		}
	}

	if err := checkVersion(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := createSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

func checkVersion(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != 0 && version != schemaVersion {
		return fmt.Errorf("%w: %d", ErrSchemaVersion, version)
	}
	return nil
}

// createSchema creates all necessary database tables.
func createSchema(ctx context.Context, db *sql.DB) error {
	schema := `
	-- SUIT storage report slots; an existing row means the slot is set
	CREATE TABLE IF NOT EXISTS reports (
		slot INTEGER PRIMARY KEY,
		payload BLOB,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Update candidate descriptor; idx 0 is the envelope, the rest are DFU cache pools
	CREATE TABLE IF NOT EXISTS update_candidate_regions (
		idx INTEGER PRIMARY KEY,
		address INTEGER NOT NULL,
		size INTEGER NOT NULL
	);

	-- Manifest Signing Keys (trust anchors) table
	CREATE TABLE IF NOT EXISTS manifest_signing_keys (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kid BLOB UNIQUE NOT NULL,
		public_key BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expired_at TIMESTAMP NOT NULL
	);

	-- Create index on kid for faster lookups
	CREATE INDEX IF NOT EXISTS idx_manifest_signing_keys_kid ON manifest_signing_keys(kid);
	CREATE INDEX IF NOT EXISTS idx_manifest_signing_keys_expired_at ON manifest_signing_keys(expired_at);

	-- Installed SUIT envelopes, one per manifest class ID
	CREATE TABLE IF NOT EXISTS installed_envelopes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		class_id BLOB UNIQUE NOT NULL,
		envelope BLOB NOT NULL,
		sequence_number INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Persisted orchestrator execution mode (single row)
	CREATE TABLE IF NOT EXISTS execution_mode (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		mode INTEGER NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Manifest Provisioning Information areas
	CREATE TABLE IF NOT EXISTS mpi_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		class_id BLOB NOT NULL,
		role INTEGER NOT NULL,
		area BLOB NOT NULL,
		digest BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_mpi_records_class_id ON mpi_records(class_id);
	`

	schema += fmt.Sprintf("PRAGMA user_version = %d;\n", schemaVersion)

	// Execute schema using transaction
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CloseDB closes the database connection.
func CloseDB(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
