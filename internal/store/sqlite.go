// Package store persists the geo cache, synonym store, failure ledger, and
// manual queue in a single SQLite database. Each repository owns its table;
// there are no cross-store transactions — the resolver is written to tolerate
// the narrow windows between writes.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) the SQLite database at path and applies the
// pragmas needed for concurrent readers alongside a writer.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite exec %s: %w", pragma, err)
		}
	}
	return db, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS geo_cache (
	key        TEXT PRIMARY KEY,
	lat        REAL NOT NULL,
	lon        REAL NOT NULL,
	source     TEXT NOT NULL,
	first_seen TIMESTAMP NOT NULL,
	last_seen  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS synonyms (
	alias_key     TEXT PRIMARY KEY,
	alias         TEXT NOT NULL,
	customer_id   TEXT NOT NULL DEFAULT '',
	customer_name TEXT NOT NULL DEFAULT '',
	street        TEXT NOT NULL,
	postal_code   TEXT NOT NULL,
	city          TEXT NOT NULL,
	lat           REAL,
	lon           REAL,
	updated_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS geo_failures (
	key           TEXT PRIMARY KEY,
	attempt_count INTEGER NOT NULL,
	reason        TEXT NOT NULL,
	first_seen    TIMESTAMP NOT NULL,
	last_seen     TIMESTAMP NOT NULL,
	next_attempt  TIMESTAMP,
	escalated     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS manual_queue (
	key          TEXT PRIMARY KEY,
	raw_address  TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	reason       TEXT NOT NULL,
	enqueued_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geo_failures_next_attempt ON geo_failures(next_attempt);
CREATE INDEX IF NOT EXISTS idx_manual_queue_enqueued_at ON manual_queue(enqueued_at);
`

// Migrate creates all tables. Safe to call on every startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, migration); err != nil {
		return fmt.Errorf("sqlite migrate: %w", err)
	}
	return nil
}
