package journal

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    workers INTEGER NOT NULL,
    scene TEXT NOT NULL,
    seed INTEGER NOT NULL,
    config TEXT,          -- JSON
    summary TEXT          -- JSON, set by FinishRun
);

-- Worker lifecycle events (ready, load_failed, crashed, exited)
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    at TEXT NOT NULL,
    worker INTEGER NOT NULL,
    kind TEXT NOT NULL,
    tick INTEGER,
    detail TEXT           -- JSON
);
CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, kind);

-- Periodic throughput samples
CREATE TABLE IF NOT EXISTS samples (
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    at TEXT NOT NULL,
    tick INTEGER NOT NULL,
    advanced INTEGER NOT NULL,
    dropped INTEGER NOT NULL,
    moves INTEGER NOT NULL,
    crashes INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_run ON samples(run_id, tick);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// InitSchema creates the journal tables if they do not exist.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}
