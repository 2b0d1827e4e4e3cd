package store

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	owner         TEXT NOT NULL,
	topic         TEXT NOT NULL,
	mode          TEXT NOT NULL,
	status        TEXT NOT NULL,
	turn_count    INTEGER NOT NULL DEFAULT 0,
	avg_confidence REAL NOT NULL DEFAULT 0,
	avg_clarity   REAL NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	completed_at  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner);

CREATE TABLE IF NOT EXISTS turns (
	session_id        TEXT NOT NULL,
	turn_number       INTEGER NOT NULL,
	sequence          INTEGER NOT NULL,
	explanation       TEXT NOT NULL,
	question          TEXT NOT NULL,
	path              TEXT NOT NULL,
	duration_ms       INTEGER NOT NULL,
	confidence        REAL NOT NULL,
	clarity           REAL NOT NULL,
	knowledge_gaps    TEXT NOT NULL DEFAULT '[]',
	unexplained_jargon TEXT NOT NULL DEFAULT '[]',
	strengths         TEXT NOT NULL DEFAULT '[]',
	enrichment_status TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL,
	PRIMARY KEY (session_id, turn_number)
);

CREATE TABLE IF NOT EXISTS analytics_snapshots (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	turn_count  INTEGER NOT NULL,
	payload     TEXT NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analytics_session ON analytics_snapshots(session_id);

CREATE TABLE IF NOT EXISTS review_items (
	owner         TEXT NOT NULL,
	topic         TEXT NOT NULL,
	ease_factor   REAL NOT NULL,
	repetitions   INTEGER NOT NULL,
	interval_days INTEGER NOT NULL,
	next_due      TEXT NOT NULL,
	last_reviewed TEXT NOT NULL DEFAULT '',
	history       TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (owner, topic)
);

CREATE TABLE IF NOT EXISTS knowledge_nodes (
	owner            TEXT NOT NULL,
	topic            TEXT NOT NULL,
	times_taught     INTEGER NOT NULL,
	avg_confidence   REAL NOT NULL,
	avg_clarity      REAL NOT NULL,
	related_concepts TEXT NOT NULL DEFAULT '[]',
	persistent_gaps  TEXT NOT NULL DEFAULT '[]',
	first_taught     TEXT NOT NULL,
	last_taught      TEXT NOT NULL,
	PRIMARY KEY (owner, topic)
);

CREATE TABLE IF NOT EXISTS knowledge_edges (
	owner        TEXT NOT NULL,
	from_topic   TEXT NOT NULL,
	to_topic     TEXT NOT NULL,
	relationship TEXT NOT NULL,
	strength     REAL NOT NULL,
	PRIMARY KEY (owner, from_topic, to_topic)
);

CREATE TABLE IF NOT EXISTS llm_events (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	sequence      INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	purpose       TEXT NOT NULL,
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	latency_ms    INTEGER NOT NULL,
	cost_usd      REAL NOT NULL DEFAULT 0,
	success       INTEGER NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	request_body  TEXT NOT NULL DEFAULT '',
	response_body TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS global_sequence (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	next_val INTEGER NOT NULL DEFAULT 1
);
INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1);
`

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
