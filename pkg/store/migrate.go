package store

import "context"

// Times are fixed-width UTC TEXT (see timeLayout) so one schema serves both
// dialects.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS escalations (
	id TEXT PRIMARY KEY,
	decision_id TEXT NOT NULL DEFAULT '',
	tenant_id TEXT NOT NULL DEFAULT '',
	run_id TEXT NOT NULL DEFAULT '',
	phase TEXT NOT NULL DEFAULT '',
	from_operator_id TEXT NOT NULL DEFAULT '',
	to_supervisor_id TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL,
	priority TEXT NOT NULL,
	priority_rank INTEGER NOT NULL,
	status TEXT NOT NULL,
	resolution TEXT NOT NULL DEFAULT '',
	resolved_by TEXT NOT NULL DEFAULT '',
	orphaned BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	assigned_at TEXT,
	resolved_at TEXT
)`,
	`CREATE INDEX IF NOT EXISTS escalations_queue_idx ON escalations (status, priority_rank, created_at)`,
	`CREATE INDEX IF NOT EXISTS escalations_run_idx ON escalations (run_id)`,
	`CREATE TABLE IF NOT EXISTS unknowns (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL DEFAULT '',
	run_id TEXT NOT NULL,
	phase_discovered TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL,
	priority_rank INTEGER NOT NULL,
	status TEXT NOT NULL,
	question TEXT NOT NULL,
	context TEXT NOT NULL DEFAULT '',
	investigated_by TEXT NOT NULL DEFAULT '',
	answer TEXT NOT NULL DEFAULT '',
	answered_in_phase TEXT NOT NULL DEFAULT '',
	answered_by TEXT NOT NULL DEFAULT '',
	confidence DOUBLE PRECISION,
	orphaned BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	answered_at TEXT
)`,
	`CREATE INDEX IF NOT EXISTS unknowns_run_idx ON unknowns (run_id, status, priority_rank, created_at)`,
	`CREATE TABLE IF NOT EXISTS handoffs (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL DEFAULT '',
	run_id TEXT NOT NULL,
	from_phase TEXT NOT NULL,
	to_phase TEXT NOT NULL,
	status TEXT NOT NULL,
	data TEXT NOT NULL DEFAULT 'null',
	dependencies TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	accepted_at TEXT,
	completed_at TEXT
)`,
	`CREATE INDEX IF NOT EXISTS handoffs_run_idx ON handoffs (run_id, to_phase, status)`,
	`CREATE TABLE IF NOT EXISTS audit_entries (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	sequence BIGINT NOT NULL,
	event_type TEXT NOT NULL,
	event_data TEXT NOT NULL,
	previous_hash TEXT NOT NULL,
	current_hash TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	actor_id TEXT NOT NULL DEFAULT '',
	UNIQUE (tenant_id, previous_hash),
	UNIQUE (tenant_id, sequence)
)`,
}

// Migrate creates the gate tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := db.exec(ctx, m); err != nil {
			return persistenceError("migrate", err)
		}
	}
	return nil
}
