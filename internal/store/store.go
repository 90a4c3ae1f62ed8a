// Package store provides SQLite persistence for planning entities,
// backlog ordering, and imported usage telemetry.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides access to the mission-control database.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at the given path.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id          TEXT PRIMARY KEY,
		key         TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL,
		description TEXT,
		status      TEXT NOT NULL DEFAULT 'ACTIVE',
		created_by  TEXT,
		updated_by  TEXT,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS project_counters (
		project_id  TEXT PRIMARY KEY REFERENCES projects(id) ON DELETE CASCADE,
		next_number INTEGER NOT NULL DEFAULT 1,
		updated_at  DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS epics (
		id                     TEXT PRIMARY KEY,
		project_id             TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		key                    TEXT NOT NULL,
		title                  TEXT NOT NULL,
		description            TEXT,
		status                 TEXT NOT NULL DEFAULT 'TODO',
		status_mode            TEXT NOT NULL DEFAULT 'MANUAL',
		status_override        TEXT,
		status_override_set_at DATETIME,
		is_blocked             INTEGER NOT NULL DEFAULT 0,
		blocked_reason         TEXT,
		priority               INTEGER,
		created_by             TEXT,
		updated_by             TEXT,
		created_at             DATETIME NOT NULL,
		updated_at             DATETIME NOT NULL,
		UNIQUE(project_id, key)
	);

	CREATE TABLE IF NOT EXISTS stories (
		id                     TEXT PRIMARY KEY,
		project_id             TEXT REFERENCES projects(id) ON DELETE CASCADE,
		epic_id                TEXT REFERENCES epics(id) ON DELETE SET NULL,
		key                    TEXT,
		title                  TEXT NOT NULL,
		intent                 TEXT,
		description            TEXT,
		story_type             TEXT NOT NULL DEFAULT 'feature',
		status                 TEXT NOT NULL DEFAULT 'TODO',
		status_mode            TEXT NOT NULL DEFAULT 'MANUAL',
		status_override        TEXT,
		status_override_set_at DATETIME,
		is_blocked             INTEGER NOT NULL DEFAULT 0,
		blocked_reason         TEXT,
		priority               INTEGER,
		created_by             TEXT,
		updated_by             TEXT,
		created_at             DATETIME NOT NULL,
		updated_at             DATETIME NOT NULL,
		started_at             DATETIME,
		completed_at           DATETIME
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id                        TEXT PRIMARY KEY,
		project_id                TEXT REFERENCES projects(id) ON DELETE CASCADE,
		story_id                  TEXT REFERENCES stories(id) ON DELETE SET NULL,
		key                       TEXT,
		title                     TEXT NOT NULL,
		objective                 TEXT,
		description               TEXT,
		task_type                 TEXT NOT NULL DEFAULT 'task',
		status                    TEXT NOT NULL DEFAULT 'TODO',
		is_blocked                INTEGER NOT NULL DEFAULT 0,
		blocked_reason            TEXT,
		priority                  INTEGER,
		estimate_points           REAL,
		due_at                    TEXT,
		current_assignee_agent_id TEXT,
		created_by                TEXT,
		updated_by                TEXT,
		created_at                DATETIME NOT NULL,
		updated_at                DATETIME NOT NULL,
		started_at                DATETIME,
		completed_at              DATETIME
	);

	CREATE TABLE IF NOT EXISTS backlogs (
		id         TEXT PRIMARY KEY,
		project_id TEXT REFERENCES projects(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		kind       TEXT NOT NULL DEFAULT 'BACKLOG',
		status     TEXT NOT NULL DEFAULT 'ACTIVE',
		is_default INTEGER NOT NULL DEFAULT 0,
		goal       TEXT,
		start_date TEXT,
		end_date   TEXT,
		created_by TEXT,
		updated_by TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS backlog_stories (
		backlog_id TEXT NOT NULL REFERENCES backlogs(id) ON DELETE CASCADE,
		story_id   TEXT NOT NULL REFERENCES stories(id) ON DELETE CASCADE,
		position   INTEGER NOT NULL,
		added_at   DATETIME NOT NULL,
		PRIMARY KEY (backlog_id, story_id),
		UNIQUE(story_id)
	);

	CREATE TABLE IF NOT EXISTS backlog_tasks (
		backlog_id TEXT NOT NULL REFERENCES backlogs(id) ON DELETE CASCADE,
		task_id    TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		position   INTEGER NOT NULL,
		added_at   DATETIME NOT NULL,
		PRIMARY KEY (backlog_id, task_id),
		UNIQUE(task_id)
	);

	CREATE TABLE IF NOT EXISTS labels (
		id         TEXT PRIMARY KEY,
		project_id TEXT REFERENCES projects(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		color      TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS story_labels (
		story_id TEXT NOT NULL REFERENCES stories(id) ON DELETE CASCADE,
		label_id TEXT NOT NULL REFERENCES labels(id) ON DELETE CASCADE,
		PRIMARY KEY (story_id, label_id)
	);

	CREATE TABLE IF NOT EXISTS task_labels (
		task_id  TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		label_id TEXT NOT NULL REFERENCES labels(id) ON DELETE CASCADE,
		PRIMARY KEY (task_id, label_id)
	);

	CREATE TABLE IF NOT EXISTS agents (
		id             TEXT PRIMARY KEY,
		openclaw_key   TEXT NOT NULL UNIQUE,
		name           TEXT NOT NULL,
		role           TEXT,
		worker_type    TEXT,
		is_active      INTEGER NOT NULL DEFAULT 1,
		source         TEXT NOT NULL DEFAULT 'manual',
		last_synced_at DATETIME,
		created_at     DATETIME NOT NULL,
		updated_at     DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS task_assignments (
		id            TEXT PRIMARY KEY,
		task_id       TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		agent_id      TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
		assigned_at   DATETIME NOT NULL,
		unassigned_at DATETIME,
		assigned_by   TEXT,
		reason        TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_task_assignments_active
		ON task_assignments(task_id) WHERE unassigned_at IS NULL;

	CREATE TABLE IF NOT EXISTS imports (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at     DATETIME NOT NULL,
		finished_at    DATETIME,
		mode           TEXT NOT NULL,
		from_timestamp TEXT,
		to_timestamp   TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'running',
		error_message  TEXT
	);

	CREATE TABLE IF NOT EXISTS usage_daily_metrics (
		date          TEXT NOT NULL,
		model         TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens  INTEGER NOT NULL DEFAULT 0,
		request_count INTEGER NOT NULL DEFAULT 0,
		total_cost    REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (date, model)
	);

	CREATE TABLE IF NOT EXISTS usage_requests (
		id            TEXT PRIMARY KEY,
		trace_id      TEXT,
		name          TEXT,
		model         TEXT,
		started_at    TEXT,
		finished_at   TEXT,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens  INTEGER NOT NULL DEFAULT 0,
		cost          REAL,
		latency_ms    INTEGER
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Migrate existing databases: add new columns if missing.
	s.addColumnIfMissing("stories", "started_at", "DATETIME")
	s.addColumnIfMissing("tasks", "description", "TEXT")

	return nil
}

// addColumnIfMissing adds a column to a table if it doesn't exist yet.
// Used for schema migrations on existing databases.
func (s *Store) addColumnIfMissing(table, column, colDef string) {
	rows, err := s.db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue *string
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return
		}
		if name == column {
			return // Column already exists.
		}
	}

	s.db.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + colDef)
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) count(query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *Store) exists(query string, args ...any) (bool, error) {
	var one int
	err := s.db.QueryRow(query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return true, nil
}

// --- nullable scan helpers ---

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}
