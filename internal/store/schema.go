package store

import (
	"database/sql"
	"fmt"

	"github.com/foldersweep/dupefind/internal/errs"
)

// schemaVersion is recorded in PRAGMA user_version. Bumping it drops and
// recreates every table on the next Open, since everything here is derived
// from a scan and cheap to recompute.
const schemaVersion = 2

const pragmas = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA cache_size = -64000;
PRAGMA mmap_size = 268435456;
PRAGMA busy_timeout = 5000;
`

const schemaDDL = `
CREATE TABLE IF NOT EXISTS scan_session (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at     TEXT NOT NULL,
	completed_at   TEXT,
	status         TEXT NOT NULL DEFAULT 'running',
	root_paths     TEXT NOT NULL,
	files_scanned  INTEGER NOT NULL DEFAULT 0,
	total_bytes    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS scanned_file (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	canonical_path        TEXT NOT NULL UNIQUE,
	file_name             TEXT NOT NULL,
	parent_dir            TEXT NOT NULL,
	file_size             INTEGER NOT NULL,
	last_modified         INTEGER NOT NULL,
	partial_hash          INTEGER,
	content_hash          INTEGER,
	last_seen_session_id  INTEGER REFERENCES scan_session(id),
	marked_deleted        INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_scanned_file_parent_dir ON scanned_file(parent_dir);
CREATE INDEX IF NOT EXISTS idx_scanned_file_content_hash ON scanned_file(content_hash);

CREATE TABLE IF NOT EXISTS duplicate_group (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    INTEGER NOT NULL REFERENCES scan_session(id),
	content_hash  INTEGER NOT NULL,
	file_size     INTEGER NOT NULL,
	file_count    INTEGER NOT NULL,
	wasted_bytes  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_duplicate_group_session ON duplicate_group(session_id);

CREATE TABLE IF NOT EXISTS duplicate_group_member (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id  INTEGER NOT NULL REFERENCES duplicate_group(id) ON DELETE CASCADE,
	file_id   INTEGER NOT NULL REFERENCES scanned_file(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_dup_member_group ON duplicate_group_member(group_id);
CREATE INDEX IF NOT EXISTS idx_dup_member_file ON duplicate_group_member(file_id);

CREATE TABLE IF NOT EXISTS directory_node (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	path        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	parent_id   INTEGER REFERENCES directory_node(id),
	total_size  INTEGER NOT NULL DEFAULT 0,
	file_count  INTEGER NOT NULL DEFAULT 0,
	depth       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_directory_node_parent ON directory_node(parent_id);

CREATE TABLE IF NOT EXISTS directory_fingerprint (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	directory_id         INTEGER NOT NULL UNIQUE REFERENCES directory_node(id) ON DELETE CASCADE,
	content_fingerprint  TEXT NOT NULL,
	file_hash_set        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dir_fingerprint_fp ON directory_fingerprint(content_fingerprint);

CREATE TABLE IF NOT EXISTS directory_similarity (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	dir_a_id          INTEGER NOT NULL REFERENCES directory_node(id) ON DELETE CASCADE,
	dir_b_id          INTEGER NOT NULL REFERENCES directory_node(id) ON DELETE CASCADE,
	similarity_score  REAL NOT NULL,
	shared_bytes      INTEGER NOT NULL,
	match_type        TEXT NOT NULL,
	UNIQUE(dir_a_id, dir_b_id)
);

CREATE TABLE IF NOT EXISTS deletion_plan (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id           INTEGER NOT NULL UNIQUE REFERENCES scanned_file(id) ON DELETE CASCADE,
	marked_at         TEXT NOT NULL,
	strategy          TEXT,
	executed_at       TEXT,
	execution_result  TEXT
);
`

// migrate checks PRAGMA user_version and, if it's behind schemaVersion,
// drops every table and recreates them from schemaDDL. Every table here is
// derived from a scan, so dropping and recreating is simpler and safer than
// an incremental ALTER-based migration.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errs.DatabaseErrorf(err, "read schema version")
	}

	if version < schemaVersion {
		if _, err := db.Exec(`
			DROP TABLE IF EXISTS deletion_plan;
			DROP TABLE IF EXISTS directory_similarity;
			DROP TABLE IF EXISTS directory_fingerprint;
			DROP TABLE IF EXISTS directory_node;
			DROP TABLE IF EXISTS duplicate_group_member;
			DROP TABLE IF EXISTS duplicate_group;
			DROP TABLE IF EXISTS scanned_file;
			DROP TABLE IF EXISTS scan_session;
		`); err != nil {
			return errs.DatabaseErrorf(err, "drop stale schema")
		}
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		return errs.DatabaseErrorf(err, "create schema")
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return errs.DatabaseErrorf(err, "write schema version")
	}

	return nil
}
