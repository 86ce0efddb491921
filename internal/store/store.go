package store

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/foldersweep/dupefind/internal/errs"
)

// Store wraps a SQLite connection configured for this module's workload:
// WAL journaling, a single writer, and a schema that's cheap to drop and
// recreate rather than migrate incrementally.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and brings its
// schema up to date. Use ":memory:" for an ephemeral in-process database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "open database %q", path)
	}

	// SQLite serializes writers internally; a single connection avoids
	// SQLITE_BUSY from competing writers inside this process.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(strings.TrimSpace(pragmas)); err != nil {
		_ = db.Close()
		return nil, errs.DatabaseErrorf(err, "configure pragmas")
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errs.DatabaseErrorf(err, "close database")
	}
	return nil
}

// TruncateAll deletes every row from every table without dropping the
// schema, leaving an empty database ready for a fresh scan.
func (s *Store) TruncateAll() error {
	_, err := s.db.Exec(`
		DELETE FROM deletion_plan;
		DELETE FROM directory_similarity;
		DELETE FROM directory_fingerprint;
		DELETE FROM directory_node;
		DELETE FROM duplicate_group_member;
		DELETE FROM duplicate_group;
		DELETE FROM scanned_file;
		DELETE FROM scan_session;
	`)
	if err != nil {
		return errs.DatabaseErrorf(err, "truncate tables")
	}
	return nil
}
