package store

import (
	"database/sql"
	"path/filepath"
	"time"

	"github.com/foldersweep/dupefind/internal/errs"
	"github.com/foldersweep/dupefind/internal/types"
)

// InsertScannedFiles records a batch of discovered files in a single
// transaction, skipping any whose canonical_path already exists. It returns
// the number of rows actually inserted.
func (s *Store) InsertScannedFiles(sessionID int64, files []*types.FileInfo, partialHashes, contentHashes map[string]uint64) (int64, error) {
	if len(files) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, errs.DatabaseErrorf(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO scanned_file
			(canonical_path, file_name, parent_dir, file_size, last_modified, partial_hash, content_hash, last_seen_session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, errs.DatabaseErrorf(err, "prepare insert")
	}
	defer stmt.Close()

	var inserted int64
	for _, f := range files {
		var partial, content sql.NullInt64
		if h, ok := partialHashes[f.Path]; ok {
			partial = sql.NullInt64{Int64: int64(h), Valid: true}
		}
		if h, ok := contentHashes[f.Path]; ok {
			content = sql.NullInt64{Int64: int64(h), Valid: true}
		}

		res, err := stmt.Exec(
			f.Path, filepath.Base(f.Path), filepath.Dir(f.Path), f.Size,
			f.ModTime.UnixNano(), partial, content, sessionID,
		)
		if err != nil {
			return 0, errs.DatabaseErrorf(err, "insert scanned file %q", f.Path)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.DatabaseErrorf(err, "commit scanned files")
	}
	return inserted, nil
}

// FileByPath returns the scanned_file row for an exact canonical path, or
// nil if it doesn't exist.
func (s *Store) FileByPath(path string) (*ScannedFile, error) {
	row := s.db.QueryRow(`
		SELECT id, canonical_path, file_name, parent_dir, file_size, last_modified,
		       partial_hash, content_hash, last_seen_session_id, marked_deleted
		FROM scanned_file WHERE canonical_path = ?`, path)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "load file %q", path)
	}
	return f, nil
}

// FileByID returns the scanned_file row for an id, or nil if it doesn't
// exist.
func (s *Store) FileByID(id int64) (*ScannedFile, error) {
	row := s.db.QueryRow(`
		SELECT id, canonical_path, file_name, parent_dir, file_size, last_modified,
		       partial_hash, content_hash, last_seen_session_id, marked_deleted
		FROM scanned_file WHERE id = ?`, id)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "load file %d", id)
	}
	return f, nil
}

// FilesUnderPrefix returns every scanned file whose canonical path is dir
// itself or a descendant of it. The prefix is normalized to end in a path
// separator so "/foo" never matches "/foobar".
func (s *Store) FilesUnderPrefix(dir string) ([]*ScannedFile, error) {
	prefix := dir
	if !hasTrailingSeparator(prefix) {
		prefix += string(filepath.Separator)
	}

	rows, err := s.db.Query(`
		SELECT id, canonical_path, file_name, parent_dir, file_size, last_modified,
		       partial_hash, content_hash, last_seen_session_id, marked_deleted
		FROM scanned_file WHERE canonical_path = ? OR canonical_path LIKE ? ESCAPE '\'`,
		dir, escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "query files under %q", dir)
	}
	defer rows.Close()

	var files []*ScannedFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, errs.DatabaseErrorf(err, "scan file row")
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// SetMarkedDeleted updates the marked_deleted flag for a file.
func (s *Store) SetMarkedDeleted(fileID int64, marked bool) error {
	_, err := s.db.Exec(`UPDATE scanned_file SET marked_deleted = ? WHERE id = ?`, marked, fileID)
	if err != nil {
		return errs.DatabaseErrorf(err, "set marked_deleted for file %d", fileID)
	}
	return nil
}

func hasTrailingSeparator(p string) bool {
	return len(p) > 0 && p[len(p)-1] == filepath.Separator
}

// escapeLike escapes SQL LIKE metacharacters so a literal prefix never
// acts as a pattern.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', '%', '_':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*ScannedFile, error) {
	var f ScannedFile
	var lastModifiedNano int64
	var partial, content sql.NullInt64
	var lastSeenSession sql.NullInt64

	if err := row.Scan(
		&f.ID, &f.CanonicalPath, &f.FileName, &f.ParentDir, &f.FileSize, &lastModifiedNano,
		&partial, &content, &lastSeenSession, &f.MarkedDeleted,
	); err != nil {
		return nil, err
	}

	f.LastModified = time.Unix(0, lastModifiedNano)
	if partial.Valid {
		v := uint64(partial.Int64)
		f.PartialHash = &v
	}
	if content.Valid {
		v := uint64(content.Int64)
		f.ContentHash = &v
	}
	if lastSeenSession.Valid {
		v := lastSeenSession.Int64
		f.LastSeenSessionID = &v
	}

	return &f, nil
}
