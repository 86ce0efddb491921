package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/foldersweep/dupefind/internal/errs"
)

// CreateSession starts a new scan session in "running" status and returns
// its id.
func (s *Store) CreateSession(rootPaths []string) (int64, error) {
	paths, err := json.Marshal(rootPaths)
	if err != nil {
		return 0, errs.Otherf("marshal root paths: %v", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO scan_session (started_at, status, root_paths) VALUES (?, 'running', ?)`,
		time.Now().UTC().Format(time.RFC3339), string(paths),
	)
	if err != nil {
		return 0, errs.DatabaseErrorf(err, "create scan session")
	}
	return res.LastInsertId()
}

// CompleteSession marks a session completed with final scan totals.
func (s *Store) CompleteSession(sessionID, filesScanned, totalBytes int64) error {
	_, err := s.db.Exec(
		`UPDATE scan_session SET completed_at = ?, status = 'completed', files_scanned = ?, total_bytes = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), filesScanned, totalBytes, sessionID,
	)
	if err != nil {
		return errs.DatabaseErrorf(err, "complete scan session %d", sessionID)
	}
	return nil
}

// FailSession marks a session failed, preserving whatever totals were
// gathered before cancellation or error.
func (s *Store) FailSession(sessionID, filesScanned, totalBytes int64) error {
	_, err := s.db.Exec(
		`UPDATE scan_session SET completed_at = ?, status = 'failed', files_scanned = ?, total_bytes = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), filesScanned, totalBytes, sessionID,
	)
	if err != nil {
		return errs.DatabaseErrorf(err, "fail scan session %d", sessionID)
	}
	return nil
}

// LatestSession returns the most recently started session, or nil if none
// exists yet.
func (s *Store) LatestSession() (*ScanSession, error) {
	row := s.db.QueryRow(
		`SELECT id, started_at, completed_at, status, root_paths, files_scanned, total_bytes
		 FROM scan_session ORDER BY started_at DESC LIMIT 1`,
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "load latest session")
	}
	return sess, nil
}

// ListSessions returns sessions newest-first, paginated.
func (s *Store) ListSessions(offset, limit int64) ([]*ScanSession, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, completed_at, status, root_paths, files_scanned, total_bytes
		 FROM scan_session ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "list sessions")
	}
	defer rows.Close()

	var sessions []*ScanSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, errs.DatabaseErrorf(err, "scan session row")
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and everything scoped to it (its
// duplicate groups cascade; scanned_file rows survive since they may be
// referenced by later sessions, with their last_seen_session_id cleared if
// it pointed at this session).
func (s *Store) DeleteSession(sessionID int64) error {
	_, err := s.db.Exec(`DELETE FROM duplicate_group WHERE session_id = ?`, sessionID)
	if err != nil {
		return errs.DatabaseErrorf(err, "delete duplicate groups for session %d", sessionID)
	}
	_, err = s.db.Exec(`UPDATE scanned_file SET last_seen_session_id = NULL WHERE last_seen_session_id = ?`, sessionID)
	if err != nil {
		return errs.DatabaseErrorf(err, "detach scanned files from session %d", sessionID)
	}
	_, err = s.db.Exec(`DELETE FROM scan_session WHERE id = ?`, sessionID)
	if err != nil {
		return errs.DatabaseErrorf(err, "delete session %d", sessionID)
	}
	return nil
}

// DeleteAllSessions clears every session and all analysis derived from it —
// duplicate groups, directory nodes, fingerprints, similarities, and the
// deletion plan — while keeping every scanned_file row (only its
// last_seen_session_id is cleared).
func (s *Store) DeleteAllSessions() error {
	stmts := []string{
		`DELETE FROM deletion_plan`,
		`DELETE FROM directory_similarity`,
		`DELETE FROM directory_fingerprint`,
		`DELETE FROM directory_node`,
		`DELETE FROM duplicate_group`,
		`UPDATE scanned_file SET last_seen_session_id = NULL`,
		`DELETE FROM scan_session`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errs.DatabaseErrorf(err, "exec %q", stmt)
		}
	}
	return nil
}

func scanSession(row rowScanner) (*ScanSession, error) {
	var sess ScanSession
	var startedAt string
	var completedAt sql.NullString
	var rootPaths string

	if err := row.Scan(&sess.ID, &startedAt, &completedAt, &sess.Status, &rootPaths, &sess.FilesScanned, &sess.TotalBytes); err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return nil, err
	}
	sess.StartedAt = t

	if completedAt.Valid {
		if t, err := time.Parse(time.RFC3339, completedAt.String); err == nil {
			sess.CompletedAt = &t
		}
	}

	if err := json.Unmarshal([]byte(rootPaths), &sess.RootPaths); err != nil {
		return nil, err
	}

	return &sess, nil
}
