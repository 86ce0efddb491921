package store

import (
	"database/sql"

	"github.com/foldersweep/dupefind/internal/errs"
)

// InsertDuplicateGroups persists confirmed duplicate groups (keyed by
// content hash) for a session, linking each member file by canonical path.
// It returns the number of groups inserted.
func (s *Store) InsertDuplicateGroups(sessionID int64, groups map[uint64][]string) (int, error) {
	if len(groups) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, errs.DatabaseErrorf(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	groupStmt, err := tx.Prepare(`
		INSERT INTO duplicate_group (session_id, content_hash, file_size, file_count, wasted_bytes)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, errs.DatabaseErrorf(err, "prepare group insert")
	}
	defer groupStmt.Close()

	memberStmt, err := tx.Prepare(`
		INSERT INTO duplicate_group_member (group_id, file_id)
		SELECT ?, id FROM scanned_file WHERE canonical_path = ?
	`)
	if err != nil {
		return 0, errs.DatabaseErrorf(err, "prepare member insert")
	}
	defer memberStmt.Close()

	var count int
	for hash, paths := range groups {
		if len(paths) < 2 {
			continue
		}

		fileSize, err := fileSizeForPath(tx, paths[0])
		if err != nil {
			return 0, err
		}
		fileCount := int64(len(paths))
		wastedBytes := fileSize * (fileCount - 1)

		res, err := groupStmt.Exec(sessionID, int64(hash), fileSize, fileCount, wastedBytes)
		if err != nil {
			return 0, errs.DatabaseErrorf(err, "insert duplicate group for hash %x", hash)
		}
		groupID, err := res.LastInsertId()
		if err != nil {
			return 0, errs.DatabaseErrorf(err, "read group id")
		}

		for _, path := range paths {
			if _, err := memberStmt.Exec(groupID, path); err != nil {
				return 0, errs.DatabaseErrorf(err, "link member %q to group %d", path, groupID)
			}
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.DatabaseErrorf(err, "commit duplicate groups")
	}
	return count, nil
}

func fileSizeForPath(tx *sql.Tx, path string) (int64, error) {
	var size int64
	if err := tx.QueryRow(`SELECT file_size FROM scanned_file WHERE canonical_path = ?`, path).Scan(&size); err != nil {
		return 0, errs.DatabaseErrorf(err, "read file size for %q", path)
	}
	return size, nil
}

// DuplicateGroups returns duplicate groups ordered by wasted bytes
// descending, so the worst offenders surface first.
func (s *Store) DuplicateGroups(offset, limit int64) ([]*DuplicateGroup, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, content_hash, file_size, file_count, wasted_bytes
		FROM duplicate_group ORDER BY wasted_bytes DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "list duplicate groups")
	}
	defer rows.Close()

	var groups []*DuplicateGroup
	for rows.Next() {
		var g DuplicateGroup
		var contentHash int64
		if err := rows.Scan(&g.ID, &g.SessionID, &contentHash, &g.FileSize, &g.FileCount, &g.WastedBytes); err != nil {
			return nil, errs.DatabaseErrorf(err, "scan duplicate group row")
		}
		g.ContentHash = uint64(contentHash)
		groups = append(groups, &g)
	}
	return groups, rows.Err()
}

// FilesInGroup returns the scanned files belonging to a duplicate group,
// paginated.
func (s *Store) FilesInGroup(groupID, offset, limit int64) ([]*ScannedFile, error) {
	rows, err := s.db.Query(`
		SELECT sf.id, sf.canonical_path, sf.file_name, sf.parent_dir, sf.file_size, sf.last_modified,
		       sf.partial_hash, sf.content_hash, sf.last_seen_session_id, sf.marked_deleted
		FROM scanned_file sf
		JOIN duplicate_group_member dgm ON sf.id = dgm.file_id
		WHERE dgm.group_id = ?
		LIMIT ? OFFSET ?`, groupID, limit, offset,
	)
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "list files in group %d", groupID)
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

// DuplicateGroupCount returns the total number of duplicate groups.
func (s *Store) DuplicateGroupCount() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM duplicate_group`).Scan(&n); err != nil {
		return 0, errs.DatabaseErrorf(err, "count duplicate groups")
	}
	return n, nil
}

// TotalWastedBytes sums wasted_bytes across every duplicate group.
func (s *Store) TotalWastedBytes() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COALESCE(SUM(wasted_bytes), 0) FROM duplicate_group`).Scan(&n); err != nil {
		return 0, errs.DatabaseErrorf(err, "sum wasted bytes")
	}
	return n, nil
}
