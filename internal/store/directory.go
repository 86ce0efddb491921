package store

import (
	"database/sql"

	"github.com/foldersweep/dupefind/internal/errs"
)

// UpsertDirectoryNode inserts a directory node if its path isn't already
// known, and returns its id either way.
func (s *Store) UpsertDirectoryNode(path, name string, parentID *int64, totalSize, fileCount, depth int64) (int64, error) {
	if _, err := s.db.Exec(`
		INSERT OR IGNORE INTO directory_node (path, name, parent_id, total_size, file_count, depth)
		VALUES (?, ?, ?, ?, ?, ?)`,
		path, name, parentID, totalSize, fileCount, depth,
	); err != nil {
		return 0, errs.DatabaseErrorf(err, "upsert directory node %q", path)
	}

	var id int64
	if err := s.db.QueryRow(`SELECT id FROM directory_node WHERE path = ?`, path).Scan(&id); err != nil {
		return 0, errs.DatabaseErrorf(err, "read directory node id for %q", path)
	}
	return id, nil
}

// UpdateDirectoryAggregates writes back total_size/file_count for a
// directory after a rollup pass.
func (s *Store) UpdateDirectoryAggregates(directoryID, totalSize, fileCount int64) error {
	_, err := s.db.Exec(
		`UPDATE directory_node SET total_size = ?, file_count = ? WHERE id = ?`,
		totalSize, fileCount, directoryID,
	)
	if err != nil {
		return errs.DatabaseErrorf(err, "update aggregates for directory %d", directoryID)
	}
	return nil
}

// DirectoryByID returns a single directory node.
func (s *Store) DirectoryByID(id int64) (*DirectoryNode, error) {
	row := s.db.QueryRow(`
		SELECT id, path, name, parent_id, total_size, file_count, depth
		FROM directory_node WHERE id = ?`, id)
	n, err := scanDirectory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "load directory %d", id)
	}
	return n, nil
}

// DirectoryByPath returns a single directory node by its exact path.
func (s *Store) DirectoryByPath(path string) (*DirectoryNode, error) {
	row := s.db.QueryRow(`
		SELECT id, path, name, parent_id, total_size, file_count, depth
		FROM directory_node WHERE path = ?`, path)
	n, err := scanDirectory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "load directory %q", path)
	}
	return n, nil
}

// DirectoryChildren returns the direct children of parentID (or the roots,
// if parentID is nil), largest first, paginated.
func (s *Store) DirectoryChildren(parentID *int64, offset, limit int64) ([]*DirectoryNode, error) {
	var rows *sql.Rows
	var err error
	if parentID != nil {
		rows, err = s.db.Query(`
			SELECT id, path, name, parent_id, total_size, file_count, depth
			FROM directory_node WHERE parent_id = ?
			ORDER BY total_size DESC LIMIT ? OFFSET ?`, *parentID, limit, offset)
	} else {
		rows, err = s.db.Query(`
			SELECT id, path, name, parent_id, total_size, file_count, depth
			FROM directory_node WHERE parent_id IS NULL
			ORDER BY total_size DESC LIMIT ? OFFSET ?`, limit, offset)
	}
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "list directory children")
	}
	defer rows.Close()

	var nodes []*DirectoryNode
	for rows.Next() {
		n, err := scanDirectory(rows)
		if err != nil {
			return nil, errs.DatabaseErrorf(err, "scan directory row")
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// DirectoriesByDepth returns every directory at an exact depth, used by the
// fingerprinter's bottom-up, depth-batched rollup.
func (s *Store) DirectoriesByDepth(depth int64) ([]*DirectoryNode, error) {
	rows, err := s.db.Query(`
		SELECT id, path, name, parent_id, total_size, file_count, depth
		FROM directory_node WHERE depth = ?`, depth)
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "list directories at depth %d", depth)
	}
	defer rows.Close()

	var nodes []*DirectoryNode
	for rows.Next() {
		n, err := scanDirectory(rows)
		if err != nil {
			return nil, errs.DatabaseErrorf(err, "scan directory row")
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// MaxDirectoryDepth returns the deepest directory's depth, or -1 if there
// are no directories yet.
func (s *Store) MaxDirectoryDepth() (int64, error) {
	var depth sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(depth) FROM directory_node`).Scan(&depth); err != nil {
		return -1, errs.DatabaseErrorf(err, "read max directory depth")
	}
	if !depth.Valid {
		return -1, nil
	}
	return depth.Int64, nil
}

// FilesByParentDir returns every scanned file whose parent_dir is exactly
// dir (non-recursive), the leaf-level input to fingerprint aggregation.
func (s *Store) FilesByParentDir(dir string) ([]*ScannedFile, error) {
	rows, err := s.db.Query(`
		SELECT id, canonical_path, file_name, parent_dir, file_size, last_modified,
		       partial_hash, content_hash, last_seen_session_id, marked_deleted
		FROM scanned_file WHERE parent_dir = ?`, dir)
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "list files under %q", dir)
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

// DistinctParentDirs returns every distinct parent_dir value among scanned
// files, the seed set for hierarchy construction.
func (s *Store) DistinctParentDirs() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT parent_dir FROM scanned_file`)
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "list distinct parent directories")
	}
	defer rows.Close()

	var dirs []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, errs.DatabaseErrorf(err, "scan parent_dir row")
		}
		dirs = append(dirs, d)
	}
	return dirs, rows.Err()
}

func scanDirectory(row rowScanner) (*DirectoryNode, error) {
	var n DirectoryNode
	var parentID sql.NullInt64
	if err := row.Scan(&n.ID, &n.Path, &n.Name, &parentID, &n.TotalSize, &n.FileCount, &n.Depth); err != nil {
		return nil, err
	}
	if parentID.Valid {
		v := parentID.Int64
		n.ParentID = &v
	}
	return &n, nil
}
