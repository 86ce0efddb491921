package store

import (
	"database/sql"

	"github.com/foldersweep/dupefind/internal/errs"
)

// UpsertDirectoryFingerprint stores (or replaces) a directory's content
// fingerprint and its backing hash set.
func (s *Store) UpsertDirectoryFingerprint(directoryID int64, contentFingerprint, fileHashSet string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO directory_fingerprint (directory_id, content_fingerprint, file_hash_set)
		VALUES (?, ?, ?)`,
		directoryID, contentFingerprint, fileHashSet,
	)
	if err != nil {
		return errs.DatabaseErrorf(err, "upsert fingerprint for directory %d", directoryID)
	}
	return nil
}

// FingerprintByDirectory returns the fingerprint for one directory, or nil
// if it hasn't been computed.
func (s *Store) FingerprintByDirectory(directoryID int64) (*DirectoryFingerprint, error) {
	row := s.db.QueryRow(`
		SELECT id, directory_id, content_fingerprint, file_hash_set
		FROM directory_fingerprint WHERE directory_id = ?`, directoryID)

	var fp DirectoryFingerprint
	err := row.Scan(&fp.ID, &fp.DirectoryID, &fp.ContentFingerprint, &fp.FileHashSet)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "load fingerprint for directory %d", directoryID)
	}
	return &fp, nil
}

// AllFingerprints returns every computed directory fingerprint, the input
// set for the similarity engine's inverted index.
func (s *Store) AllFingerprints() ([]*DirectoryFingerprint, error) {
	rows, err := s.db.Query(`SELECT id, directory_id, content_fingerprint, file_hash_set FROM directory_fingerprint`)
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "list fingerprints")
	}
	defer rows.Close()

	var fps []*DirectoryFingerprint
	for rows.Next() {
		var fp DirectoryFingerprint
		if err := rows.Scan(&fp.ID, &fp.DirectoryID, &fp.ContentFingerprint, &fp.FileHashSet); err != nil {
			return nil, errs.DatabaseErrorf(err, "scan fingerprint row")
		}
		fps = append(fps, &fp)
	}
	return fps, rows.Err()
}

// ExactFingerprintGroups returns directory ids grouped by identical content
// fingerprint, restricted to groups with 2+ members — the input to the
// "exact" match pass that runs after Jaccard scoring.
func (s *Store) ExactFingerprintGroups() (map[string][]int64, error) {
	rows, err := s.db.Query(`
		SELECT content_fingerprint, directory_id FROM directory_fingerprint
		ORDER BY content_fingerprint`)
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "group directories by fingerprint")
	}
	defer rows.Close()

	groups := make(map[string][]int64)
	for rows.Next() {
		var fp string
		var dirID int64
		if err := rows.Scan(&fp, &dirID); err != nil {
			return nil, errs.DatabaseErrorf(err, "scan fingerprint group row")
		}
		groups[fp] = append(groups[fp], dirID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for fp, ids := range groups {
		if len(ids) < 2 {
			delete(groups, fp)
		}
	}
	return groups, nil
}
