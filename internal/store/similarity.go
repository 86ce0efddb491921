package store

import (
	"github.com/foldersweep/dupefind/internal/errs"
)

// UpsertDirectorySimilarity stores a similarity pair, always normalizing to
// dirAID < dirBID so (a, b) and (b, a) collapse onto the same row.
func (s *Store) UpsertDirectorySimilarity(dirAID, dirBID int64, score float64, sharedBytes int64, matchType string) error {
	a, b := dirAID, dirBID
	if a > b {
		a, b = b, a
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO directory_similarity (dir_a_id, dir_b_id, similarity_score, shared_bytes, match_type)
		VALUES (?, ?, ?, ?, ?)`,
		a, b, score, sharedBytes, matchType,
	)
	if err != nil {
		return errs.DatabaseErrorf(err, "upsert similarity (%d, %d)", a, b)
	}
	return nil
}

// SimilarDirectories returns similarity pairs scoring at or above minScore,
// highest first, paginated, with both directories' paths joined in for
// display.
func (s *Store) SimilarDirectories(minScore float64, offset, limit int64) ([]*DirectorySimilarity, error) {
	rows, err := s.db.Query(`
		SELECT ds.id, ds.dir_a_id, ds.dir_b_id, da.path, db.path,
		       ds.similarity_score, ds.shared_bytes, ds.match_type
		FROM directory_similarity ds
		JOIN directory_node da ON da.id = ds.dir_a_id
		JOIN directory_node db ON db.id = ds.dir_b_id
		WHERE ds.similarity_score >= ?
		ORDER BY ds.similarity_score DESC
		LIMIT ? OFFSET ?`, minScore, limit, offset,
	)
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "list similar directories")
	}
	defer rows.Close()

	var pairs []*DirectorySimilarity
	for rows.Next() {
		var p DirectorySimilarity
		if err := rows.Scan(&p.ID, &p.DirAID, &p.DirBID, &p.DirAPath, &p.DirBPath,
			&p.SimilarityScore, &p.SharedBytes, &p.MatchType); err != nil {
			return nil, errs.DatabaseErrorf(err, "scan similarity row")
		}
		pairs = append(pairs, &p)
	}
	return pairs, rows.Err()
}
