package store

import (
	"database/sql"
	"time"

	"github.com/foldersweep/dupefind/internal/errs"
)

// MarkFileForDeletion adds or replaces a file's deletion-plan entry.
func (s *Store) MarkFileForDeletion(fileID int64, strategy string) error {
	var strategyArg any
	if strategy != "" {
		strategyArg = strategy
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO deletion_plan (file_id, marked_at, strategy)
		VALUES (?, ?, ?)`,
		fileID, time.Now().UTC().Format(time.RFC3339), strategyArg,
	)
	if err != nil {
		return errs.DatabaseErrorf(err, "mark file %d for deletion", fileID)
	}
	return nil
}

// UnmarkFileForDeletion removes a file's deletion-plan entry, if any.
func (s *Store) UnmarkFileForDeletion(fileID int64) error {
	_, err := s.db.Exec(`DELETE FROM deletion_plan WHERE file_id = ?`, fileID)
	if err != nil {
		return errs.DatabaseErrorf(err, "unmark file %d for deletion", fileID)
	}
	return nil
}

// PendingDeletionPlan returns every deletion-plan entry not yet executed.
func (s *Store) PendingDeletionPlan() ([]*DeletionPlanEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, file_id, marked_at, strategy, executed_at, execution_result
		FROM deletion_plan WHERE executed_at IS NULL`)
	if err != nil {
		return nil, errs.DatabaseErrorf(err, "list pending deletion plan")
	}
	defer rows.Close()

	var entries []*DeletionPlanEntry
	for rows.Next() {
		e, err := scanDeletionEntry(rows)
		if err != nil {
			return nil, errs.DatabaseErrorf(err, "scan deletion plan row")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordDeletionOutcome stamps a deletion-plan entry with its execution
// result once Execute has attempted it.
func (s *Store) RecordDeletionOutcome(entryID int64, result string) error {
	_, err := s.db.Exec(`
		UPDATE deletion_plan SET executed_at = ?, execution_result = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), result, entryID,
	)
	if err != nil {
		return errs.DatabaseErrorf(err, "record deletion outcome for entry %d", entryID)
	}
	return nil
}

// DeletionPlanSummary returns the count and total bytes of files currently
// pending deletion.
func (s *Store) DeletionPlanSummary() (count, totalBytes int64, err error) {
	row := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(sf.file_size), 0)
		FROM deletion_plan dp
		JOIN scanned_file sf ON dp.file_id = sf.id
		WHERE dp.executed_at IS NULL`)
	if err := row.Scan(&count, &totalBytes); err != nil {
		return 0, 0, errs.DatabaseErrorf(err, "summarize deletion plan")
	}
	return count, totalBytes, nil
}

func scanDeletionEntry(row rowScanner) (*DeletionPlanEntry, error) {
	var e DeletionPlanEntry
	var markedAt string
	var strategy, executedAt, result sql.NullString

	if err := row.Scan(&e.ID, &e.FileID, &markedAt, &strategy, &executedAt, &result); err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339, markedAt)
	if err != nil {
		return nil, err
	}
	e.MarkedAt = t

	if strategy.Valid {
		v := strategy.String
		e.Strategy = &v
	}
	if executedAt.Valid {
		t, err := time.Parse(time.RFC3339, executedAt.String)
		if err == nil {
			e.ExecutedAt = &t
		}
	}
	if result.Valid {
		v := result.String
		e.ExecutionResult = &v
	}

	return &e, nil
}
