// Package deletionplan marks files for deletion, keeps an auditable plan of
// what will be removed, and executes it — permanently or via the desktop
// trash.
//
// # Processing Pipeline
//
//	Mark (file or directory prefix) ──► deletion_plan rows (pending)
//	    │
//	    └──► Execute(useTrash)
//	             │
//	             ├──► stat file: missing  → outcome "file_missing"
//	             ├──► remove or trash     → outcome "success" / "trashed"
//	             └──► error               → outcome carries the error text
//
// # Safety
//
//   - Prefix matching is normalized so marking "/foo" never matches
//     "/foobar" — see Store.FilesUnderPrefix.
//   - Every entry's outcome is recorded in the deletion_plan table, so a
//     partial run can be audited or resumed.
package deletionplan

import (
	"fmt"
	"os"
	"sort"

	"github.com/foldersweep/dupefind/internal/store"
)

// Outcome labels persisted to deletion_plan.execution_result.
const (
	outcomeSuccess     = "success"
	outcomeTrashed     = "trashed"
	outcomeFileMissing = "file_missing"
)

// Planner marks files for deletion and executes the resulting plan.
type Planner struct {
	store *store.Store
}

// New creates a Planner backed by s.
func New(s *store.Store) *Planner {
	return &Planner{store: s}
}

// MarkFile marks a single file for deletion with the given strategy label
// ("trash", "permanent", or "" for unspecified).
func (p *Planner) MarkFile(fileID int64, strategy string) error {
	return p.store.MarkFileForDeletion(fileID, strategy)
}

// UnmarkFile removes a file's pending deletion entry, if any.
func (p *Planner) UnmarkFile(fileID int64) error {
	return p.store.UnmarkFileForDeletion(fileID)
}

// MarkDirectory marks every file under directoryPath (itself and any
// descendant) for deletion, returning the number of files marked.
func (p *Planner) MarkDirectory(directoryPath, strategy string) (int, error) {
	files, err := p.store.FilesUnderPrefix(directoryPath)
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		if err := p.store.MarkFileForDeletion(f.ID, strategy); err != nil {
			return 0, err
		}
	}
	return len(files), nil
}

// UnmarkDirectory removes the pending deletion entry for every file under
// directoryPath.
func (p *Planner) UnmarkDirectory(directoryPath string) (int, error) {
	files, err := p.store.FilesUnderPrefix(directoryPath)
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		if err := p.store.UnmarkFileForDeletion(f.ID); err != nil {
			return 0, err
		}
	}
	return len(files), nil
}

// AutoMarkDuplicates marks every file in every duplicate group from the
// given session for deletion except the lexicographically first path in
// each group, returning the number of files marked.
func (p *Planner) AutoMarkDuplicates(sessionID int64, strategy string) (int, error) {
	groups, err := p.store.DuplicateGroups(0, 1<<31-1)
	if err != nil {
		return 0, err
	}

	var marked int
	for _, g := range groups {
		if g.SessionID != sessionID {
			continue
		}

		files, err := p.store.FilesInGroup(g.ID, 0, 1<<31-1)
		if err != nil {
			return marked, err
		}
		if len(files) <= 1 {
			continue
		}

		sort.Slice(files, func(i, j int) bool { return files[i].CanonicalPath < files[j].CanonicalPath })

		for _, f := range files[1:] {
			if err := p.store.MarkFileForDeletion(f.ID, strategy); err != nil {
				return marked, err
			}
			marked++
		}
	}

	return marked, nil
}

// Summary returns the count and total bytes of files currently pending
// deletion.
func (p *Planner) Summary() (count, totalBytes int64, err error) {
	return p.store.DeletionPlanSummary()
}

// EntryResult is the outcome of executing one deletion-plan entry.
type EntryResult struct {
	FileID int64
	Path   string
	Result string
	Err    error
}

// Execute runs every pending deletion-plan entry, removing each file
// permanently or moving it to the trash depending on useTrash (an entry
// marked with strategy "permanent" is always removed permanently), and records
// the outcome of each attempt. It returns per-entry results so callers can
// report or audit what happened; a file-level error never aborts the run.
func (p *Planner) Execute(useTrash bool) ([]EntryResult, error) {
	pending, err := p.store.PendingDeletionPlan()
	if err != nil {
		return nil, err
	}

	results := make([]EntryResult, 0, len(pending))

	for _, entry := range pending {
		result := p.executeEntry(entry, useTrash)
		results = append(results, result)

		outcome := result.Result
		if result.Err != nil {
			outcome = result.Err.Error()
		}
		if err := p.store.RecordDeletionOutcome(entry.ID, outcome); err != nil {
			return results, err
		}
		if result.Result == outcomeSuccess || result.Result == outcomeTrashed {
			if err := p.store.SetMarkedDeleted(entry.FileID, true); err != nil {
				return results, err
			}
		}
	}

	return results, nil
}

func (p *Planner) executeEntry(entry *store.DeletionPlanEntry, useTrash bool) EntryResult {
	file, err := p.store.FileByID(entry.FileID)
	if err != nil {
		return EntryResult{FileID: entry.FileID, Result: "error", Err: err}
	}
	if file == nil {
		return EntryResult{FileID: entry.FileID, Result: outcomeFileMissing}
	}

	if _, statErr := os.Stat(file.CanonicalPath); os.IsNotExist(statErr) {
		return EntryResult{FileID: entry.FileID, Path: file.CanonicalPath, Result: outcomeFileMissing}
	}

	strategy := useTrash
	if entry.Strategy != nil && *entry.Strategy == "permanent" {
		strategy = false
	}

	if strategy {
		if err := moveToTrash(file.CanonicalPath); err != nil {
			return EntryResult{FileID: entry.FileID, Path: file.CanonicalPath, Result: "error", Err: err}
		}
		return EntryResult{FileID: entry.FileID, Path: file.CanonicalPath, Result: outcomeTrashed}
	}

	if err := os.Remove(file.CanonicalPath); err != nil {
		return EntryResult{FileID: entry.FileID, Path: file.CanonicalPath, Result: "error", Err: err}
	}
	return EntryResult{FileID: entry.FileID, Path: file.CanonicalPath, Result: outcomeSuccess}
}

// String renders an EntryResult the way a verbose execution report would.
func (r EntryResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", r.Path, r.Result, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Path, r.Result)
}
