package store

import (
	"testing"

	"github.com/foldersweep/dupefind/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	s := openTestStore(t)

	id, err := s.CreateSession([]string{"/data"})
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero session id")
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)

	id, err := s.CreateSession([]string{"/a", "/b"})
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}

	latest, err := s.LatestSession()
	if err != nil {
		t.Fatalf("LatestSession() failed: %v", err)
	}
	if latest == nil || latest.ID != id {
		t.Fatalf("expected latest session to be %d, got %+v", id, latest)
	}
	if latest.Status != "running" {
		t.Errorf("expected status running, got %q", latest.Status)
	}

	if err := s.CompleteSession(id, 42, 1024); err != nil {
		t.Fatalf("CompleteSession() failed: %v", err)
	}

	latest, err = s.LatestSession()
	if err != nil {
		t.Fatalf("LatestSession() failed: %v", err)
	}
	if latest.Status != "completed" || latest.FilesScanned != 42 {
		t.Errorf("expected completed session with 42 files, got %+v", latest)
	}
}

func TestDeleteAllSessionsKeepsFiles(t *testing.T) {
	s := openTestStore(t)

	sessionID, err := s.CreateSession([]string{"/a"})
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}

	files := []*types.FileInfo{
		{Path: "/a/1.txt", Size: 10},
		{Path: "/a/2.txt", Size: 10},
	}
	if _, err := s.InsertScannedFiles(sessionID, files, nil, nil); err != nil {
		t.Fatalf("InsertScannedFiles() failed: %v", err)
	}
	if _, err := s.InsertDuplicateGroups(sessionID, map[uint64][]string{1: {"/a/1.txt", "/a/2.txt"}}); err != nil {
		t.Fatalf("InsertDuplicateGroups() failed: %v", err)
	}

	rootID, err := s.UpsertDirectoryNode("/a", "a", nil, 20, 2, 0)
	if err != nil {
		t.Fatalf("UpsertDirectoryNode() failed: %v", err)
	}
	otherID, err := s.UpsertDirectoryNode("/b", "b", nil, 20, 2, 0)
	if err != nil {
		t.Fatalf("UpsertDirectoryNode() failed: %v", err)
	}
	if err := s.UpsertDirectoryFingerprint(rootID, "deadbeefdeadbeef", `[1]`); err != nil {
		t.Fatalf("UpsertDirectoryFingerprint() failed: %v", err)
	}
	if err := s.UpsertDirectorySimilarity(rootID, otherID, 1.0, 10, "exact"); err != nil {
		t.Fatalf("UpsertDirectorySimilarity() failed: %v", err)
	}

	f, err := s.FileByPath("/a/1.txt")
	if err != nil || f == nil {
		t.Fatalf("FileByPath() failed: %v", err)
	}
	if err := s.MarkFileForDeletion(f.ID, "trash"); err != nil {
		t.Fatalf("MarkFileForDeletion() failed: %v", err)
	}

	if err := s.DeleteAllSessions(); err != nil {
		t.Fatalf("DeleteAllSessions() failed: %v", err)
	}

	kept, err := s.FileByPath("/a/1.txt")
	if err != nil {
		t.Fatalf("FileByPath() failed: %v", err)
	}
	if kept == nil {
		t.Error("expected scanned_file rows to survive session deletion")
	}

	if latest, err := s.LatestSession(); err != nil || latest != nil {
		t.Errorf("expected no sessions after DeleteAllSessions, got %+v (err %v)", latest, err)
	}
	if groups, err := s.DuplicateGroups(0, 10); err != nil || len(groups) != 0 {
		t.Errorf("expected no duplicate groups after DeleteAllSessions, got %v (err %v)", groups, err)
	}
	if children, err := s.DirectoryChildren(nil, 0, 10); err != nil || len(children) != 0 {
		t.Errorf("expected no directory nodes after DeleteAllSessions, got %v (err %v)", children, err)
	}
	if exact, err := s.ExactFingerprintGroups(); err != nil || len(exact) != 0 {
		t.Errorf("expected no directory fingerprints after DeleteAllSessions, got %v (err %v)", exact, err)
	}
	if pairs, err := s.SimilarDirectories(0, 0, 10); err != nil || len(pairs) != 0 {
		t.Errorf("expected no directory similarities after DeleteAllSessions, got %v (err %v)", pairs, err)
	}
	if count, _, err := s.DeletionPlanSummary(); err != nil || count != 0 {
		t.Errorf("expected empty deletion plan after DeleteAllSessions, got count=%d (err %v)", count, err)
	}
}

func TestInsertScannedFilesIgnoresDuplicatePaths(t *testing.T) {
	s := openTestStore(t)
	sessionID, _ := s.CreateSession([]string{"/a"})

	files := []*types.FileInfo{{Path: "/a/1.txt", Size: 10}}
	n1, err := s.InsertScannedFiles(sessionID, files, nil, nil)
	if err != nil {
		t.Fatalf("InsertScannedFiles() failed: %v", err)
	}
	if n1 != 1 {
		t.Fatalf("expected 1 row inserted, got %d", n1)
	}

	n2, err := s.InsertScannedFiles(sessionID, files, nil, nil)
	if err != nil {
		t.Fatalf("second InsertScannedFiles() failed: %v", err)
	}
	if n2 != 0 {
		t.Errorf("expected re-inserting the same path to insert 0 rows, got %d", n2)
	}
}

func TestDuplicateGroupsOrderedByWastedBytes(t *testing.T) {
	s := openTestStore(t)
	sessionID, _ := s.CreateSession([]string{"/a"})

	files := []*types.FileInfo{
		{Path: "/a/small1.txt", Size: 10},
		{Path: "/a/small2.txt", Size: 10},
		{Path: "/a/big1.txt", Size: 1000},
		{Path: "/a/big2.txt", Size: 1000},
		{Path: "/a/big3.txt", Size: 1000},
	}
	if _, err := s.InsertScannedFiles(sessionID, files, nil, nil); err != nil {
		t.Fatalf("InsertScannedFiles() failed: %v", err)
	}

	groups := map[uint64][]string{
		1: {"/a/small1.txt", "/a/small2.txt"},
		2: {"/a/big1.txt", "/a/big2.txt", "/a/big3.txt"},
	}
	n, err := s.InsertDuplicateGroups(sessionID, groups)
	if err != nil {
		t.Fatalf("InsertDuplicateGroups() failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 groups inserted, got %d", n)
	}

	result, err := s.DuplicateGroups(0, 10)
	if err != nil {
		t.Fatalf("DuplicateGroups() failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(result))
	}
	if result[0].WastedBytes < result[1].WastedBytes {
		t.Errorf("expected groups ordered by wasted_bytes descending, got %+v", result)
	}

	total, err := s.TotalWastedBytes()
	if err != nil {
		t.Fatalf("TotalWastedBytes() failed: %v", err)
	}
	if total != 10+2000 {
		t.Errorf("expected total wasted bytes %d, got %d", 10+2000, total)
	}
}

func TestFilesUnderPrefixDoesNotMatchSimilarNames(t *testing.T) {
	s := openTestStore(t)
	sessionID, _ := s.CreateSession([]string{"/"})

	files := []*types.FileInfo{
		{Path: "/foo/a.txt", Size: 1},
		{Path: "/foo/b.txt", Size: 1},
		{Path: "/foobar/c.txt", Size: 1},
	}
	if _, err := s.InsertScannedFiles(sessionID, files, nil, nil); err != nil {
		t.Fatalf("InsertScannedFiles() failed: %v", err)
	}

	under, err := s.FilesUnderPrefix("/foo")
	if err != nil {
		t.Fatalf("FilesUnderPrefix() failed: %v", err)
	}
	if len(under) != 2 {
		t.Fatalf("expected 2 files under /foo, got %d: %v", len(under), under)
	}
	for _, f := range under {
		if f.CanonicalPath == "/foobar/c.txt" {
			t.Error("/foobar/c.txt should not match prefix /foo")
		}
	}
}

func TestDirectoryHierarchyAndAggregates(t *testing.T) {
	s := openTestStore(t)

	rootID, err := s.UpsertDirectoryNode("/data", "data", nil, 0, 0, 0)
	if err != nil {
		t.Fatalf("UpsertDirectoryNode(root) failed: %v", err)
	}
	childID, err := s.UpsertDirectoryNode("/data/sub", "sub", &rootID, 0, 0, 1)
	if err != nil {
		t.Fatalf("UpsertDirectoryNode(child) failed: %v", err)
	}

	if err := s.UpdateDirectoryAggregates(childID, 500, 3); err != nil {
		t.Fatalf("UpdateDirectoryAggregates() failed: %v", err)
	}

	children, err := s.DirectoryChildren(&rootID, 0, 10)
	if err != nil {
		t.Fatalf("DirectoryChildren() failed: %v", err)
	}
	if len(children) != 1 || children[0].TotalSize != 500 {
		t.Fatalf("expected 1 child with total_size 500, got %+v", children)
	}

	roots, err := s.DirectoryChildren(nil, 0, 10)
	if err != nil {
		t.Fatalf("DirectoryChildren(nil) failed: %v", err)
	}
	if len(roots) != 1 || roots[0].ID != rootID {
		t.Fatalf("expected 1 root, got %+v", roots)
	}
}

func TestFingerprintAndSimilarityRoundTrip(t *testing.T) {
	s := openTestStore(t)

	dirA, _ := s.UpsertDirectoryNode("/a", "a", nil, 0, 0, 0)
	dirB, _ := s.UpsertDirectoryNode("/b", "b", nil, 0, 0, 0)

	if err := s.UpsertDirectoryFingerprint(dirA, "deadbeefdeadbeef", `[1,2,3]`); err != nil {
		t.Fatalf("UpsertDirectoryFingerprint(a) failed: %v", err)
	}
	if err := s.UpsertDirectoryFingerprint(dirB, "deadbeefdeadbeef", `[1,2,3]`); err != nil {
		t.Fatalf("UpsertDirectoryFingerprint(b) failed: %v", err)
	}

	exact, err := s.ExactFingerprintGroups()
	if err != nil {
		t.Fatalf("ExactFingerprintGroups() failed: %v", err)
	}
	if len(exact["deadbeefdeadbeef"]) != 2 {
		t.Fatalf("expected 2 directories sharing a fingerprint, got %v", exact)
	}

	if err := s.UpsertDirectorySimilarity(dirB, dirA, 1.0, 300, "exact"); err != nil {
		t.Fatalf("UpsertDirectorySimilarity() failed: %v", err)
	}

	pairs, err := s.SimilarDirectories(0.5, 0, 10)
	if err != nil {
		t.Fatalf("SimilarDirectories() failed: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 similarity pair, got %d", len(pairs))
	}
	if pairs[0].DirAID != dirA || pairs[0].DirBID != dirB {
		t.Errorf("expected normalized ordering dirA < dirB, got (%d, %d)", pairs[0].DirAID, pairs[0].DirBID)
	}
}

func TestDeletionPlanLifecycle(t *testing.T) {
	s := openTestStore(t)
	sessionID, _ := s.CreateSession([]string{"/a"})

	files := []*types.FileInfo{{Path: "/a/dupe.txt", Size: 100}}
	if _, err := s.InsertScannedFiles(sessionID, files, nil, nil); err != nil {
		t.Fatalf("InsertScannedFiles() failed: %v", err)
	}
	f, err := s.FileByPath("/a/dupe.txt")
	if err != nil || f == nil {
		t.Fatalf("FileByPath() failed: %v", err)
	}

	if err := s.MarkFileForDeletion(f.ID, "trash"); err != nil {
		t.Fatalf("MarkFileForDeletion() failed: %v", err)
	}

	count, totalBytes, err := s.DeletionPlanSummary()
	if err != nil {
		t.Fatalf("DeletionPlanSummary() failed: %v", err)
	}
	if count != 1 || totalBytes != 100 {
		t.Fatalf("expected 1 file / 100 bytes pending, got %d / %d", count, totalBytes)
	}

	pending, err := s.PendingDeletionPlan()
	if err != nil {
		t.Fatalf("PendingDeletionPlan() failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending entry, got %d", len(pending))
	}

	if err := s.RecordDeletionOutcome(pending[0].ID, "trashed"); err != nil {
		t.Fatalf("RecordDeletionOutcome() failed: %v", err)
	}

	pending, err = s.PendingDeletionPlan()
	if err != nil {
		t.Fatalf("PendingDeletionPlan() after execution failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending entries after execution, got %d", len(pending))
	}

	if err := s.UnmarkFileForDeletion(f.ID); err != nil {
		t.Fatalf("UnmarkFileForDeletion() failed: %v", err)
	}
}

func TestTruncateAllClearsTables(t *testing.T) {
	s := openTestStore(t)
	sessionID, _ := s.CreateSession([]string{"/a"})
	files := []*types.FileInfo{{Path: "/a/1.txt", Size: 10}}
	if _, err := s.InsertScannedFiles(sessionID, files, nil, nil); err != nil {
		t.Fatalf("InsertScannedFiles() failed: %v", err)
	}

	if err := s.TruncateAll(); err != nil {
		t.Fatalf("TruncateAll() failed: %v", err)
	}

	f, err := s.FileByPath("/a/1.txt")
	if err != nil {
		t.Fatalf("FileByPath() failed: %v", err)
	}
	if f != nil {
		t.Error("expected scanned_file to be empty after TruncateAll")
	}

	latest, err := s.LatestSession()
	if err != nil {
		t.Fatalf("LatestSession() failed: %v", err)
	}
	if latest != nil {
		t.Error("expected no sessions after TruncateAll")
	}
}
