package fingerprint

import (
	"testing"

	"github.com/foldersweep/dupefind/internal/store"
	"github.com/foldersweep/dupefind/internal/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedFiles(t *testing.T, s *store.Store, sessionID int64, paths []string, hash uint64) {
	t.Helper()
	files := make([]*types.FileInfo, len(paths))
	hashes := make(map[string]uint64, len(paths))
	for i, p := range paths {
		files[i] = &types.FileInfo{Path: p, Size: 10}
		hashes[p] = hash
	}
	if _, err := s.InsertScannedFiles(sessionID, files, hashes, hashes); err != nil {
		t.Fatalf("InsertScannedFiles() failed: %v", err)
	}
}

func TestRunBuildsHierarchyAndFingerprints(t *testing.T) {
	s := newTestStore(t)
	sessionID, err := s.CreateSession([]string{"/data"})
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}

	seedFiles(t, s, sessionID, []string{"/data/a/1.txt", "/data/a/2.txt"}, 111)
	seedFiles(t, s, sessionID, []string{"/data/b/3.txt"}, 222)

	count, err := New(s, nil).Run()
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if count == 0 {
		t.Fatal("expected at least one fingerprint to be written")
	}

	dirA, err := s.DirectoryByPath("/data/a")
	if err != nil || dirA == nil {
		t.Fatalf("expected /data/a to exist, err=%v", err)
	}
	if dirA.FileCount != 2 {
		t.Errorf("expected 2 files under /data/a, got %d", dirA.FileCount)
	}

	fp, err := s.FingerprintByDirectory(dirA.ID)
	if err != nil {
		t.Fatalf("FingerprintByDirectory() failed: %v", err)
	}
	if fp == nil || len(fp.ContentFingerprint) != 16 {
		t.Fatalf("expected a 16-hex-char fingerprint, got %+v", fp)
	}

	dirData, err := s.DirectoryByPath("/data")
	if err != nil || dirData == nil {
		t.Fatalf("expected /data to exist as an ancestor, err=%v", err)
	}
	if dirData.FileCount != 3 {
		t.Errorf("expected aggregate file count 3 at /data, got %d", dirData.FileCount)
	}
}

func TestIdenticalDirectoriesShareFingerprint(t *testing.T) {
	s := newTestStore(t)
	sessionID, _ := s.CreateSession([]string{"/data"})

	seedFiles(t, s, sessionID, []string{"/data/x/1.txt"}, 999)
	seedFiles(t, s, sessionID, []string{"/data/y/1.txt"}, 999)

	if _, err := New(s, nil).Run(); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	dirX, _ := s.DirectoryByPath("/data/x")
	dirY, _ := s.DirectoryByPath("/data/y")

	fpX, err := s.FingerprintByDirectory(dirX.ID)
	if err != nil {
		t.Fatalf("FingerprintByDirectory(x) failed: %v", err)
	}
	fpY, err := s.FingerprintByDirectory(dirY.ID)
	if err != nil {
		t.Fatalf("FingerprintByDirectory(y) failed: %v", err)
	}

	if fpX.ContentFingerprint != fpY.ContentFingerprint {
		t.Errorf("expected identical-content directories to share a fingerprint: %q vs %q",
			fpX.ContentFingerprint, fpY.ContentFingerprint)
	}
}
