package similarity

import (
	"testing"

	"github.com/foldersweep/dupefind/internal/fingerprint"
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

func seedFiles(t *testing.T, s *store.Store, sessionID int64, paths []string, hashes []uint64) {
	t.Helper()
	files := make([]*types.FileInfo, len(paths))
	hashMap := make(map[string]uint64, len(paths))
	for i, p := range paths {
		files[i] = &types.FileInfo{Path: p, Size: 10}
		hashMap[p] = hashes[i]
	}
	if _, err := s.InsertScannedFiles(sessionID, files, hashMap, hashMap); err != nil {
		t.Fatalf("InsertScannedFiles() failed: %v", err)
	}
}

func TestIdenticalDirectoriesScoreAsExact(t *testing.T) {
	s := newTestStore(t)
	sessionID, _ := s.CreateSession([]string{"/data"})

	seedFiles(t, s, sessionID, []string{"/data/x/1.txt", "/data/x/2.txt"}, []uint64{1, 2})
	seedFiles(t, s, sessionID, []string{"/data/y/1.txt", "/data/y/2.txt"}, []uint64{1, 2})

	if _, err := fingerprint.New(s, nil).Run(); err != nil {
		t.Fatalf("fingerprint.Run() failed: %v", err)
	}

	n, err := New(s, 0.5, nil).Run()
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if n == 0 {
		t.Fatal("expected at least one similarity pair")
	}

	pairs, err := s.SimilarDirectories(0.5, 0, 10)
	if err != nil {
		t.Fatalf("SimilarDirectories() failed: %v", err)
	}

	var found bool
	for _, p := range pairs {
		if (p.DirAPath == "/data/x" && p.DirBPath == "/data/y") ||
			(p.DirAPath == "/data/y" && p.DirBPath == "/data/x") {
			found = true
			if p.MatchType != "exact" {
				t.Errorf("expected match type exact, got %q", p.MatchType)
			}
			if p.SimilarityScore != 1.0 {
				t.Errorf("expected similarity score 1.0, got %v", p.SimilarityScore)
			}
		}
	}
	if !found {
		t.Fatal("expected /data/x and /data/y to be reported as similar")
	}
}

func TestDisjointDirectoriesScoreBelowThreshold(t *testing.T) {
	s := newTestStore(t)
	sessionID, _ := s.CreateSession([]string{"/data"})

	seedFiles(t, s, sessionID, []string{"/data/x/1.txt"}, []uint64{1})
	seedFiles(t, s, sessionID, []string{"/data/y/2.txt"}, []uint64{2})

	if _, err := fingerprint.New(s, nil).Run(); err != nil {
		t.Fatalf("fingerprint.Run() failed: %v", err)
	}

	if _, err := New(s, 0.5, nil).Run(); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	pairs, err := s.SimilarDirectories(0.0, 0, 10)
	if err != nil {
		t.Fatalf("SimilarDirectories() failed: %v", err)
	}
	for _, p := range pairs {
		if (p.DirAPath == "/data/x" && p.DirBPath == "/data/y") ||
			(p.DirAPath == "/data/y" && p.DirBPath == "/data/x") {
			t.Errorf("disjoint directories should not be linked as similar: %+v", p)
		}
	}
}

func TestJaccardPartialOverlapIsThresholdMatch(t *testing.T) {
	setA := map[int64]struct{}{1: {}, 2: {}, 3: {}}
	setB := map[int64]struct{}{2: {}, 3: {}, 4: {}}

	score, shared, matchType, ok := jaccard(setA, setB)
	if !ok {
		t.Fatal("expected jaccard to succeed on overlapping sets")
	}
	if matchType != "threshold" {
		t.Errorf("expected match type threshold, got %q", matchType)
	}
	if shared != 2 {
		t.Errorf("expected 2 shared hashes, got %d", shared)
	}
	wantScore := 2.0 / 4.0
	if score != wantScore {
		t.Errorf("expected score %v, got %v", wantScore, score)
	}
}

func TestJaccardSubsetIsTaggedSubset(t *testing.T) {
	setA := map[int64]struct{}{1: {}, 2: {}}
	setB := map[int64]struct{}{1: {}, 2: {}, 3: {}}

	_, _, matchType, ok := jaccard(setA, setB)
	if !ok {
		t.Fatal("expected jaccard to succeed")
	}
	if matchType != "subset" {
		t.Errorf("expected match type subset, got %q", matchType)
	}
}
