package hasher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/foldersweep/dupefind/internal/cache"
	"github.com/foldersweep/dupefind/internal/types"
)

func writeFile(t *testing.T, path, content string) *types.FileInfo {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%q): %v", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat(%q): %v", path, err)
	}
	return &types.FileInfo{Path: path, Size: info.Size(), ModTime: info.ModTime()}
}

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	c, err := cache.Open("")
	if err != nil {
		t.Fatalf("cache.Open(\"\") failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return New(c, 4, nil)
}

func TestRunConfirmsIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.txt"), "duplicate content")
	b := writeFile(t, filepath.Join(dir, "b.txt"), "duplicate content")
	c := writeFile(t, filepath.Join(dir, "c.txt"), "different content!")

	groups := map[int64][]*types.FileInfo{
		a.Size: {a, b, c},
	}

	h := newTestHasher(t)
	result, err := h.Run(context.Background(), groups)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if len(result) != 1 {
		t.Fatalf("expected exactly one duplicate group, got %d", len(result))
	}
	for _, files := range result {
		if len(files) != 2 {
			t.Fatalf("expected 2 files in the duplicate group, got %d", len(files))
		}
	}
}

func TestRunEliminatesFalseSizeMatch(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.txt"), "aaaaaaaaaa")
	b := writeFile(t, filepath.Join(dir, "b.txt"), "bbbbbbbbbb")

	groups := map[int64][]*types.FileInfo{
		a.Size: {a, b},
	}

	h := newTestHasher(t)
	result, err := h.Run(context.Background(), groups)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("expected no duplicate groups for distinct content, got %d", len(result))
	}
}

func TestRunWithCachePersistsHashes(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.db")
	a := writeFile(t, filepath.Join(dir, "a.txt"), "same bytes here")
	b := writeFile(t, filepath.Join(dir, "b.txt"), "same bytes here")

	c, err := cache.Open(cachePath)
	if err != nil {
		t.Fatalf("cache.Open() failed: %v", err)
	}
	h := New(c, 2, nil)

	groups := map[int64][]*types.FileInfo{a.Size: {a, b}}
	result, err := h.Run(context.Background(), groups)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected one duplicate group, got %d", len(result))
	}
	_ = c.Close()

	n, err := func() (int, error) {
		c2, err := cache.Open(cachePath)
		if err != nil {
			return 0, err
		}
		defer func() { _ = c2.Close() }()
		return c2.Count()
	}()
	if err != nil {
		t.Fatalf("reopening cache failed: %v", err)
	}
	if n == 0 {
		t.Error("expected full-file hashes to be persisted to the cache")
	}
}
