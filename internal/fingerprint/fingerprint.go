// Package fingerprint builds the directory hierarchy from scanned files and
// computes a content fingerprint for every directory.
//
// # Algorithm
//
//  1. Build directory_node rows from scanned_file.parent_dir, one node per
//     ancestor path up to the root.
//  2. Aggregate each directory's direct file count and size.
//  3. Propagate those aggregates upward, depth by depth, from deepest to
//     shallowest.
//  4. Compute fingerprints bottom-up: a directory's fingerprint is the
//     xxhash64 digest of its sorted, deduplicated set of content hashes,
//     which is the union of its own files' hashes and its already-computed
//     child directories' hash sets.
//
// Step 4 runs deepest-first so a parent can always read its children's
// fingerprints before computing its own.
package fingerprint

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/foldersweep/dupefind/internal/errs"
	"github.com/foldersweep/dupefind/internal/progress"
	"github.com/foldersweep/dupefind/internal/store"
)

// Builder computes the directory hierarchy and fingerprints for one store.
type Builder struct {
	store    *store.Store
	reporter progress.Reporter
}

// New creates a Builder backed by s.
func New(s *store.Store, reporter progress.Reporter) *Builder {
	if reporter == nil {
		reporter = progress.NoopReporter{}
	}
	return &Builder{store: s, reporter: reporter}
}

// Run builds the directory hierarchy and computes every directory's
// fingerprint, returning the number of fingerprints written.
func (b *Builder) Run() (int, error) {
	b.reporter.OnDirAnalysisStart()

	if err := b.buildHierarchy(); err != nil {
		return 0, err
	}

	if err := b.aggregateLeaves(); err != nil {
		return 0, err
	}

	maxDepth, err := b.store.MaxDirectoryDepth()
	if err != nil {
		return 0, err
	}

	if err := b.propagateAggregates(maxDepth); err != nil {
		return 0, err
	}

	count, err := b.computeFingerprints(maxDepth)
	if err != nil {
		return 0, err
	}

	b.reporter.OnDirAnalysisComplete(int64(count), 0, 0)
	return count, nil
}

// buildHierarchy inserts a directory_node for every distinct parent_dir and
// every one of its ancestors, up to the filesystem root.
func (b *Builder) buildHierarchy() error {
	dirs, err := b.store.DistinctParentDirs()
	if err != nil {
		return err
	}

	known := make(map[string]int64, len(dirs))
	for _, d := range dirs {
		if _, err := b.insertAncestry(d, known); err != nil {
			return err
		}
	}
	return nil
}

// insertAncestry inserts dirPath and every ancestor of it that doesn't
// already exist, returning dirPath's id.
func (b *Builder) insertAncestry(dirPath string, known map[string]int64) (int64, error) {
	if id, ok := known[dirPath]; ok {
		return id, nil
	}

	name := filepath.Base(dirPath)
	depth := int64(strings.Count(strings.TrimSuffix(filepath.ToSlash(dirPath), "/"), "/"))

	var parentID *int64
	parent := filepath.Dir(dirPath)
	if parent != dirPath && parent != "." {
		pid, err := b.insertAncestry(parent, known)
		if err != nil {
			return 0, err
		}
		parentID = &pid
	}

	id, err := b.store.UpsertDirectoryNode(dirPath, name, parentID, 0, 0, depth)
	if err != nil {
		return 0, errs.Otherf("insert directory hierarchy for %q: %v", dirPath, err)
	}
	known[dirPath] = id
	return id, nil
}

// aggregateLeaves sets each directory's own file_count and total_size from
// its direct children in scanned_file, before any upward propagation.
func (b *Builder) aggregateLeaves() error {
	dirs, err := b.store.DistinctParentDirs()
	if err != nil {
		return err
	}

	for _, dirPath := range dirs {
		files, err := b.store.FilesByParentDir(dirPath)
		if err != nil {
			return err
		}

		node, err := b.store.DirectoryByPath(dirPath)
		if err != nil {
			return err
		}
		if node == nil {
			continue
		}

		var totalSize int64
		for _, f := range files {
			totalSize += f.FileSize
		}

		if err := b.store.UpdateDirectoryAggregates(node.ID, totalSize, int64(len(files))); err != nil {
			return err
		}
	}
	return nil
}

// propagateAggregates walks from the deepest level up to the root, adding
// each directory's children's totals onto its own.
func (b *Builder) propagateAggregates(maxDepth int64) error {
	for depth := maxDepth - 1; depth >= 0; depth-- {
		nodes, err := b.store.DirectoriesByDepth(depth)
		if err != nil {
			return err
		}

		for _, n := range nodes {
			children, err := b.store.DirectoryChildren(&n.ID, 0, 1<<31-1)
			if err != nil {
				return err
			}

			var childSize, childCount int64
			for _, c := range children {
				childSize += c.TotalSize
				childCount += c.FileCount
			}

			if err := b.store.UpdateDirectoryAggregates(n.ID, n.TotalSize+childSize, n.FileCount+childCount); err != nil {
				return err
			}
		}
	}
	return nil
}

// computeFingerprints processes directories deepest-first so a parent's
// fingerprint can always include its children's already-computed hash sets.
func (b *Builder) computeFingerprints(maxDepth int64) (int, error) {
	var count int

	for depth := maxDepth; depth >= 0; depth-- {
		nodes, err := b.store.DirectoriesByDepth(depth)
		if err != nil {
			return count, err
		}

		for _, n := range nodes {
			hashes, err := b.collectHashes(n)
			if err != nil {
				return count, err
			}
			if len(hashes) == 0 {
				continue
			}

			sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
			hashes = dedupSorted(hashes)

			fingerprint := digest(hashes)
			hashSetJSON, err := json.Marshal(hashes)
			if err != nil {
				return count, errs.Otherf("marshal hash set for directory %d: %v", n.ID, err)
			}

			if err := b.store.UpsertDirectoryFingerprint(n.ID, fingerprint, string(hashSetJSON)); err != nil {
				return count, err
			}
			count++
		}
	}

	return count, nil
}

// collectHashes gathers the content hashes of a directory's own files and
// unions them with its children's already-computed hash sets.
func (b *Builder) collectHashes(n *store.DirectoryNode) ([]int64, error) {
	files, err := b.store.FilesByParentDir(n.Path)
	if err != nil {
		return nil, err
	}

	var hashes []int64
	for _, f := range files {
		if f.ContentHash != nil {
			hashes = append(hashes, int64(*f.ContentHash))
		}
	}

	children, err := b.store.DirectoryChildren(&n.ID, 0, 1<<31-1)
	if err != nil {
		return nil, err
	}

	for _, c := range children {
		fp, err := b.store.FingerprintByDirectory(c.ID)
		if err != nil {
			return nil, err
		}
		if fp == nil {
			continue
		}
		var childHashes []int64
		if err := json.Unmarshal([]byte(fp.FileHashSet), &childHashes); err != nil {
			continue
		}
		hashes = append(hashes, childHashes...)
	}

	return hashes, nil
}

func dedupSorted(hashes []int64) []int64 {
	out := hashes[:0]
	var prev int64
	for i, h := range hashes {
		if i == 0 || h != prev {
			out = append(out, h)
		}
		prev = h
	}
	return out
}

// digest renders the xxhash64 of a sorted hash list as a 16-hex-char string,
// matching the fingerprint format external tools and the engine expect.
func digest(hashes []int64) string {
	h := xxhash.New()
	buf := make([]byte, 8)
	for _, v := range hashes {
		u := uint64(v)
		for i := 0; i < 8; i++ {
			buf[i] = byte(u >> (8 * i))
		}
		_, _ = h.Write(buf)
	}
	return hexDigest(h.Sum64())
}

func hexDigest(v uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(buf)
}
