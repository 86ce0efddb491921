// Package hasher confirms duplicate candidates using a two-tier content
// hash: a cheap partial hash over the first bytes of each file eliminates
// most non-duplicates, and only survivors pay for a full-file hash.
//
// # Concurrency Model
//
// Both tiers use the same fixed worker pool shape:
//
//  1. WORKER GOROUTINES (fixed pool)
//     - N workers consume jobs from a buffered channel
//     - Each worker hashes one file and sends a (key, file) pair to results
//
//  2. COLLECTOR (main goroutine)
//     - Reads from the results channel
//     - Groups files by hash key
//     - Runs until the results channel is closed
//
//  3. ORCHESTRATOR (caller)
//     - Feeds all jobs, closes the job channel
//     - Waits for workers, closes the results channel
//
// # Why Two Tiers
//
// Reading 1024 bytes of every candidate is far cheaper than reading every
// byte of every candidate. Files whose partial hash is unique among their
// size group can never be duplicates of anything and are dropped before a
// single full read happens. Only the files that survive both the size
// partition and the partial-hash partition pay for a full read, and that
// read goes through the cache so a second run over an unchanged tree reads
// only the leading bytes of each candidate, never a whole file.
package hasher

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/foldersweep/dupefind/internal/cache"
	"github.com/foldersweep/dupefind/internal/errs"
	"github.com/foldersweep/dupefind/internal/progress"
	"github.com/foldersweep/dupefind/internal/types"
)

// partialHashBytes is the number of leading bytes read for the cheap tier.
const partialHashBytes = 1024

// Hasher confirms duplicates among size-partitioned candidate groups.
//
// The hasher is designed for single-use: create with New(), call Run() once.
type Hasher struct {
	cache    *cache.Cache
	workers  int
	reporter progress.Reporter

	mu   sync.Mutex
	errs []error
}

// New creates a Hasher. cache may be one opened with cache.Open(""),
// which disables persistence but still serves as the full-hash tier.
func New(hashCache *cache.Cache, workers int, reporter progress.Reporter) *Hasher {
	if reporter == nil {
		reporter = progress.NoopReporter{}
	}
	if workers < 1 {
		workers = 1
	}
	return &Hasher{cache: hashCache, workers: workers, reporter: reporter}
}

// Errors returns the non-fatal errors accumulated during the last Run.
func (h *Hasher) Errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errs...)
}

// sizeKey groups files sharing both a size and a partial hash; a false
// collision in the cheap tier never survives the size check.
type sizeKey struct {
	size    int64
	partial uint64
}

// Run confirms duplicates within groups (already partitioned by size) and
// returns files grouped by full content hash, keeping only groups with two
// or more members.
func (h *Hasher) Run(ctx context.Context, groups map[int64][]*types.FileInfo) (map[uint64][]*types.FileInfo, error) {
	start := time.Now()
	h.reporter.OnHashStart()

	var total int64
	for _, g := range groups {
		total += int64(len(g))
	}

	partialGroups, err := h.partialHashPass(ctx, groups, total)
	if err != nil {
		return nil, err
	}

	finalGroups, err := h.fullHashPass(ctx, partialGroups, total)
	if err != nil {
		return nil, err
	}

	var dupes int64
	for _, g := range finalGroups {
		dupes += int64(len(g))
	}
	h.reporter.OnHashComplete(dupes, time.Since(start))

	return finalGroups, nil
}

// partialHashPass reads the leading bytes of every candidate and groups by
// (size, partial hash), dropping any group that doesn't survive with 2+
// members.
func (h *Hasher) partialHashPass(ctx context.Context, groups map[int64][]*types.FileInfo, total int64) (map[sizeKey][]*types.FileInfo, error) {
	type job struct {
		size int64
		file *types.FileInfo
	}
	type result struct {
		key  sizeKey
		file *types.FileInfo
	}

	jobCh := make(chan job, 1000)
	resultCh := make(chan result, 1000)

	var wg sync.WaitGroup
	for i := 0; i < h.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				if ctx.Err() != nil {
					continue
				}
				partial, err := partialHash(j.file.Path)
				if err != nil {
					h.recordError(errs.IOErrorf(err, "partial hash %q", j.file.Path))
					continue
				}
				resultCh <- result{key: sizeKey{size: j.size, partial: partial}, file: j.file}
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for size, files := range groups {
			for _, f := range files {
				if ctx.Err() != nil {
					return
				}
				jobCh <- job{size: size, file: f}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	byKey := make(map[sizeKey][]*types.FileInfo)
	var done int64
	for r := range resultCh {
		byKey[r.key] = append(byKey[r.key], r.file)
		done++
		h.reporter.OnHashProgress(done, total)
	}

	if ctx.Err() != nil {
		return nil, errs.ErrCancelled
	}

	pruned := make(map[sizeKey][]*types.FileInfo, len(byKey))
	for k, files := range byKey {
		if len(files) >= 2 {
			pruned[k] = files
		}
	}
	return pruned, nil
}

// fullHashPass reads each surviving candidate in full (through the cache)
// and groups by content hash, again dropping groups that don't survive
// with 2+ members.
func (h *Hasher) fullHashPass(ctx context.Context, groups map[sizeKey][]*types.FileInfo, total int64) (map[uint64][]*types.FileInfo, error) {
	type result struct {
		hash uint64
		file *types.FileInfo
	}

	jobCh := make(chan *types.FileInfo, 1000)
	resultCh := make(chan result, 1000)

	var wg sync.WaitGroup
	for i := 0; i < h.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobCh {
				if ctx.Err() != nil {
					continue
				}
				hash, err := h.cache.Lookup(f.Path)
				if err != nil {
					h.recordError(errs.IOErrorf(err, "full hash %q", f.Path))
					continue
				}
				resultCh <- result{hash: hash, file: f}
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for _, files := range groups {
			for _, f := range files {
				if ctx.Err() != nil {
					return
				}
				jobCh <- f
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	byHash := make(map[uint64][]*types.FileInfo)
	var done int64
	for r := range resultCh {
		byHash[r.hash] = append(byHash[r.hash], r.file)
		done++
		h.reporter.OnHashProgress(done, total)
	}

	if ctx.Err() != nil {
		return nil, errs.ErrCancelled
	}

	pruned := make(map[uint64][]*types.FileInfo, len(byHash))
	for hash, files := range byHash {
		if len(files) >= 2 {
			pruned[hash] = files
		}
	}
	return pruned, nil
}

func (h *Hasher) recordError(err error) {
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
}

// partialHash hashes up to the first partialHashBytes bytes of path.
func partialHash(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	h := xxhash.New()
	_, err = io.CopyN(h, f, partialHashBytes)
	if err != nil && err != io.EOF {
		return 0, err
	}
	return h.Sum64(), nil
}
