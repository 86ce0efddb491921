// Package scanner provides parallel filesystem scanning for duplicate
// candidate discovery.
//
// # Architecture Overview
//
// The scanner uses a concurrent fan-out/fan-in architecture to efficiently
// traverse directory trees while respecting system resource limits.
//
// # Concurrency Model
//
// The scanner employs three concurrent components:
//
//  1. WALKER GOROUTINES (fan-out)
//     - One goroutine spawned per directory discovered
//     - Concurrency limited by semaphore (walkerSem)
//     - Each walker: acquires semaphore → lists directory → spawns child walkers → releases semaphore
//
//  2. COLLECTOR GOROUTINE (fan-in)
//     - Single goroutine that drains resultCh into a size-keyed map
//     - Provides the aggregation point for all walker outputs
//     - Runs until resultCh is closed
//
//  3. MAIN GOROUTINE (orchestrator)
//     - Normalizes and spawns initial walkers for each root
//     - Waits for all walkers (walkerWg.Wait)
//     - Closes resultCh to signal collector
//     - Waits for collector (collectorWg.Wait)
//
// # Synchronization Primitives
//
//	┌─────────────────┬────────────────────────────────────────────────┐
//	│ Primitive       │ Purpose                                        │
//	├─────────────────┼────────────────────────────────────────────────┤
//	│ walkerSem       │ Limits concurrent directory reads (backpressure)│
//	│ walkerWg        │ Tracks active walker goroutines                │
//	│ collectorWg     │ Signals collector goroutine completion         │
//	│ resultCh        │ Buffered channel for matched files (fan-in)    │
//	│ atomic counters │ Lock-free stats updates from any goroutine     │
//	│ ctx             │ Cooperative cancellation, checked at boundaries│
//	└─────────────────┴────────────────────────────────────────────────┘
//
// # Data Flow
//
//	Run(ctx) starts
//	    │
//	    ├──► spawn collector goroutine (reads resultCh, groups by size)
//	    │
//	    ├──► for each non-overlapping root path:
//	    │        └──► walkDirectory(path)
//	    │                 │
//	    │                 ├──► check ctx.Err(), bail if cancelled
//	    │                 ├──► acquire semaphore (blocks if at limit)
//	    │                 ├──► listDirectory() → files, subdirs
//	    │                 ├──► filter files → send matches to resultCh
//	    │                 └──► for each subdir: walkDirectory(subdir)  [recursive fan-out]
//	    │                 ├──► release semaphore
//	    │
//	    ├──► walkerWg.Wait() [all directories processed]
//	    ├──► close(resultCh) [signal collector to finish]
//	    ├──► collectorWg.Wait() [collector drained channel]
//	    │
//	    └──► return size-keyed groups, pruned to groups with 2+ members
package scanner

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/foldersweep/dupefind/internal/config"
	"github.com/foldersweep/dupefind/internal/errs"
	"github.com/foldersweep/dupefind/internal/progress"
	"github.com/foldersweep/dupefind/internal/types"
)

// Scanner discovers candidate files by walking a set of root directories in
// parallel and grouping the results by size.
//
// The scanner is designed for single-use: create with New(), call Run() once.
type Scanner struct {
	roots          []string
	ignorePatterns []string
	workers        int
	reporter       progress.Reporter

	walkerWg  sync.WaitGroup
	walkerSem types.Semaphore
	resultCh  chan *types.FileInfo

	filesFound atomic.Int64

	mu   sync.Mutex
	errs []error
}

// New creates a Scanner rooted at the given paths. ignorePatterns are
// doublestar glob patterns: a pattern containing "/" (e.g. "**/folder_c/**")
// is matched against the full path, so "**" can span any number of
// directories; a bare pattern with no "/" (e.g. ".git") is matched against
// the basename alone, so it excludes the directory wherever it occurs.
func New(roots []string, ignorePatterns []string, workers int, reporter progress.Reporter) *Scanner {
	if reporter == nil {
		reporter = progress.NoopReporter{}
	}
	if workers < 1 {
		workers = 1
	}
	return &Scanner{
		roots:          roots,
		ignorePatterns: ignorePatterns,
		workers:        workers,
		reporter:       reporter,
	}
}

// Errors returns the non-fatal errors (permission denied, vanished files,
// etc.) accumulated during the last Run.
func (s *Scanner) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

// Run walks every root and returns files grouped by size, keeping only
// groups with two or more members (a unique size can never have a
// duplicate). It respects ctx cancellation at directory and file
// boundaries, returning errs.ErrCancelled if the walk didn't finish.
func (s *Scanner) Run(ctx context.Context) (map[int64][]*types.FileInfo, error) {
	start := time.Now()
	s.reporter.OnScanStart()

	s.walkerSem = types.NewSemaphore(s.workers)
	s.resultCh = make(chan *types.FileInfo, 1000)

	var mu sync.Mutex
	bySize := make(map[int64][]*types.FileInfo)
	collectorWg := sync.WaitGroup{}
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for f := range s.resultCh {
			mu.Lock()
			bySize[f.Size] = append(bySize[f.Size], f)
			mu.Unlock()
		}
	}()

	roots := config.NonOverlappingRoots(s.roots)
	for _, root := range roots {
		if ctx.Err() != nil {
			break
		}
		s.walkDirectory(ctx, root)
	}

	s.walkerWg.Wait()
	close(s.resultCh)
	collectorWg.Wait()

	pruned := make(map[int64][]*types.FileInfo, len(bySize))
	var total int64
	for size, group := range bySize {
		if len(group) < 2 {
			continue
		}
		pruned[size] = group
		total += int64(len(group))
	}

	s.reporter.OnScanComplete(total, time.Since(start))

	if ctx.Err() != nil {
		return pruned, errs.ErrCancelled
	}
	return pruned, nil
}

func (s *Scanner) walkDirectory(ctx context.Context, dir string) {
	s.walkerWg.Add(1)
	go func() {
		defer s.walkerWg.Done()

		if ctx.Err() != nil {
			return
		}

		s.walkerSem.Acquire()
		defer s.walkerSem.Release()

		if ctx.Err() != nil {
			return
		}

		files, subdirs, err := s.listDirectory(dir)
		if err != nil {
			s.recordError(errs.IOErrorf(err, "read directory %q", dir))
			return
		}

		for _, f := range files {
			if ctx.Err() != nil {
				return
			}
			s.resultCh <- f
			found := s.filesFound.Add(1)
			s.reporter.OnScanProgress(found, f.Path)
		}

		for _, sub := range subdirs {
			if ctx.Err() != nil {
				return
			}
			s.walkDirectory(ctx, sub)
		}
	}()
}

// listDirectory reads a single directory, returning regular, non-empty
// files and subdirectories not matched by an ignore pattern.
func (s *Scanner) listDirectory(dirPath string) (files []*types.FileInfo, subdirs []string, err error) {
	dir, err := os.Open(dirPath)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = dir.Close() }()

	const batchSize = 1000
	for {
		entries, readErr := dir.ReadDir(batchSize)
		if len(entries) == 0 {
			if readErr != nil && readErr != io.EOF {
				return files, subdirs, readErr
			}
			break
		}

		for _, entry := range entries {
			f, sub := s.processEntry(dirPath, entry)
			if f != nil {
				files = append(files, f)
			}
			if sub != "" {
				subdirs = append(subdirs, sub)
			}
		}
	}

	return files, subdirs, nil
}

func (s *Scanner) processEntry(dirPath string, entry os.DirEntry) (file *types.FileInfo, subdir string) {
	fullPath := filepath.Join(dirPath, entry.Name())

	if s.shouldIgnore(fullPath) {
		return nil, ""
	}

	if entry.IsDir() {
		return nil, fullPath
	}

	// Symlinks, devices, sockets, etc. are never followed or hashed.
	if !entry.Type().IsRegular() {
		return nil, ""
	}

	info, err := entry.Info()
	if err != nil {
		s.recordError(errs.IOErrorf(err, "stat %q", fullPath))
		return nil, ""
	}

	if info.Size() == 0 {
		return nil, ""
	}

	return newFileInfo(fullPath, info), ""
}

func (s *Scanner) recordError(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

// shouldIgnore reports whether path matches one of the configured glob
// patterns. A pattern is matched against the full slash-separated path so
// multi-segment patterns like "**/folder_c/**" work across directory
// boundaries; a pattern with no "/" is also tried against just the
// basename, so "node_modules" excludes the directory and everything
// beneath it regardless of depth.
func (s *Scanner) shouldIgnore(path string) bool {
	if len(s.ignorePatterns) == 0 {
		return false
	}
	slashPath := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, pattern := range s.ignorePatterns {
		if matched, _ := doublestar.Match(pattern, slashPath); matched {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if matched, _ := doublestar.Match(pattern, base); matched {
				return true
			}
		}
	}
	return false
}
