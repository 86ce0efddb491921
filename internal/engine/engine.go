// Package engine orchestrates the full pipeline: scan the filesystem, hash
// duplicate candidates, persist the results, and optionally build the
// directory fingerprint and similarity indexes on top of them.
//
// # Processing Pipeline
//
//	Scan ──► Hash ──► Persist ──► [Fingerprint] ──► [Similarity]
//
// Each phase reports through a progress.Reporter, and the whole pipeline
// polls ctx at phase boundaries so a cancelled context stops it between
// phases rather than mid-write.
package engine

import (
	"context"
	"time"

	"github.com/foldersweep/dupefind/internal/cache"
	"github.com/foldersweep/dupefind/internal/config"
	"github.com/foldersweep/dupefind/internal/errs"
	"github.com/foldersweep/dupefind/internal/fingerprint"
	"github.com/foldersweep/dupefind/internal/hasher"
	"github.com/foldersweep/dupefind/internal/progress"
	"github.com/foldersweep/dupefind/internal/scanner"
	"github.com/foldersweep/dupefind/internal/similarity"
	"github.com/foldersweep/dupefind/internal/store"
	"github.com/foldersweep/dupefind/internal/types"
)

// Options configures a single pipeline run.
type Options struct {
	RootPaths          []string
	IgnorePatterns     []string
	Workers            int
	CachePath          string // empty disables the persistent hash cache
	BuildFingerprints  bool
	ComputeSimilarity  bool
	SimilarityMinScore float64
	Reporter           progress.Reporter
}

// Result summarizes one completed (or cancelled) pipeline run.
type Result struct {
	SessionID             int64
	ScanDuration          time.Duration
	HashDuration          time.Duration
	DBWriteDuration       time.Duration
	TotalFilesScanned     int64
	DuplicateGroups       int
	DuplicateFiles        int64
	WastedBytes           int64
	DirectoryFingerprints int
	SimilarityPairs       int
}

// Engine runs the pipeline against one store.
type Engine struct {
	store    *store.Store
	opts     Options
	reporter progress.Reporter
}

// New creates an Engine backed by s.
func New(s *store.Store, opts Options) *Engine {
	reporter := opts.Reporter
	if reporter == nil {
		reporter = progress.NoopReporter{}
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Engine{store: s, opts: opts, reporter: reporter}
}

// Run executes Scan → Hash → Persist, then the optional Fingerprint and
// Similarity phases, against a freshly created session.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	roots := config.NonOverlappingRoots(e.opts.RootPaths)

	sessionID, err := e.store.CreateSession(roots)
	if err != nil {
		return nil, err
	}

	result, err := e.runSession(ctx, sessionID)
	if err != nil {
		if errs.IsCancelled(err) {
			_ = e.store.FailSession(sessionID, result.TotalFilesScanned, 0)
		} else {
			_ = e.store.FailSession(sessionID, 0, 0)
		}
		return result, err
	}

	return result, nil
}

func (e *Engine) runSession(ctx context.Context, sessionID int64) (*Result, error) {
	result := &Result{SessionID: sessionID}

	scanStart := time.Now()
	sc := scanner.New(e.opts.RootPaths, e.opts.IgnorePatterns, e.opts.Workers, e.reporter)
	groups, err := sc.Run(ctx)
	result.ScanDuration = time.Since(scanStart)
	if err != nil {
		return result, err
	}

	for _, files := range groups {
		result.TotalFilesScanned += int64(len(files))
	}

	hashCache, err := cache.Open(e.opts.CachePath)
	if err != nil {
		return result, err
	}
	defer func() { _ = hashCache.Close() }()

	hashStart := time.Now()
	h := hasher.New(hashCache, e.opts.Workers, e.reporter)
	dupeGroups, err := h.Run(ctx, groups)
	result.HashDuration = time.Since(hashStart)
	if err != nil {
		return result, err
	}

	if ctx.Err() != nil {
		return result, errs.ErrCancelled
	}

	writeStart := time.Now()
	e.reporter.OnDBWriteStart()
	if err := e.persist(sessionID, dupeGroups, result); err != nil {
		return result, err
	}
	result.DBWriteDuration = time.Since(writeStart)
	e.reporter.OnDBWriteComplete(result.DuplicateFiles, result.DBWriteDuration)

	if err := e.store.CompleteSession(sessionID, result.TotalFilesScanned, sumBytes(dupeGroups)); err != nil {
		return result, err
	}

	if e.opts.BuildFingerprints {
		if ctx.Err() != nil {
			return result, errs.ErrCancelled
		}
		fpCount, err := fingerprint.New(e.store, e.reporter).Run()
		if err != nil {
			return result, err
		}
		result.DirectoryFingerprints = fpCount

		if e.opts.ComputeSimilarity {
			if ctx.Err() != nil {
				return result, errs.ErrCancelled
			}
			pairCount, err := similarity.New(e.store, e.opts.SimilarityMinScore, e.reporter).Run()
			if err != nil {
				return result, err
			}
			result.SimilarityPairs = pairCount
		}
	}

	return result, nil
}

// persist writes every file involved in a confirmed duplicate group and the
// groups themselves, accumulating duplicate-file and wasted-byte totals
// into result.
func (e *Engine) persist(sessionID int64, dupeGroups map[uint64][]*types.FileInfo, result *Result) error {
	var allFiles []*types.FileInfo
	contentHashes := make(map[string]uint64)
	pathGroups := make(map[uint64][]string, len(dupeGroups))

	for hash, files := range dupeGroups {
		paths := make([]string, 0, len(files))
		for _, f := range files {
			contentHashes[f.Path] = hash
			paths = append(paths, f.Path)
			allFiles = append(allFiles, f)
		}
		pathGroups[hash] = paths
	}

	if _, err := e.store.InsertScannedFiles(sessionID, allFiles, nil, contentHashes); err != nil {
		return err
	}

	groupCount, err := e.store.InsertDuplicateGroups(sessionID, pathGroups)
	if err != nil {
		return err
	}
	result.DuplicateGroups = groupCount
	result.DuplicateFiles = int64(len(allFiles))

	var wasted int64
	for _, files := range dupeGroups {
		if len(files) >= 2 {
			wasted += files[0].Size * int64(len(files)-1)
		}
	}
	result.WastedBytes = wasted

	return nil
}

func sumBytes(groups map[uint64][]*types.FileInfo) int64 {
	var total int64
	for _, files := range groups {
		for _, f := range files {
			total += f.Size
		}
	}
	return total
}
