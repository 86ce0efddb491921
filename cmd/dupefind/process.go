package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/foldersweep/dupefind/internal/config"
	"github.com/foldersweep/dupefind/internal/engine"
	"github.com/foldersweep/dupefind/internal/progress"
	"github.com/foldersweep/dupefind/internal/store"
)

// processOptions holds CLI flags for the process command.
type processOptions struct {
	excludes           []string
	workers            int
	noProgress         bool
	cacheFile          string
	dbPath             string
	fingerprint        bool
	similarity         bool
	similarityMinScore float64
}

// newProcessCmd creates the process subcommand.
func newProcessCmd() *cobra.Command {
	opts := &processOptions{
		workers:            runtime.NumCPU(),
		cacheFile:          config.HashCachePath(),
		dbPath:             config.DatabasePath(),
		similarityMinScore: 0.5,
	}

	cmd := &cobra.Command{
		Use:   "process [paths...]",
		Short: "Scan paths, hash duplicate candidates, and persist the results",
		Long: `Runs the scan-hash-persist pipeline against one or more root paths,
recording every duplicate group in the relational store.

Pass --fingerprint to also build per-directory content fingerprints, and
--similarity (which implies --fingerprint) to additionally compute
Jaccard-similarity pairs between directories.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runProcess(args, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.excludes, "exclude", "e", nil, "Glob patterns to exclude")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", opts.workers, "Number of parallel workers")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")
	cmd.Flags().StringVar(&opts.cacheFile, "cache-file", opts.cacheFile, "Path to the persistent hash cache (empty disables it)")
	cmd.Flags().StringVar(&opts.dbPath, "db", opts.dbPath, "Path to the relational store")
	cmd.Flags().BoolVar(&opts.fingerprint, "fingerprint", false, "Build directory content fingerprints after hashing")
	cmd.Flags().BoolVar(&opts.similarity, "similarity", false, "Compute directory similarity pairs (implies --fingerprint)")
	cmd.Flags().Float64Var(&opts.similarityMinScore, "similarity-threshold", opts.similarityMinScore, "Minimum Jaccard score to record a similarity pair")

	return cmd
}

func runProcess(paths []string, opts *processOptions) error {
	if err := validateGlobPatterns(opts.excludes); err != nil {
		return fmt.Errorf("invalid --exclude: %w", err)
	}

	s, err := store.Open(opts.dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := engine.New(s, engine.Options{
		RootPaths:          paths,
		IgnorePatterns:     opts.excludes,
		Workers:            opts.workers,
		CachePath:          opts.cacheFile,
		BuildFingerprints:  opts.fingerprint || opts.similarity,
		ComputeSimilarity:  opts.similarity,
		SimilarityMinScore: opts.similarityMinScore,
		Reporter:           progress.NewBarReporter(!opts.noProgress),
	})

	result, err := e.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("session %d: scanned %d files, %d duplicate groups, %d duplicate files, %s wasted\n",
		result.SessionID, result.TotalFilesScanned, result.DuplicateGroups, result.DuplicateFiles,
		humanizeBytes(result.WastedBytes))
	if opts.fingerprint || opts.similarity {
		fmt.Printf("%d directory fingerprints, %d similarity pairs\n", result.DirectoryFingerprints, result.SimilarityPairs)
	}
	return nil
}
