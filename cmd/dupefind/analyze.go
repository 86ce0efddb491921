package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foldersweep/dupefind/internal/config"
	"github.com/foldersweep/dupefind/internal/fingerprint"
	"github.com/foldersweep/dupefind/internal/progress"
	"github.com/foldersweep/dupefind/internal/similarity"
	"github.com/foldersweep/dupefind/internal/store"
)

// analyzeOptions holds CLI flags for the analyze-directories command.
type analyzeOptions struct {
	dbPath             string
	noProgress         bool
	similarityMinScore float64
}

// newAnalyzeDirectoriesCmd creates the analyze-directories subcommand.
func newAnalyzeDirectoriesCmd() *cobra.Command {
	opts := &analyzeOptions{
		dbPath:             config.DatabasePath(),
		similarityMinScore: 0.5,
	}

	cmd := &cobra.Command{
		Use:   "analyze-directories",
		Short: "Build directory fingerprints and similarity pairs for the current store",
		Long: `Builds the directory hierarchy and content fingerprints from every file
already recorded by a prior process run, then scores directory pairs by
Jaccard similarity over their fingerprinted content.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runAnalyzeDirectories(opts)
		},
	}

	cmd.Flags().StringVar(&opts.dbPath, "db", opts.dbPath, "Path to the relational store")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")
	cmd.Flags().Float64Var(&opts.similarityMinScore, "similarity-threshold", opts.similarityMinScore, "Minimum Jaccard score to record a similarity pair")

	return cmd
}

func runAnalyzeDirectories(opts *analyzeOptions) error {
	s, err := store.Open(opts.dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	sess, err := s.LatestSession()
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("no scan session found; run 'process' first")
	}

	reporter := progress.NewBarReporter(!opts.noProgress)

	fpCount, err := fingerprint.New(s, reporter).Run()
	if err != nil {
		return err
	}

	pairCount, err := similarity.New(s, opts.similarityMinScore, reporter).Run()
	if err != nil {
		return err
	}

	fmt.Printf("%d directory fingerprints, %d similarity pairs\n", fpCount, pairCount)
	return nil
}
