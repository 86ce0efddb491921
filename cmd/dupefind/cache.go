package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foldersweep/dupefind/internal/cache"
	"github.com/foldersweep/dupefind/internal/config"
)

// newCountHashCacheCmd creates the count-hash-cache subcommand.
func newCountHashCacheCmd() *cobra.Command {
	var cacheFile string

	cmd := &cobra.Command{
		Use:   "count-hash-cache",
		Short: "Print the number of entries in the persistent hash cache",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCountHashCache(cacheFile)
		},
	}

	cmd.Flags().StringVar(&cacheFile, "cache-file", config.HashCachePath(), "Path to the persistent hash cache")

	return cmd
}

func runCountHashCache(cacheFile string) error {
	c, err := cache.Open(cacheFile)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	n, err := c.Count()
	if err != nil {
		return err
	}

	fmt.Println(n)
	return nil
}
