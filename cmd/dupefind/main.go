package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:     "dupefind",
		Short:   "Find duplicate files and similar directories",
		Version: version + " (" + commit + ")",
	}

	root.AddCommand(newProcessCmd())
	root.AddCommand(newAnalyzeDirectoriesCmd())
	root.AddCommand(newCountHashCacheCmd())
	root.AddCommand(newTruncateDBCmd())

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
