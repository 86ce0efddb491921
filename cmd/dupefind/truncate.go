package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/foldersweep/dupefind/internal/config"
	"github.com/foldersweep/dupefind/internal/store"
)

// newTruncateDBCmd creates the truncate-db subcommand.
func newTruncateDBCmd() *cobra.Command {
	var dbPath string
	var yes bool

	cmd := &cobra.Command{
		Use:   "truncate-db",
		Short: "Wipe every table in the relational store",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runTruncateDB(dbPath, yes)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", config.DatabasePath(), "Path to the relational store")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func runTruncateDB(dbPath string, yes bool) error {
	if !yes && !confirm(fmt.Sprintf("This will delete every row in %q. Continue?", dbPath)) {
		fmt.Println("aborted")
		return nil
	}

	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.TruncateAll(); err != nil {
		return err
	}

	fmt.Println("store truncated")
	return nil
}

// confirm prompts the user on stdin for a yes/no answer, defaulting to no.
func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}
