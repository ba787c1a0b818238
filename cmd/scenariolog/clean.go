package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/scenariolog/internal/sink"
)

var (
	// cleanAll removes the whole log tree instead of rotated backups only
	cleanAll bool
	// cleanRoot overrides the configured log root
	cleanRoot string
)

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "remove every file and directory under the log root")
	cleanCmd.Flags().StringVar(&cleanRoot, "root", "", "log root (default from config)")
}

// cleanCmd removes rotated logs
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove rotated log files",
	Long: `Remove rotated backups (name-<timestamp>.log and .log.gz) under the log
root. With --all, remove everything under the root, e.g. between CI runs.

Examples:
  scenariolog clean
  scenariolog clean --all --root build/logs`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func runClean(cmd *cobra.Command, _ []string) error {
	root := cleanRoot
	if root == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		root = cfg.Root
	}

	removed, err := sink.Prune(root, cleanAll)
	out := cmd.OutOrStdout()
	for _, p := range removed {
		fmt.Fprintf(out, "removed %s\n", p)
	}
	if err != nil {
		return fmt.Errorf("failed to clean %s: %w", root, err)
	}
	fmt.Fprintf(out, "%d removed from %s\n", len(removed), root)
	return nil
}
