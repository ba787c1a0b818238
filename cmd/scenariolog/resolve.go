package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/scenariolog/internal/scenario"
)

// resolveMarker overrides the configured marker directory
var resolveMarker string

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVar(&resolveMarker, "marker", "", "marker directory (default from config)")
}

// resolveCmd maps test paths to scenario keys
var resolveCmd = &cobra.Command{
	Use:   "resolve [path...]",
	Short: "Print the scenario a test path logs to",
	Long: `Print the scenario key and log directory for each test path or node id.
Paths are read from stdin, one per line, when none are given.

Examples:
  # Resolve a pytest node id
  scenariolog resolve tests/checkout/test_cart.py::test_add

  # Resolve with a different marker directory
  scenariolog resolve --marker e2e e2e/search/query_test.go`,
	RunE: runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	marker := resolveMarker
	if marker == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		marker = cfg.Scenario.Marker
	}
	r := scenario.NewResolver(marker)

	paths := args
	if len(paths) == 0 {
		sc := bufio.NewScanner(cmd.InOrStdin())
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				paths = append(paths, line)
			}
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("failed to read paths: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	for _, p := range paths {
		k := r.Resolve(p)
		fmt.Fprintf(out, "%s\t%s\t%s\n", k, scenario.SafeName(k), p)
	}
	return nil
}
