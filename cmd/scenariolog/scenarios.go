package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/scenariolog/internal/scenario"
)

// scenariosDir is the tests root to scan
var scenariosDir string

func init() {
	rootCmd.AddCommand(scenariosCmd)
	scenariosCmd.Flags().StringVar(&scenariosDir, "dir", "tests", "tests root to scan for scenario directories")
}

// scenariosCmd lists the scenarios of a test tree and their log files
var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List scenarios and the size of their logs",
	Long: `List the scenarios found under the tests root (first-level directories
and one nested level) with the size of their general and error logs.

Examples:
  scenariolog scenarios --dir tests
  scenariolog scenarios --config scenariolog.yaml`,
	Args: cobra.NoArgs,
	RunE: runScenarios,
}

// scenarioRow is one line of the scenarios table.
type scenarioRow struct {
	Key     scenario.Key
	General int64
	Error   int64
}

func collectScenarios(testsRoot, logRoot string) ([]scenarioRow, error) {
	keys, err := scenario.Discover(testsRoot)
	if err != nil {
		return nil, err
	}

	rows := make([]scenarioRow, 0, len(keys))
	for _, k := range keys {
		dir, base := filepath.Join(logRoot, scenario.SafeName(k)), scenario.SafeName(k)
		if k.IsGlobal() {
			dir, base = logRoot, "global"
		}
		general, err := fileSize(filepath.Join(dir, base+".log"))
		if err != nil {
			return nil, err
		}
		errs, err := fileSize(filepath.Join(dir, base+"_error.log"))
		if err != nil {
			return nil, err
		}
		rows = append(rows, scenarioRow{Key: k, General: general, Error: errs})
	}
	return rows, nil
}

// fileSize returns -1 for a missing file.
func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return info.Size(), nil
}

func formatSize(n int64) string {
	switch {
	case n < 0:
		return "-"
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1fK", float64(n)/1024)
	}
	return fmt.Sprintf("%.1fM", float64(n)/(1024*1024))
}

func runScenarios(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rows, err := collectScenarios(scenariosDir, cfg.Root)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	r := lipgloss.NewRenderer(out)
	header := r.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	keyCol := r.NewStyle().Width(32)
	sizeCol := r.NewStyle().Width(10).Align(lipgloss.Right)
	dim := r.NewStyle().Foreground(lipgloss.Color("240"))
	errStyle := r.NewStyle().Foreground(lipgloss.Color("1"))

	fmt.Fprintln(out, header.Render(lipgloss.JoinHorizontal(lipgloss.Top,
		keyCol.Render("SCENARIO"), sizeCol.Render("LOG"), sizeCol.Render("ERRORS"))))
	for _, row := range rows {
		general := sizeCol.Render(formatSize(row.General))
		errs := sizeCol.Render(formatSize(row.Error))
		switch {
		case row.General < 0:
			general = dim.Render(general)
			errs = dim.Render(errs)
		case row.Error > 0:
			errs = errStyle.Render(errs)
		}
		fmt.Fprintln(out, lipgloss.JoinHorizontal(lipgloss.Top, keyCol.Render(string(row.Key)), general, errs))
	}
	return nil
}
