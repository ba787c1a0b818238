// Package main implements the scenariolog CLI for inspecting and maintaining
// scenario log trees.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/scenariolog/internal/logging"
)

var (
	// configPath is the optional YAML config shared by every command
	configPath string
	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scenariolog",
	Short: "Inspect and maintain scenario-scoped test logs",
	Long: `scenariolog works with the log tree written by test harnesses: one
directory per test scenario holding a general and an error-only log,
plus the Global pair at the root.

Configuration is read from --config, then SCENARIOLOG_* environment
variables and LOG_LEVEL.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to scenariolog YAML config")
}

// loadConfig reads the config named by --config.
func loadConfig() (*logging.Config, error) {
	cfg, err := logging.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
