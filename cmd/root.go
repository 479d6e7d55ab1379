// Package cmd wires dupescope's commands: project a dataset to an HTML
// viewer, explore it in the terminal, push it to Qdrant.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alDuncanson/dupescope/config"
	"github.com/alDuncanson/dupescope/logging"
)

var (
	flagConfigPath string
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:          "dupescope",
	Short:        "Find near-duplicate issues and pull requests by their embeddings",
	SilenceUsage: true,
	Long: `dupescope projects embedded issues and pull requests into 2D and 3D space
so clusters of near-duplicates can be spotted, inspected and exported.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file (default ~/.dupescope/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error (overrides config)")
}

// Execute is called by main.go.
func Execute(version string) {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and builds the stderr logger.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot load config: %w", err)
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, logging.New(cfg.LogLevel, os.Stderr), nil
}
