package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/tidy/pkg/tidy/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage tidy configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/tidy/config.yaml (if set)
  2. ~/.config/tidy/config.yaml

Environment variables can override config file settings using the TIDY_
prefix:
  TIDY_STRATEGY=skip
  TIDY_MANIFEST_DIR=/var/lib/tidy/manifests`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the effective configuration from all sources.
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	fmt.Println("Current configuration:")
	fmt.Printf("  dest_root:     %s\n", orDefault(cfg.DestRoot, "(per-run: <path>/Organized)"))
	fmt.Printf("  strategy:      %s\n", cfg.Strategy)
	fmt.Printf("  manifest_dir:  %s\n", cfg.ManifestDir)
	fmt.Printf("  backup_dir:    %s\n", cfg.BackupDir)
	fmt.Printf("  allowed_roots: %v\n", cfg.AllowedRoots)
	fmt.Printf("  logging.level: %s\n", cfg.Logging.Level)
	fmt.Printf("  logging.path:  %s\n", orDefault(cfg.Logging.Path, "(default)"))
	fmt.Printf("  category rules: %d extension(s)\n", len(cfg.Categories))

	return nil
}

// orDefault returns s, or fallback when s is empty.
func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
