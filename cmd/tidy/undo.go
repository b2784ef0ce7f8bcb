package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/tidy/pkg/tidy/rollback"
)

var undoCmd = &cobra.Command{
	Use:   "undo [id]",
	Short: "Roll back an executed batch",
	Long: `Roll back the batch recorded in the given undo manifest.

Actions are undone in reverse order. The manifest is deleted only when
every action is undone; otherwise it is retained so the rollback can be
retried.`,
	Args: cobra.ExactArgs(1),
	RunE: runUndo,
}

func init() {
	rootCmd.AddCommand(undoCmd)
}

// runUndo rolls back one manifest.
func runUndo(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}

	roots := rollback.AllowedRoots(eng.cfg.AllowedRoots)
	if len(roots) == 0 {
		// Without explicit configuration, allow the paths tidy itself
		// writes: the destination root and the backup directory, plus
		// the user's home where sources typically live.
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		roots = rollback.AllowedRoots{home, eng.cfg.BackupDir}
		if eng.cfg.DestRoot != "" {
			roots = append(roots, eng.cfg.DestRoot)
		}
	}

	roller := rollback.New(eng.store, roots)
	result, err := roller.Rollback(args[0])
	if err != nil {
		return err
	}

	printInfo("Rollback: %d action(s) undone, %d failed.", result.Success, result.Failed)
	for _, msg := range result.Errors {
		printError("%s", msg)
	}
	for _, note := range result.Notes {
		printInfo("%s", note)
	}
	for _, rec := range result.Recovered {
		printInfo("%s", rec)
	}

	if result.Failed > 0 {
		return fmt.Errorf("rollback incomplete: %d action(s) failed", result.Failed)
	}
	return nil
}
