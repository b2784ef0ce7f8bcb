package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List undo manifests",
	Long: `List the undo manifests of previously executed batches.

Each executed batch leaves one manifest until it is rolled back. Corrupt
manifest files are reported but never stop the listing.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show the actions recorded in a manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

// runHistory lists manifests, newest first.
func runHistory(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}

	entries, corrupt, err := eng.store.List()
	if err != nil {
		return fmt.Errorf("failed to list manifests: %w", err)
	}

	if len(entries) == 0 && len(corrupt) == 0 {
		printInfo("No undo manifests found.")
		return nil
	}

	fmt.Printf("\n%-38s  %-20s  %-8s  %s\n", "ID", "TIMESTAMP", "ACTIONS", "DESCRIPTION")
	fmt.Println(strings.Repeat("-", 90))
	for _, m := range entries {
		fmt.Printf("%-38s  %-20s  %-8d  %s\n",
			m.ID,
			m.Timestamp.Format("2006-01-02 15:04:05"),
			len(m.Actions),
			m.Description,
		)
	}

	for _, c := range corrupt {
		printError("corrupt manifest %s: %s", c.File, c.Reason)
	}

	printInfo("\nUse 'tidy undo <id>' to roll back a batch.")
	return nil
}

// runHistoryShow displays one manifest's actions.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}

	m, err := eng.store.Get(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("\nManifest %s\n", m.ID)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Timestamp:   %s\n", m.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Description: %s\n", m.Description)
	fmt.Printf("Actions:     %d\n\n", len(m.Actions))

	for i, a := range m.Actions {
		fmt.Printf("%3d. [%s] %s -> %s\n", i+1, a.Type, a.OriginalPath, a.CurrentPath)
		if a.OverwrittenBackupPath != "" {
			fmt.Printf("     displaced content backed up at %s\n", a.OverwrittenBackupPath)
		}
		if a.BackupPath != "" {
			fmt.Printf("     backup at %s\n", a.BackupPath)
		}
	}

	return nil
}
