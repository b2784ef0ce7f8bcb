package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/tidy/pkg/tidy/types"
	"github.com/jamesainslie/tidy/pkg/tidy/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Continuously organize new files as they appear",
	Long: `Watch a directory and organize each new file once it has settled.

Every placement is journaled to an undo manifest, one manifest per watch
session, so the whole session can be rolled back.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// runWatch organizes new files until interrupted.
func runWatch(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}

	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return err
	}

	destRoot := eng.cfg.DestRoot
	if destRoot == "" {
		destRoot = filepath.Join(root, "Organized")
	}
	strategy, err := types.ParseStrategy(eng.cfg.Strategy)
	if err != nil {
		return err
	}

	w, err := watcher.New(root)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	defer w.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	batch := eng.store.Begin(fmt.Sprintf("watch %s started %s", root, time.Now().Format(time.RFC3339)))

	printInfo("Watching %s (Ctrl-C to stop)...", root)
	w.Run(ctx, func(path string) {
		if excludedFromWatch(path, destRoot, eng.cfg.BackupDir, eng.cfg.ManifestDir) {
			return
		}
		info, err := os.Lstat(path)
		if err != nil {
			return
		}
		candidate := types.Candidate{
			Path:    path,
			Name:    filepath.Base(path),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		plan := eng.planner.Plan(destRoot, []types.Candidate{candidate}, strategy)
		outcome := eng.executor.Execute(plan, batch)
		for _, msg := range outcome.Errors {
			printError("%s", msg)
		}
		for _, s := range outcome.Successes {
			if !s.Skipped {
				printInfo("Moved %s -> %s", s.Source, s.Destination)
			}
		}
	})

	if id := batch.ID(); id != "" {
		printInfo("\nSession journal: tidy undo %s", id)
	}
	return nil
}

// excludedFromWatch filters paths the watcher must never feed back into
// the engine: tidy's own output and storage directories.
func excludedFromWatch(path string, dirs ...string) bool {
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if path == d || filepath.Dir(path) == d ||
			len(path) > len(d) && path[:len(d)+1] == d+string(filepath.Separator) {
			return true
		}
	}
	return false
}
