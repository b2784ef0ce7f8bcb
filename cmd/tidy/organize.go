package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/tidy/pkg/tidy/category"
	"github.com/jamesainslie/tidy/pkg/tidy/config"
	"github.com/jamesainslie/tidy/pkg/tidy/executor"
	"github.com/jamesainslie/tidy/pkg/tidy/manifest"
	"github.com/jamesainslie/tidy/pkg/tidy/metadata"
	"github.com/jamesainslie/tidy/pkg/tidy/planner"
	"github.com/jamesainslie/tidy/pkg/tidy/scanner"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

// engine bundles the wired subsystems for one invocation.
type engine struct {
	cfg      *config.Config
	planner  *planner.Planner
	executor *executor.Executor
	store    *manifest.Store
}

// buildEngine loads configuration and wires the planner, executor, and
// manifest store.
func buildEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Flags bound to the global viper override the config file.
	if s := viper.GetString("strategy"); s != "" {
		cfg.Strategy = s
	}
	if d := viper.GetString("dest_root"); d != "" {
		expanded, err := config.ExpandPath(d)
		if err != nil {
			return nil, err
		}
		cfg.DestRoot = expanded
	}

	initLogging(cfg)

	key, err := manifest.LoadOrCreateKey(config.SigningKeyPath(cfg.ManifestDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	store, err := manifest.NewStore(cfg.ManifestDir, manifest.NewHMACSigner(key))
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest store: %w", err)
	}

	return &engine{
		cfg: cfg,
		planner: planner.New(
			category.New(cfg.Categories, config.DefaultCategory),
			metadata.NewDateSubpath(cfg.DateSubpathCategories),
		),
		executor: executor.New(cfg.BackupDir),
		store:    store,
	}, nil
}

// runOrganize scans a directory, plans destinations, and executes the plan
// (or just prints it with --dry-run).
func runOrganize(cmd *cobra.Command, args []string) error {
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

	recursive, _ := cmd.Flags().GetBool("recursive")
	candidates, err := scanner.Scan(cmd.Context(), root, scanner.Options{
		Recursive: recursive,
		Exclude:   []string{destRoot, eng.cfg.BackupDir, eng.cfg.ManifestDir},
	})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	if len(candidates) == 0 {
		printInfo("Nothing to organize in %s.", root)
		return nil
	}

	var totalSize int64
	for _, c := range candidates {
		totalSize += c.Size
	}

	plan := eng.planner.Plan(destRoot, candidates, strategy)
	printPlan(plan, destRoot, totalSize)

	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		printInfo("\nDry run: no files were moved.")
		return nil
	}

	return executePlan(cmd.Context(), eng, plan, root)
}

// executePlan runs the executor with a manifest journal and reports the
// outcome.
func executePlan(_ context.Context, eng *engine, plan *types.OperationPlan, root string) error {
	batch := eng.store.Begin(fmt.Sprintf("organize %s", root))
	outcome := eng.executor.Execute(plan, batch)
	outcome.ManifestID = batch.ID()

	printInfo("\nMoved %d file(s), %d error(s).", outcome.SuccessCount, outcome.ErrorCount)
	for _, msg := range outcome.Errors {
		printError("%s", msg)
	}
	if outcome.ManifestID != "" {
		printInfo("Undo with: tidy undo %s", outcome.ManifestID)
	}

	if outcome.ErrorCount > 0 {
		return fmt.Errorf("%d placement(s) failed", outcome.ErrorCount)
	}
	return nil
}

// printPlan renders the plan summary and any skips or warnings.
func printPlan(plan *types.OperationPlan, destRoot string, totalSize int64) {
	printInfo("Plan: %d move(s) into %s", len(plan.Moves), destRoot)

	if !getQuiet() && viper.GetBool("verbose") {
		for _, m := range plan.Moves {
			marker := " "
			if m.HasConflict {
				marker = "!"
			}
			fmt.Printf("  %s %s -> %s\n", marker, m.Source, m.Destination)
		}
	}

	if len(plan.CategoryCounts) > 0 {
		var parts []string
		for cat, n := range plan.CategoryCounts {
			parts = append(parts, fmt.Sprintf("%s: %d", cat, n))
		}
		printInfo("Categories: %s", strings.Join(parts, ", "))
	}
	if totalSize > 0 {
		printInfo("Total size: %s", humanize.IBytes(uint64(totalSize)))
	}

	for _, s := range plan.Skipped {
		printInfo("Skipped %s: %s", s.Path, s.Reason)
	}
	for _, w := range plan.Warnings {
		printError("%s", w)
	}
}
