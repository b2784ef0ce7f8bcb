package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/tidy/pkg/tidy/config"
	"github.com/jamesainslie/tidy/pkg/tidy/logging"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "tidy [path]",
		Short: "Organize files into category folders, reversibly",
		Long: `Tidy moves files into category folders (Documents, Images, ...) under a
destination root. Every executed batch is journaled to an undo manifest,
so any run can be rolled back.

Examples:
  tidy ~/Downloads                   # Organize into ~/Downloads/Organized
  tidy -d ~/Sorted ~/Downloads       # Explicit destination root
  tidy --dry-run ~/Downloads         # Show the plan without moving anything
  tidy --strategy skip ~/Downloads   # Never touch existing destinations
  tidy history                       # List undo manifests
  tidy undo <id>                     # Roll back a batch`,
		Args: cobra.MaximumNArgs(1),
		RunE: runOrganize,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/tidy/config.yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")

	rootCmd.Flags().StringP("dest", "d", "", "destination root (default: <path>/Organized)")
	rootCmd.Flags().StringP("strategy", "s", "", "conflict strategy: rename, skip, overwrite, overwrite-if-newer")
	rootCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	rootCmd.Flags().BoolP("dry-run", "n", false, "compute and print the plan without moving anything")

	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("dest_root", rootCmd.Flags().Lookup("dest"))
	_ = viper.BindPFlag("strategy", rootCmd.Flags().Lookup("strategy"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			viper.AddConfigPath(filepath.Join(xdgConfigHome, "tidy"))
		}
		homeDir, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(homeDir, ".config", "tidy"))
		}
	}

	viper.SetEnvPrefix("TIDY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	defer func() { _ = logging.Close() }()
	return rootCmd.Execute()
}

// initLogging initializes file logging from the loaded configuration.
func initLogging(cfg *config.Config) {
	consoleLevel := cfg.Logging.ConsoleLevel
	if viper.GetBool("verbose") {
		consoleLevel = "debug"
	}
	err := logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Path:         cfg.Logging.Path,
		Components:   cfg.Logging.Components,
		ConsoleLevel: consoleLevel,
	})
	if err != nil {
		printError("logging disabled: %v", err)
	}
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
