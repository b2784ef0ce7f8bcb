// Package config loads tidy's configuration from file and environment.
// Storage roots for manifests and backups are explicit configuration
// values injected at construction, never derived from the process working
// directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level        string            `mapstructure:"level"`
	Path         string            `mapstructure:"path"`
	ConsoleLevel string            `mapstructure:"console_level"`
	Components   map[string]string `mapstructure:"components"`
}

// Config represents the application configuration.
type Config struct {
	// DestRoot is the default destination root for organized files.
	DestRoot string `mapstructure:"dest_root"`

	// Strategy is the default conflict strategy.
	Strategy string `mapstructure:"strategy"`

	// ManifestDir holds one JSON undo record per executed batch.
	ManifestDir string `mapstructure:"manifest_dir"`

	// BackupDir holds timestamped copies displaced by overwrites.
	BackupDir string `mapstructure:"backup_dir"`

	// AllowedRoots are the only path prefixes rollback may mutate.
	// Empty means the destination root and backup directory.
	AllowedRoots []string `mapstructure:"allowed_roots"`

	// Categories maps file extensions to category names, merged over the
	// built-in defaults.
	Categories map[string]string `mapstructure:"categories"`

	// DateSubpathCategories are filed into YYYY/YYYY-MM subfolders.
	DateSubpathCategories []string `mapstructure:"date_subpath_categories"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/tidy/config.yaml
//   - $HOME/.config/tidy/config.yaml
//
// Environment variables are prefixed with TIDY_ (e.g., TIDY_STRATEGY).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, "tidy"))
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", "tidy"))

	v.SetEnvPrefix("TIDY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is acceptable; we use defaults.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.DestRoot, &cfg.ManifestDir, &cfg.BackupDir} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	// Merge extension rules over the built-in table.
	merged := make(map[string]string, len(DefaultCategories)+len(cfg.Categories))
	for ext, cat := range DefaultCategories {
		merged[ext] = cat
	}
	for ext, cat := range cfg.Categories {
		merged[strings.ToLower(strings.TrimPrefix(ext, "."))] = cat
	}
	cfg.Categories = merged

	return &cfg, nil
}

// setDefaults registers default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("strategy", DefaultStrategy)
	v.SetDefault("manifest_dir", DefaultManifestDir())
	v.SetDefault("backup_dir", DefaultBackupDir())
	v.SetDefault("date_subpath_categories", DefaultDateSubpathCategories)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.console_level", "")
	v.SetDefault("logging.components", map[string]string{
		"planner":  "info",
		"executor": "info",
		"manifest": "info",
		"rollback": "info",
		"watcher":  "warn",
	})
}

// DataDir returns $XDG_DATA_HOME/tidy/ for manifests and backups.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "tidy")
}

// StateDir returns $XDG_STATE_HOME/tidy/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "tidy")
}

// DefaultManifestDir returns the default manifest directory.
func DefaultManifestDir() string {
	return filepath.Join(DataDir(), "manifests")
}

// DefaultBackupDir returns the default backup directory.
func DefaultBackupDir() string {
	return filepath.Join(DataDir(), "backups")
}

// SigningKeyPath returns the path of the manifest signing key for the
// given manifest directory.
func SigningKeyPath(manifestDir string) string {
	return filepath.Join(manifestDir, ".signing-key")
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}
