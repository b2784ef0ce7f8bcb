package config

import (
	"os"
	"path/filepath"
	"testing"
)

// isolate points config discovery at an empty temp home so the developer's
// real config never leaks into tests.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	return home
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Strategy != DefaultStrategy {
		t.Errorf("Strategy = %q, want %q", cfg.Strategy, DefaultStrategy)
	}
	if cfg.ManifestDir == "" || cfg.BackupDir == "" {
		t.Error("storage directories not defaulted")
	}
	if cfg.Categories["pdf"] != "Documents" {
		t.Errorf("Categories[pdf] = %q", cfg.Categories["pdf"])
	}
	if len(cfg.DateSubpathCategories) == 0 {
		t.Error("DateSubpathCategories not defaulted")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("TIDY_STRATEGY", "skip")
	t.Setenv("TIDY_MANIFEST_DIR", "/var/lib/tidy/manifests")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Strategy != "skip" {
		t.Errorf("Strategy = %q, want skip", cfg.Strategy)
	}
	if cfg.ManifestDir != "/var/lib/tidy/manifests" {
		t.Errorf("ManifestDir = %q", cfg.ManifestDir)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	home := isolate(t)

	dir := filepath.Join(home, ".config", "tidy")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := `
strategy: overwrite
dest_root: ~/Sorted
categories:
  ".STL": Models
  log: Documents
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Strategy != "overwrite" {
		t.Errorf("Strategy = %q", cfg.Strategy)
	}
	if want := filepath.Join(home, "Sorted"); cfg.DestRoot != want {
		t.Errorf("DestRoot = %q, want %q (tilde expanded)", cfg.DestRoot, want)
	}

	// User rules are normalized and merged over the built-in table.
	if cfg.Categories["stl"] != "Models" {
		t.Errorf("Categories[stl] = %q", cfg.Categories["stl"])
	}
	if cfg.Categories["log"] != "Documents" {
		t.Errorf("Categories[log] = %q", cfg.Categories["log"])
	}
	if cfg.Categories["jpg"] != "Images" {
		t.Error("built-in rules lost during merge")
	}
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	home := isolate(t)

	dir := filepath.Join(home, ".config", "tidy")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("strategy: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Error("Load() accepted malformed YAML")
	}
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)

	got, err := ExpandPath("~/Downloads")
	if err != nil {
		t.Fatalf("ExpandPath() error = %v", err)
	}
	if want := filepath.Join(home, "Downloads"); got != want {
		t.Errorf("ExpandPath(~/Downloads) = %q, want %q", got, want)
	}

	got, err = ExpandPath("/absolute/path")
	if err != nil {
		t.Fatalf("ExpandPath() error = %v", err)
	}
	if got != "/absolute/path" {
		t.Errorf("ExpandPath(/absolute/path) = %q", got)
	}

	got, err = ExpandPath("")
	if err != nil || got != "" {
		t.Errorf("ExpandPath(\"\") = %q, %v", got, err)
	}
}

func TestSigningKeyPath(t *testing.T) {
	t.Parallel()

	if got := SigningKeyPath("/data/manifests"); got != "/data/manifests/.signing-key" {
		t.Errorf("SigningKeyPath() = %q", got)
	}
}
