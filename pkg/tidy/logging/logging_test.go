package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

// Logging uses package-global state, so these tests run sequentially.

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    log.Level
		wantErr bool
	}{
		{"debug", log.DebugLevel, false},
		{"info", log.InfoLevel, false},
		{"warn", log.WarnLevel, false},
		{"warning", log.WarnLevel, false},
		{"error", log.ErrorLevel, false},
		{"ERROR", log.ErrorLevel, false},
		{"trace", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := parseLevel(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseLevel(%q) accepted", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseLevel(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestGetBeforeInitDiscards(t *testing.T) {
	logger := Get("uninitialized-component")
	if logger == nil {
		t.Fatal("Get() returned nil before Init")
	}
	// Must not panic or write anywhere.
	logger.Info("dropped message")
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tidy.log")
	err := Init(Config{Level: "debug", Path: path})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer func() {
		if err := Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	Get("executor").Info("placement complete", "destination", "/dest/a.txt")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "placement complete") {
		t.Errorf("log file missing message: %q", content)
	}
	if !strings.Contains(content, "executor") {
		t.Errorf("log file missing component prefix: %q", content)
	}
}

func TestComponentLevelOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tidy.log")
	err := Init(Config{
		Level:      "info",
		Path:       path,
		Components: map[string]string{"noisy": "error"},
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer Close()

	Get("noisy").Info("suppressed")
	Get("noisy").Error("reported")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if strings.Contains(content, "suppressed") {
		t.Error("component override did not raise the level")
	}
	if !strings.Contains(content, "reported") {
		t.Error("error message missing from log")
	}
}

func TestInitRejectsInvalidLevel(t *testing.T) {
	if err := Init(Config{Level: "loud"}); err == nil {
		t.Error("Init() accepted invalid level")
		Close()
	}
}
