package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcher_ReportsSettledFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan string, 1)
	done := make(chan struct{})
	go func() {
		w.Run(ctx, func(path string) { seen <- path })
		close(done)
	}()

	path := filepath.Join(dir, "incoming.txt")
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-seen:
		if got != path {
			t.Errorf("callback path = %q, want %q", got, path)
		}
	case <-time.After(settleDelay + 5*time.Second):
		t.Fatal("settled file never reported")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestWatcher_IgnoresDotFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan string, 2)
	go w.Run(ctx, func(path string) { seen <- path })

	if err := os.WriteFile(filepath.Join(dir, ".partial"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	visible := filepath.Join(dir, "visible.txt")
	if err := os.WriteFile(visible, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-seen:
		// Only the visible file may ever be reported.
		if got != visible {
			t.Errorf("callback path = %q, want %q", got, visible)
		}
	case <-time.After(settleDelay + 5*time.Second):
		t.Fatal("visible file never reported")
	}
}

// TestWatcher_SerializesCallbacks creates several files inside one settle
// window, so their timers all expire at nearly the same instant. The
// callbacks must still arrive one at a time: callers hand the callback a
// shared batch journal, which is built for sequential use only.
func TestWatcher_SerializesCallbacks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const files = 4
	var inFlight, delivered atomic.Int32
	var overlapped atomic.Bool
	go w.Run(ctx, func(path string) {
		if inFlight.Add(1) > 1 {
			overlapped.Store(true)
		}
		// Hold the callback long enough that concurrent delivery would
		// be observed as overlap.
		time.Sleep(100 * time.Millisecond)
		inFlight.Add(-1)
		delivered.Add(1)
	})

	for i := 0; i < files; i++ {
		name := filepath.Join(dir, fmt.Sprintf("file%d.txt", i))
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(settleDelay + 10*time.Second)
	for delivered.Load() < files {
		if time.Now().After(deadline) {
			t.Fatalf("only %d of %d files reported", delivered.Load(), files)
		}
		time.Sleep(50 * time.Millisecond)
	}

	if overlapped.Load() {
		t.Error("callbacks overlapped; deliveries must be sequential")
	}
}

func TestWatcher_CloseCancelsPending(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan string, 1)
	go w.Run(ctx, func(path string) { fired <- path })

	if err := os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Close before the settle delay elapses; the pending timer must not
	// fire afterwards.
	time.Sleep(200 * time.Millisecond)
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case path := <-fired:
		t.Errorf("callback fired after Close(): %q", path)
	case <-time.After(settleDelay + time.Second):
	}
}
