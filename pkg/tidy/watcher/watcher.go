// Package watcher provides filesystem watching for continuous organizing.
// New files in a watched directory are handed to a callback once they have
// settled.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jamesainslie/tidy/pkg/tidy/logging"
)

// settleDelay is how long a newly created file must stay quiet before it
// is reported. Downloads and copies arrive in many writes; organizing a
// half-written file would move it out from under its writer.
const settleDelay = 2 * time.Second

// Watcher watches one directory (non-recursively) for new files.
type Watcher struct {
	watcher *fsnotify.Watcher
	log     *logging.Logger

	// settled carries paths whose settle timer has expired. Timers only
	// enqueue; Run alone invokes the callback, so deliveries never
	// overlap even when several files settle at the same instant.
	settled chan string
	done    chan struct{}

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

// New creates a Watcher for dir.
func New(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{
		watcher: fsw,
		log:     logging.Get("watcher"),
		settled: make(chan string, 64),
		done:    make(chan struct{}),
		pending: make(map[string]*time.Timer),
	}, nil
}

// Run blocks until the context is cancelled, invoking onFile for each new
// file after it has settled. Callbacks are delivered one at a time from
// this goroutine, so onFile may drive sequential-only consumers, such as
// a batch journal, without its own locking.
func (w *Watcher) Run(ctx context.Context, onFile func(path string)) {
	for {
		select {
		case <-ctx.Done():
			return

		case path := <-w.settled:
			onFile(path)

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.schedule(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err)
		}
	}
}

// schedule (re)arms the settle timer for path. Each write pushes the
// deadline out, so the path is enqueued only after the file goes quiet.
func (w *Watcher) schedule(path string) {
	info, err := os.Lstat(path)
	if err != nil || info.IsDir() || info.Mode()&os.ModeSymlink != 0 {
		return
	}
	// Skip dot-files and editors' temp artifacts.
	base := filepath.Base(path)
	if base == "" || base[0] == '.' {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	if timer, ok := w.pending[path]; ok {
		timer.Reset(settleDelay)
		return
	}
	w.pending[path] = time.AfterFunc(settleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case w.settled <- path:
		case <-w.done:
		}
	})
}

// Close stops the watcher and cancels pending timers.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.done)
	}
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
