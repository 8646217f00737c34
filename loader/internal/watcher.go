package internal

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const scanInterval = time.Second

// Watcher polls a directory and emits files that have sat unmodified for the
// stability window, so half-copied uploads are never picked up.
type Watcher struct {
	dir       string
	stableFor time.Duration

	mu         sync.Mutex
	firstSeen  map[string]time.Time
	processing map[string]bool
}

func NewWatcher(dir string, stableFor time.Duration) *Watcher {
	return &Watcher{
		dir:        dir,
		stableFor:  stableFor,
		firstSeen:  make(map[string]time.Time),
		processing: make(map[string]bool),
	}
}

// Watch scans until ctx is done, sending ready file paths on fileChan. A
// path is ready when it is a regular .pdf file, first seen longer than the
// stability window ago, and not already in flight.
func (w *Watcher) Watch(ctx context.Context, fileChan chan<- string) {
	slog.Info("watching folder", "dir", w.dir, "stable_after", w.stableFor)

	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("file watcher stopped")
			return
		case <-ticker.C:
			w.scan(ctx, fileChan)
		}
	}
}

func (w *Watcher) scan(ctx context.Context, fileChan chan<- string) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		slog.Error("reading source directory", "dir", w.dir, "err", err)
		return
	}

	current := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		current[path] = true

		w.mu.Lock()
		if w.processing[path] {
			w.mu.Unlock()
			continue
		}
		firstSeen, known := w.firstSeen[path]
		if !known {
			w.firstSeen[path] = time.Now()
			w.mu.Unlock()
			slog.Info("new file detected", "file", path)
			continue
		}
		w.mu.Unlock()

		if time.Since(firstSeen) < w.stableFor {
			continue
		}

		w.mu.Lock()
		w.processing[path] = true
		w.mu.Unlock()

		select {
		case fileChan <- path:
		case <-ctx.Done():
			return
		}
	}

	// Paths gone from the directory stop being tracked.
	w.mu.Lock()
	for path := range w.firstSeen {
		if !current[path] {
			delete(w.firstSeen, path)
			delete(w.processing, path)
		}
	}
	w.mu.Unlock()
}

// Forget clears tracking state once a file has been processed and moved out
// of the source directory.
func (w *Watcher) Forget(path string) {
	w.mu.Lock()
	delete(w.firstSeen, path)
	delete(w.processing, path)
	w.mu.Unlock()
}
