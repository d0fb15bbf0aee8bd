package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ritzau/course-planner/pkg/loader"
	"github.com/ritzau/course-planner/pkg/logging"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	ChangeTypeModified ChangeType = iota // created or written
	ChangeTypeRemoved                    // removed or renamed away
)

func (t ChangeType) String() string {
	if t == ChangeTypeRemoved {
		return "removed"
	}
	return "modified"
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// batchDelay groups the events of a single save into one ChangeEvent
const batchDelay = 100 * time.Millisecond

// FileWatcher watches a catalog data directory for file changes
type FileWatcher struct {
	watcher *fsnotify.Watcher
	dir     string
	events  chan ChangeEvent
	mu      sync.Mutex
	stopped bool
}

// NewFileWatcher creates a new file system watcher for a data directory
func NewFileWatcher(dir string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher: watcher,
		dir:     dir,
		events:  make(chan ChangeEvent, 100),
	}

	return fw, nil
}

// Start begins watching for file changes. Only the top level of the
// directory is watched because the loader reads nothing else.
func (fw *FileWatcher) Start(ctx context.Context) error {
	if err := fw.watcher.Add(fw.dir); err != nil {
		fw.watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", fw.dir, err)
	}

	files, err := loader.FindCatalogFiles(fw.dir)
	if err != nil {
		logging.Warn("failed to list catalog files", "path", fw.dir, "error", err)
	}
	watched := 0
	for _, f := range files {
		if filepath.Dir(f) == filepath.Clean(fw.dir) {
			watched++
		} else {
			logging.Warn("catalog file in a subdirectory is ignored", "path", f)
		}
	}
	logging.Info("started watching data directory", "path", fw.dir, "files", watched)

	// Process events
	go fw.processEvents(ctx)

	return nil
}

// processEvents processes file system events and batches them by type
func (fw *FileWatcher) processEvents(ctx context.Context) {
	// Batch events to avoid sending one event per file
	pending := make(map[ChangeType][]string)

	flushTimer := time.NewTimer(batchDelay)
	flushTimer.Stop()

	flush := func() {
		for _, t := range []ChangeType{ChangeTypeModified, ChangeTypeRemoved} {
			if paths := pending[t]; len(paths) > 0 {
				select {
				case fw.events <- ChangeEvent{Type: t, Paths: dedupe(paths), Timestamp: time.Now()}:
				case <-ctx.Done():
				}
			}
		}
		pending = make(map[ChangeType][]string)
	}

	defer func() {
		fw.stop()
		close(fw.events)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			// Filter to only catalog files
			if !loader.IsCatalogFile(event.Name) {
				continue
			}
			logging.Trace("catalog file event", "path", event.Name, "op", event.Op.String())

			switch {
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				pending[ChangeTypeRemoved] = append(pending[ChangeTypeRemoved], event.Name)
			case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
				pending[ChangeTypeModified] = append(pending[ChangeTypeModified], event.Name)
			default:
				continue
			}
			flushTimer.Reset(batchDelay)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events. It is closed when the
// watcher stops.
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Stop stops the file watcher
func (fw *FileWatcher) Stop() error {
	return fw.stop()
}

func (fw *FileWatcher) stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.stopped {
		return nil
	}
	fw.stopped = true
	return fw.watcher.Close()
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
