// Package watch re-runs validation when IR snapshots or raw constraint
// files change on disk. Events are debounced so one save burst produces
// one validation run.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/devmatrix-ai/devmatrix-mvp-sub001/config"
)

// Event is a debounced batch of changed paths.
type Event struct {
	Paths []string
}

// Watcher watches a directory tree for constraint and IR file changes.
type Watcher struct {
	cfg    config.WatchConfig
	root   string
	logger *slog.Logger

	watcher  *fsnotify.Watcher
	excludes map[string]bool

	mu      sync.Mutex
	pending map[string]bool
}

// New creates a watcher rooted at dir.
func New(root string, cfg config.WatchConfig, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	excludes := make(map[string]bool, len(cfg.ExcludeDirs))
	for _, d := range cfg.ExcludeDirs {
		excludes[d] = true
	}

	w := &Watcher{
		cfg:      cfg,
		root:     root,
		logger:   logger,
		watcher:  fw,
		excludes: excludes,
		pending:  make(map[string]bool),
	}

	if err := w.addRecursive(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// addRecursive registers dir and its non-excluded subdirectories.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.excludes[d.Name()] && path != dir {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// matches checks the changed path against the configured globs.
func (w *Watcher) matches(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.cfg.Patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// Run delivers debounced change events until ctx is canceled. The
// channel is closed on shutdown.
func (w *Watcher) Run(ctx context.Context) <-chan Event {
	out := make(chan Event, 1)

	go func() {
		defer close(out)
		defer w.watcher.Close()

		var timer *time.Timer
		var timerC <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if ev.Op.Has(fsnotify.Create) {
					// New directories must be added to the watch set.
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						if !w.excludes[filepath.Base(ev.Name)] {
							_ = w.addRecursive(ev.Name)
						}
						continue
					}
				}
				if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
					continue
				}
				if !w.matches(ev.Name) {
					continue
				}

				w.mu.Lock()
				w.pending[ev.Name] = true
				w.mu.Unlock()

				if timer == nil {
					timer = time.NewTimer(w.cfg.Debounce)
					timerC = timer.C
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(w.cfg.Debounce)
				}

			case <-timerC:
				w.mu.Lock()
				paths := make([]string, 0, len(w.pending))
				for p := range w.pending {
					paths = append(paths, p)
				}
				w.pending = make(map[string]bool)
				w.mu.Unlock()

				timer = nil
				timerC = nil

				if len(paths) == 0 {
					continue
				}
				w.logger.Debug("File changes detected", "count", len(paths))
				select {
				case out <- Event{Paths: paths}:
				case <-ctx.Done():
					return
				}

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("Watcher error", "error", err)
			}
		}
	}()

	return out
}
