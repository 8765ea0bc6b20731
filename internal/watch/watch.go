// Package watch triggers a server restart when its binary changes on
// disk, for development setups where the server is rebuilt in place.
package watch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce batches the event bursts a rebuild produces into one
// restart.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a set of files and invokes a callback once per
// debounced burst of changes.
type Watcher struct {
	fsw      *fsnotify.Watcher
	paths    map[string]bool
	debounce time.Duration
	onChange func()
	log      *slog.Logger
	quit     chan struct{}
}

// New watches the given files. Parent directories are registered rather
// than the files themselves: build tools replace binaries instead of
// writing them in place, and a watch on the old inode would go stale.
func New(paths []string, onChange func(), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		paths:    make(map[string]bool, len(paths)),
		debounce: DefaultDebounce,
		onChange: onChange,
		log:      logger,
		quit:     make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		p = filepath.Clean(p)
		w.paths[p] = true
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	var pending <-chan time.Time
	for {
		select {
		case <-w.quit:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.paths[filepath.Clean(ev.Name)] {
				continue
			}
			if !ev.Op.Has(fsnotify.Write | fsnotify.Create | fsnotify.Rename) {
				continue
			}
			w.log.Debug("change detected", "path", ev.Name, "op", ev.Op.String())
			pending = time.After(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)

		case <-pending:
			pending = nil
			w.onChange()
		}
	}
}

// Close stops the watcher. Pending callbacks are dropped.
func (w *Watcher) Close() error {
	close(w.quit)
	return w.fsw.Close()
}
