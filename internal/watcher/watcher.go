// Package watcher turns filesystem events on the source root into debounced
// change notifications. The root is watched flat, matching the flat unit
// scan: nested directories never hold units.
package watcher

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"rebuild/internal/observability"
)

type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	debounce   time.Duration
	suffix     string
	exclude    []glob.Glob
	onChange   func([]string)
	callbackMu sync.Mutex

	pending   map[string]bool
	pendingMu sync.Mutex
	timer     *time.Timer
}

// New creates a watcher over unit files ending in suffix. onChange receives
// the batched unit file names after the debounce window closes.
func New(debounce time.Duration, suffix string, exclude []string, onChange func([]string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsw,
		debounce:  debounce,
		suffix:    suffix,
		onChange:  onChange,
		pending:   make(map[string]bool),
	}

	for _, pattern := range exclude {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		w.exclude = append(w.exclude, g)
	}

	return w, nil
}

// Watch registers the source root and starts the event loop.
func (w *Watcher) Watch(root string) error {
	if err := w.fsWatcher.Add(root); err != nil {
		return err
	}
	go w.run()
	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			name := baseName(event.Name)
			if !w.isUnit(name) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				observability.WatcherEventsTotal.Inc()
				w.scheduleChange(name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(name string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[name] = true

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	names := make([]string, 0, len(w.pending))
	for name := range w.pending {
		names = append(names, name)
	}
	w.pending = make(map[string]bool)
	w.pendingMu.Unlock()

	if len(names) > 0 {
		w.callbackMu.Lock()
		defer w.callbackMu.Unlock()
		w.onChange(names)
	}
}

func (w *Watcher) isUnit(name string) bool {
	if !strings.HasSuffix(name, w.suffix) {
		return false
	}
	for _, g := range w.exclude {
		if g.Match(name) {
			return false
		}
	}
	return true
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}

func baseName(path string) string {
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
