// Package watcher reports debounced filesystem changes under agent skill
// directories and the registry root.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/fxding/forks/pkg/logger"
)

// DefaultDebounce is how long the watcher waits for events to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a set of directories and their immediate children.
type Watcher struct {
	roots    []string
	debounce time.Duration

	// OnChange receives the sorted, de-duplicated paths changed during one
	// debounce window.
	OnChange func(ctx context.Context, paths []string)
}

// New creates a watcher over roots. Roots that do not exist yet are skipped
// when Run starts.
func New(roots []string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{roots: roots, debounce: debounce}
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer fw.Close()

	watched := 0
	for _, root := range w.roots {
		watched += w.addTree(ctx, fw, root)
	}
	if watched == 0 {
		return errors.New("no directories to watch")
	}
	logger.G(ctx).WithField("dirs", watched).Debug("watching for skill changes")

	events := make(chan string)
	go debounce(ctx, events, w.debounce, func(batch []string) {
		if w.OnChange != nil {
			w.OnChange(ctx, batch)
		}
	})

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.add(ctx, fw, event.Name)
				}
			}
			logger.G(ctx).WithField("path", event.Name).WithField("op", event.Op.String()).Debug("file event")
			select {
			case events <- event.Name:
			case <-ctx.Done():
				return nil
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.G(ctx).WithError(err).Warn("file watcher error")
		case <-ctx.Done():
			return nil
		}
	}
}

// addTree watches root and each directory directly beneath it.
func (w *Watcher) addTree(ctx context.Context, fw *fsnotify.Watcher, root string) int {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		logger.G(ctx).WithField("path", root).Debug("skipping missing watch root")
		return 0
	}
	n := 0
	if w.add(ctx, fw, root) {
		n++
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return n
	}
	for _, e := range entries {
		path := filepath.Join(root, e.Name())
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.add(ctx, fw, path) {
				n++
			}
		}
	}
	return n
}

func (w *Watcher) add(ctx context.Context, fw *fsnotify.Watcher, path string) bool {
	if err := fw.Add(path); err != nil {
		logger.G(ctx).WithError(err).WithField("path", path).Warn("failed to watch directory")
		return false
	}
	return true
}

// debounce collects paths from input and emits them as one batch once no
// new path has arrived for delay.
func debounce(ctx context.Context, input <-chan string, delay time.Duration, emit func([]string)) {
	pending := make(map[string]struct{})
	timer := time.NewTimer(delay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case path, ok := <-input:
			if !ok {
				return
			}
			pending[path] = struct{}{}
			timer.Reset(delay)
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			pending = make(map[string]struct{})
			emit(batch)
		case <-ctx.Done():
			return
		}
	}
}
