package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	m "nginline.dev/pkg/nginline/internal/model"
)

// DefaultDebounce is how long the watcher waits for more events before reporting.
const DefaultDebounce = 300 * time.Millisecond

// Watcher reports batches of changed files under a set of directories.
type Watcher interface {
	// Watch blocks until ctx is done, calling onChange with the files that
	// changed during each debounce window.
	Watch(ctx context.Context, roots []m.Path, onChange func([]m.Path)) error
}

// FSNotifyWatcher implements Watcher with fsnotify.
type FSNotifyWatcher struct {
	debounce time.Duration
}

// NewFSNotifyWatcher constructs a watcher; a non-positive debounce uses DefaultDebounce.
func NewFSNotifyWatcher(debounce time.Duration) *FSNotifyWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &FSNotifyWatcher{debounce: debounce}
}

// Watch adds every directory below roots and reports debounced changes.
func (w *FSNotifyWatcher) Watch(ctx context.Context, roots []m.Path, onChange func([]m.Path)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	defer func() {
		_ = watcher.Close()
	}()

	for _, root := range roots {
		if err := addTree(watcher, string(root)); err != nil {
			return err
		}
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	var (
		debounceCh <-chan time.Time
		pending    = map[m.Path]struct{}{}
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if err := addTree(watcher, event.Name); err != nil {
						slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}

			pending[m.Path(event.Name)] = struct{}{}

			timer.Reset(w.debounce)
			debounceCh = timer.C

		case <-debounceCh:
			debounceCh = nil
			onChange(drain(pending))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			slog.Error("watch error", "error", err)
		}
	}
}

func drain(pending map[m.Path]struct{}) []m.Path {
	changed := make([]m.Path, 0, len(pending))
	for path := range pending {
		changed = append(changed, path)
		delete(pending, path)
	}

	sort.Slice(changed, func(i, j int) bool { return changed[i] < changed[j] })

	return changed
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			return nil
		}

		if path != root && skippedDirs[info.Name()] {
			return filepath.SkipDir
		}

		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}

		return nil
	})
}
