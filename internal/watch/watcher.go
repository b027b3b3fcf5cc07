// Package watch reruns a callback when files under a working directory change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/sbalabanov/vx/internal/tree"
)

// DefaultDebounce coalesces bursts of events, such as an editor save.
const DefaultDebounce = 200 * time.Millisecond

type Watcher struct {
	root     string
	ignore   tree.Ignore
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger
}

func New(root string, ignore tree.Ignore, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		ignore:   ignore,
		watcher:  watcher,
		debounce: debounce,
		logger:   logger,
	}
	if err := w.addTree(root); err != nil {
		watcher.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and every non-ignored directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignore.Match(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("adding directory to watcher: %w", err)
		}
		return nil
	})
}

func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return true
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part != "." && w.ignore.Match(part) {
			return true
		}
	}
	return false
}

// Run calls fn once, then again after each quiet period following a change,
// until ctx is done. An error from fn stops the loop.
func (w *Watcher) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	defer w.watcher.Close()

	if err := fn(ctx); err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("watching new directory", zap.String("path", event.Name), zap.Error(err))
					}
				}
			}
			w.logger.Debug("change observed", zap.String("path", event.Name), zap.Stringer("op", event.Op))

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := fn(ctx); err != nil {
				return err
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}
