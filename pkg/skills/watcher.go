package skills

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/zoe-assistant/zoe/pkg/logger"
)

const reloadDebounce = 500 * time.Millisecond

// Watcher hot-reloads the registry when skill files change on disk.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
}

// NewWatcher watches the registry's skill roots (and their immediate skill
// subdirectories) for changes. Missing roots are skipped.
func NewWatcher(registry *Registry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create filesystem watcher")
	}

	w := &Watcher{registry: registry, watcher: fsw}

	for _, root := range []string{registry.cfg.CoreDir, registry.cfg.ModulesDir, registry.cfg.UserDir} {
		w.addTree(root)
	}

	return w, nil
}

func (w *Watcher) addTree(root string) {
	if root == "" {
		return
	}
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		_ = w.watcher.Add(path)
		return nil
	})
}

// Run blocks until ctx is cancelled, reloading the registry after a burst of
// filesystem events settles.
func (w *Watcher) Run(ctx context.Context) {
	log := logger.G(ctx)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// New skill directories need watching too.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.watcher.Add(event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerC = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("skills watcher error")
		case <-timerC:
			timer = nil
			timerC = nil
			log.Debug("skill files changed; reloading registry")
			if err := w.registry.Load(ctx); err != nil {
				log.WithError(err).Error("hot reload of skills registry failed")
			}
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
