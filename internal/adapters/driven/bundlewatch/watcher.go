// Package bundlewatch watches the bundle root directory and reports
// newly published bundle versions, letting a running server hot-swap
// to a fresh model without a restart.
//
// Publication renames a staging directory into place, so a complete
// bundle always appears as a single create event. Staging directories
// are dot-prefixed and ignored.
package bundlewatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/logger"
)

// Watcher reports new bundle versions appearing under a root directory.
type Watcher struct {
	root      string
	watcher   *fsnotify.Watcher
	onPublish func(version string)
}

// New creates a watcher over the bundle root. onPublish is called with
// the version tag of each newly published bundle; it runs on the watch
// goroutine, so it must not block.
func New(root string, onPublish func(version string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fw.Add(root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}
	return &Watcher{root: root, watcher: fw, onPublish: onPublish}, nil
}

// Start processes filesystem events until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	defer w.watcher.Close()

	logger.Debug("bundlewatch: watching %s", w.root)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			version := filepath.Base(event.Name)
			if strings.HasPrefix(version, ".") {
				continue
			}
			if !isBundleDir(event.Name) {
				continue
			}
			logger.Info("bundlewatch: new bundle %s", version)
			w.onPublish(version)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("bundlewatch: %v", err)
		}
	}
}

// isBundleDir accepts only directories holding a manifest, which a
// completed atomic publish guarantees.
func isBundleDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	_, err = os.Stat(filepath.Join(path, "manifest.yaml"))
	return err == nil
}
