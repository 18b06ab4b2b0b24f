package system

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reports *.zeek files created under the given prefixes on the
// returned channel until ctx is done. The server feeds these through the
// same path as workspace/didCreateFiles notifications so late-installed
// packages become loadable without a restart.
func Watch(ctx context.Context, prefixes []string, logger *zap.Logger) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, prefix := range prefixes {
		if err := watchTree(watcher, prefix); err != nil {
			logger.Warn("cannot watch prefix", zap.String("prefix", prefix), zap.Error(err))
		}
	}

	created := make(chan string)
	go func() {
		defer watcher.Close()
		defer close(created)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) {
					continue
				}
				// fsnotify watches are not recursive. Packages install
				// whole directory trees, so new directories need their
				// own watches before files land inside them.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchTree(watcher, event.Name); err != nil {
						logger.Warn("cannot watch directory", zap.String("dir", event.Name), zap.Error(err))
					}
					continue
				}
				if !strings.HasSuffix(event.Name, ".zeek") {
					continue
				}
				select {
				case created <- event.Name:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watch error", zap.Error(err))
			}
		}
	}()
	return created, nil
}

// watchTree adds root and every directory below it to the watcher.
func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
