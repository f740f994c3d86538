package hyper

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce is how long Watch waits for a burst of changes to settle.
const debounce = 100 * time.Millisecond

// Watch drops loaded templates when files under the root change, so the
// next Lookup recompiles them, and then calls the OnChange listeners. It
// blocks until ctx is done.
func (r *Registry) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := watchDirRecursive(fsw, r.dir); err != nil {
		return err
	}
	log := r.log.With("watch")
	log.Infof("watching %s", r.dir)

	timer := time.NewTimer(debounce)
	timer.Stop()
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				if err := watchDirRecursive(fsw, event.Name); err != nil {
					log.Errorf("cannot watch %s: %v", event.Name, err)
				}
				continue
			}
			if !r.relevant(event) {
				continue
			}
			pending[event.Name] = true
			timer.Reset(debounce)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]bool)

			r.Clear()
			for _, p := range paths {
				log.Infof("template changed: %s", r.name(p))
			}
			r.mu.RLock()
			listeners := append([]func([]string){}, r.listeners...)
			r.mu.RUnlock()
			for _, fn := range listeners {
				fn(paths)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Errorf("watcher error: %v", err)
		}
	}
}

func (r *Registry) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return filepath.Ext(event.Name) == r.s.extension && !r.excluded(event.Name)
}

// watchDirRecursive adds a directory and its subdirectories to the watch
// list, skipping hidden directories.
func watchDirRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return fsw.Add(path)
		}
		return nil
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
