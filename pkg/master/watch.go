package master

import (
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fileWatcher is an optional auxiliary duty of the supervisor: when
// active, any write under the watched directory triggers a reload. It is
// consumed only through this narrow start/stop/events surface; fsnotify's
// own internals are out of scope.
type fileWatcher struct {
	w       *fsnotify.Watcher
	events  chan struct{}
	done    chan struct{}
	polling bool
}

// newFileWatcher starts watching dir. usePolling is accepted for CLI
// symmetry with --watch-use-polling but fsnotify has no polling backend
// on Unix; it is recorded on the watcher and otherwise has no effect.
func newFileWatcher(dir string, usePolling bool) (*fileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addRecursive(w, dir); err != nil {
		w.Close()
		return nil, err
	}

	fw := &fileWatcher{w: w, events: make(chan struct{}, 1), done: make(chan struct{}), polling: usePolling}
	go fw.run()
	return fw, nil
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

func (fw *fileWatcher) run() {
	defer close(fw.done)
	var pending *time.Timer
	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce bursts of edits (a save often fires several
			// events in quick succession) into a single reload signal.
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(100*time.Millisecond, func() {
				select {
				case fw.events <- struct{}{}:
				default:
				}
			})
		case _, ok := <-fw.w.Errors:
			if !ok {
				return
			}
		}
	}
}

// Events signals once, debounced, for every burst of filesystem activity.
func (fw *fileWatcher) Events() <-chan struct{} { return fw.events }

// Stop closes the underlying watcher and waits for its goroutine to exit.
func (fw *fileWatcher) Stop() {
	fw.w.Close()
	<-fw.done
}
