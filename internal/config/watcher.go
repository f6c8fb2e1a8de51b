package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the active config file and reports changes so the server
// can apply runtime-adjustable settings (currently the log level) without a
// restart. Editors replace files on save, so rename/create events on the
// watched directory count as changes too.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func()
	debounce time.Duration
}

// NewWatcher creates a watcher for the given config file path. onChange is
// invoked from the watch goroutine after each (debounced) modification.
func NewWatcher(path string, onChange func()) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory rather than the file: atomic-save editors remove
	// the original inode, which would silently end a file-level watch.
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		path:     path,
		watcher:  fsWatcher,
		onChange: onChange,
		debounce: 250 * time.Millisecond,
	}, nil
}

// Start runs the watch loop until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case <-pending:
			w.onChange()

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// watch errors are non-fatal; the next event resumes the loop
		}
	}
}
