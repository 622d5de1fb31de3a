package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"pktcloud/internal/logging"
)

// watchDebounce batches the write+rename pair an atomic save produces.
const watchDebounce = 100 * time.Millisecond

// Watcher reloads a Store when another process rewrites its file.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	onChange func()
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Watch starts watching the store's directory. onChange runs on the watcher
// goroutine after a reload that changed at least one value.
func (s *Store) Watch(ctx context.Context, onChange func()) (*Watcher, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create settings dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// The directory is watched rather than the file: an atomic rename
	// replaces the inode and would drop a file watch.
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{
		store:    s,
		watcher:  fw,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go w.run(ctx)
	logging.Settings("watching %s", s.path)
	return w, nil
}

// Stop ends the watch and waits for the goroutine to exit.
func (w *Watcher) Stop() {
	select {
	case <-w.stopCh:
		return
	default:
	}
	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		logging.SettingsError("error closing watcher: %v", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	target := filepath.Clean(w.store.path)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.SettingsError("watcher error: %v", err)

		case <-fire:
			fire = nil
			changed, err := w.store.reloadIfChanged()
			if err != nil {
				logging.SettingsError("reload failed: %v", err)
				continue
			}
			if changed && w.onChange != nil {
				w.onChange()
			}
		}
	}
}
