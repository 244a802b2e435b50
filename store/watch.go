package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"commandset/log"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDelay is how long a Watcher waits for a burst of writes to settle.
const DefaultWatchDelay = 100 * time.Millisecond

// Watcher reports rewrites of one FileStore key.
type Watcher struct {
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Watch calls onChange after the file holding key is written, by this process
// or any other. Bursts of writes within delay produce one call. onChange runs
// on its own goroutine.
func (s *FileStore) Watch(key string, delay time.Duration, onChange func()) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultWatchDelay
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Saves rename a temporary file over the target, so watch the directory.
	if err := fw.Add(s.dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	w := &Watcher{
		watcher:   fw,
		debouncer: newDebouncer(delay),
		done:      make(chan struct{}),
	}
	target := filepath.Clean(s.Path(key))

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.done:
				return
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				w.debouncer.trigger(onChange)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.WarningLog.Printf("watching %s: %v", target, err)
			}
		}
	}()

	return w, nil
}

// Close stops watching. A callback already running is not waited for.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.debouncer.stop()
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}
