package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mkarlsson/taskgraph/pkg/logging"
)

// ChangeEvent represents a batch of changes to the task store
type ChangeEvent struct {
	Paths     []string
	Timestamp time.Time
}

// StoreWatcher watches the task collection file for external modifications.
// Because saves go through a temp-file-and-rename dance, it watches the
// containing directory and filters on the store's base name.
type StoreWatcher struct {
	watcher   *fsnotify.Watcher
	storePath string
	baseName  string
	events    chan ChangeEvent
	done      chan struct{}
	mu        sync.Mutex
}

// NewStoreWatcher creates a watcher for the given task collection file
func NewStoreWatcher(storePath string) (*StoreWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	abs, err := filepath.Abs(storePath)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve store path: %w", err)
	}

	sw := &StoreWatcher{
		watcher:   watcher,
		storePath: abs,
		baseName:  filepath.Base(abs),
		events:    make(chan ChangeEvent, 100),
		done:      make(chan struct{}),
	}

	return sw, nil
}

// Start begins watching for store changes
func (sw *StoreWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(sw.storePath)
	if err := sw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	logging.Info("started watching task store", "path", sw.storePath)

	go sw.processEvents(ctx)

	return nil
}

// relevant reports whether a file system event concerns the store file itself.
// Temp files from atomic saves and the lock sentinel share the directory and
// must not trigger a reload.
func (sw *StoreWatcher) relevant(name string) bool {
	base := filepath.Base(name)
	if strings.HasSuffix(base, ".lock") || strings.HasPrefix(base, ".tasks-") {
		return false
	}
	return base == sw.baseName
}

// processEvents batches file system events so a single save does not emit
// one event per syscall
func (sw *StoreWatcher) processEvents(ctx context.Context) {
	var pending []string

	flushTimer := time.NewTimer(100 * time.Millisecond)
	flushTimer.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		sw.events <- ChangeEvent{
			Paths:     pending,
			Timestamp: time.Now(),
		}
		pending = nil
	}

	for {
		select {
		case <-ctx.Done():
			sw.watcher.Close()
			close(sw.events)
			close(sw.done)
			return

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}

			if !sw.relevant(event.Name) {
				continue
			}
			// Rename shows up when a temp file is moved over the store;
			// Write and Create cover in-place editors.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			pending = append(pending, event.Name)
			flushTimer.Reset(100 * time.Millisecond)

		case <-flushTimer.C:
			flush()

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events
func (sw *StoreWatcher) Events() <-chan ChangeEvent {
	return sw.events
}

// Stop stops the watcher
func (sw *StoreWatcher) Stop() error {
	close(sw.done)
	return sw.watcher.Close()
}
