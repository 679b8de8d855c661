// Package watch surfaces out-of-band edits to the table files. The desk
// holds no daemon state between commands, so any editor or script may
// rewrite a table at any time; the watcher reports settled changes to a
// handler (typically a re-scan or a log line).
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handler is invoked once per settled change to a table file.
type Handler func(ctx context.Context, path string)

// Stats tracks watcher activity.
type Stats struct {
	FilesCreated  int
	FilesModified int
	FilesDeleted  int
	Settled       int
	Errors        int
	LastEventPath string
	LastEventType string
	LastEventTime time.Time
}

// Watcher monitors a data directory for changes to *.csv tables.
// Rapid saves of the same file are debounced into one handler call.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	dir         string
	handler     Handler
	log         *zap.Logger
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	stats       Stats
}

// New creates a watcher over dir. The handler may be nil, in which case
// settled changes are only logged.
func New(dir string, handler Handler, log *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		watcher:     fw,
		dir:         dir,
		handler:     handler,
		log:         log,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; events are handled in a
// goroutine until Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	w.log.Info("watching data directory", zap.String("dir", w.dir))

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to drain.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.log.Error("closing watcher", zap.Error(err))
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

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
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-ticker.C:
			w.processSettled(ctx)
		}
	}
}

// handleEvent records a single filesystem event for debounced delivery.
// Temp and lock siblings of the tables are ignored, so the watcher does
// not fire on the storage layer's own atomic replaces in flight.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !relevant(event.Name) {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "modify"
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		eventType = "delete"
	default:
		return
	}

	w.log.Debug("table event", zap.String("type", eventType), zap.String("path", event.Name))

	w.mu.Lock()
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name
	w.stats.LastEventType = eventType
	switch eventType {
	case "create":
		w.stats.FilesCreated++
	case "modify":
		w.stats.FilesModified++
	case "delete":
		w.stats.FilesDeleted++
	}
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// processSettled delivers events that have sat past the debounce
// window.
func (w *Watcher) processSettled(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.stats.Settled += len(settled)
	handler := w.handler
	w.mu.Unlock()

	for _, path := range settled {
		w.log.Info("table changed", zap.String("path", path))
		if handler != nil {
			handler(ctx, path)
		}
	}
}

// relevant reports whether path is a table the watcher should care
// about.
func relevant(path string) bool {
	base := filepath.Base(path)
	if strings.HasSuffix(base, ".tmp") || strings.HasSuffix(base, ".lock") {
		return false
	}
	return strings.HasSuffix(base, ".csv")
}

// IsWatching reports whether the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Stats returns a copy of the activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// Rescan invokes the handler for every table currently in the data
// directory. Useful at startup before any event has fired.
func (w *Watcher) Rescan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !relevant(entry.Name()) {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if w.handler != nil {
			w.handler(ctx, path)
		}
	}
	return nil
}
