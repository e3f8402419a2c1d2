// Package watcher triggers re-scans when files under the search root
// change. Events are debounced so a burst of writes produces one batch.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/quersearch/quer/internal/debug"
)

// DefaultDebounce is the quiet period before a batch of events fires.
const DefaultDebounce = 500 * time.Millisecond

// FileEventType represents the type of file system event
type FileEventType int

const (
	FileEventCreate FileEventType = iota
	FileEventWrite
	FileEventRemove
	FileEventRename
)

// BatchFunc receives a debounced batch of changed paths with their most
// recent event type.
type BatchFunc func(events map[string]FileEventType)

// Options controls which events survive filtering.
type Options struct {
	Root          string
	IncludeHidden bool
	Include       []string
	Exclude       []string
	Debounce      time.Duration
}

// FileWatcher monitors the search root and reports batches of changed
// files through the configured callback.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	opts      Options
	debouncer *eventDebouncer
	onBatch   BatchFunc
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	statsMu         sync.RWMutex
	eventsProcessed int64
	errorCount      int64
	lastEventTime   time.Time
}

// NewFileWatcher creates a watcher over opts.Root. Events are filtered
// the same way the directory walker filters files.
func NewFileWatcher(opts Options, onBatch BatchFunc) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	fw := &FileWatcher{
		watcher: w,
		opts:    opts,
		onBatch: onBatch,
	}
	fw.debouncer = newEventDebouncer(opts.Debounce, fw.flushBatch)

	return fw, nil
}

// Start adds watches for the whole tree and begins event processing.
func (fw *FileWatcher) Start(ctx context.Context) error {
	debug.LogWalk("starting file watcher for %s\n", fw.opts.Root)

	if err := fw.addWatches(fw.opts.Root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", fw.opts.Root, err)
	}

	ctx, fw.cancel = context.WithCancel(ctx)

	fw.wg.Add(1)
	go fw.processEvents(ctx)

	return nil
}

// Stop stops the file watcher. Events pending in the debouncer are
// dropped.
func (fw *FileWatcher) Stop() error {
	if fw.cancel != nil {
		fw.cancel()
	}
	err := fw.watcher.Close()
	fw.wg.Wait()
	fw.debouncer.stop()
	return err
}

// addWatches recursively adds watches to all relevant directories
func (fw *FileWatcher) addWatches(root string) error {
	// Track visited directories to prevent infinite loops from symlink cycles
	visitedDirs := make(map[string]bool)

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}

		if !info.IsDir() {
			return nil
		}

		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visitedDirs[realPath] {
			return filepath.SkipDir
		}
		visitedDirs[realPath] = true

		if fw.shouldIgnoreDirectory(path) {
			return filepath.SkipDir
		}

		if err := fw.watcher.Add(path); err != nil {
			debug.LogWalk("failed to add watch for %s: %v\n", path, err)
			return nil // Continue despite errors
		}

		return nil
	})
}

// shouldIgnoreDirectory checks if a directory should be skipped entirely
func (fw *FileWatcher) shouldIgnoreDirectory(path string) bool {
	base := filepath.Base(path)
	if !fw.opts.IncludeHidden && strings.HasPrefix(base, ".") && path != fw.opts.Root {
		return true
	}

	for _, pattern := range fw.opts.Exclude {
		dirPattern := pattern
		if strings.HasSuffix(pattern, "/**") {
			dirPattern = strings.TrimSuffix(pattern, "/**")
		}
		if matched, _ := doublestar.Match(dirPattern, fw.relPath(path)); matched {
			return true
		}
		if matched, _ := filepath.Match(dirPattern, base); matched {
			return true
		}
	}

	return false
}

// processEvents processes file system events from fsnotify
func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer fw.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.incrementStats(0, 1)
			debug.LogWalk("file watcher error: %v\n", err)
		}
	}
}

// handleEvent handles a single file system event
func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	debug.LogWalk("watcher event %v for %s\n", event.Op, path)

	info, err := os.Stat(path)
	if err != nil {
		// File might have been deleted
		if event.Op&fsnotify.Remove != 0 && fw.shouldProcessPath(path) {
			fw.debouncer.addEvent(path, FileEventRemove)
		}
		return
	}

	if info.IsDir() {
		// New directories need a watch of their own.
		if event.Op&fsnotify.Create != 0 && !fw.shouldIgnoreDirectory(path) {
			if err := fw.watcher.Add(path); err != nil {
				debug.LogWalk("failed to add watch for new directory %s: %v\n", path, err)
			}
		}
		return
	}

	if !fw.shouldProcessPath(path) {
		return
	}

	var eventType FileEventType
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = FileEventCreate
	case event.Op&fsnotify.Write != 0:
		eventType = FileEventWrite
	case event.Op&fsnotify.Remove != 0:
		eventType = FileEventRemove
	case event.Op&fsnotify.Rename != 0:
		eventType = FileEventRename
	default:
		return // Ignore other events
	}

	fw.debouncer.addEvent(path, eventType)
}

// shouldProcessPath applies the walker's filtering rules to one file
func (fw *FileWatcher) shouldProcessPath(path string) bool {
	base := filepath.Base(path)
	if !fw.opts.IncludeHidden && strings.HasPrefix(base, ".") {
		return false
	}

	rel := fw.relPath(path)

	for _, pattern := range fw.opts.Exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return false
		}
	}

	if len(fw.opts.Include) == 0 {
		return true
	}
	for _, pattern := range fw.opts.Include {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}

func (fw *FileWatcher) relPath(path string) string {
	rel, err := filepath.Rel(fw.opts.Root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}

func (fw *FileWatcher) flushBatch(events map[string]FileEventType) {
	fw.incrementStats(int64(len(events)), 0)
	if fw.onBatch != nil {
		fw.onBatch(events)
	}
}

// incrementStats updates watch mode statistics
func (fw *FileWatcher) incrementStats(events int64, errors int64) {
	fw.statsMu.Lock()
	defer fw.statsMu.Unlock()

	fw.eventsProcessed += events
	fw.errorCount += errors
	fw.lastEventTime = time.Now()
}

// Stats returns current watch mode statistics
func (fw *FileWatcher) Stats() WatchStats {
	fw.statsMu.RLock()
	defer fw.statsMu.RUnlock()

	return WatchStats{
		EventsProcessed: fw.eventsProcessed,
		ErrorCount:      fw.errorCount,
		LastEventTime:   fw.lastEventTime,
	}
}

// WatchStats contains statistics about file watching operations
type WatchStats struct {
	EventsProcessed int64
	ErrorCount      int64
	LastEventTime   time.Time
}

// eventDebouncer batches file events to avoid excessive processing
type eventDebouncer struct {
	events   map[string]FileEventType
	mutex    sync.Mutex
	debounce time.Duration
	timer    *time.Timer
	flushFn  func(map[string]FileEventType)
}

// newEventDebouncer creates a new event debouncer
func newEventDebouncer(debounce time.Duration, flushFn func(map[string]FileEventType)) *eventDebouncer {
	return &eventDebouncer{
		events:   make(map[string]FileEventType),
		debounce: debounce,
		flushFn:  flushFn,
	}
}

// addEvent adds a file event to be debounced
func (d *eventDebouncer) addEvent(path string, eventType FileEventType) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	// Store the latest event for this path
	d.events[path] = eventType

	// Reset the timer
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.flush)
}

func (d *eventDebouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	// Events pending at shutdown are acceptable to lose; the caller is
	// tearing down the scan loop anyway.
	d.events = make(map[string]FileEventType)
}

// flush hands all accumulated events to the batch callback
func (d *eventDebouncer) flush() {
	d.mutex.Lock()
	events := d.events
	d.events = make(map[string]FileEventType)
	d.mutex.Unlock()

	if len(events) == 0 {
		return
	}

	d.flushFn(events)
}
