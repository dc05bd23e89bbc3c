// Package watcher feeds files that appear or change under a directory to a single consumer,
// debouncing bursts of writes to the same path.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	defaultDebounce = 500 * time.Millisecond
	queueSize       = 64
)

// Handler processes one settled file. Calls are never concurrent.
type Handler func(ctx context.Context, path string)

// Watcher watches one root directory. A Watcher runs once.
type Watcher struct {
	root         string
	extensions   []string
	recursive    bool
	debounce     time.Duration
	syncExisting bool
	handle       Handler
	logger       *zap.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	queued map[string]bool
	queue  chan string
	done   chan struct{}
	wg     sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output (directory changes, file events, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long a path must stay quiet before it is handled.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithRecursive controls whether subdirectories, including ones created later, are watched.
func WithRecursive(recursive bool) Option {
	return func(w *Watcher) { w.recursive = recursive }
}

// WithSyncExisting queues every matching file already under root when Run starts.
func WithSyncExisting() Option {
	return func(w *Watcher) { w.syncExisting = true }
}

// New returns a watcher for root. Only files whose names end with one of extensions are
// handled; an empty list accepts every file.
func New(root string, extensions []string, handle Handler, opts ...Option) *Watcher {
	w := &Watcher{
		root:       filepath.Clean(root),
		extensions: extensions,
		recursive:  true,
		debounce:   defaultDebounce,
		handle:     handle,
		logger:     zap.NewNop(),
		timers:     make(map[string]*time.Timer),
		queued:     make(map[string]bool),
		queue:      make(chan string, queueSize),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. Pending debounced paths are dropped on return and the
// handler call in progress, if any, is waited for.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	w.logger.Debug("watcher started",
		zap.String("root", w.root),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive),
		zap.Duration("debounce", w.debounce))

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.consume(ctx)
	}()
	if w.syncExisting {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.syncDirectory(w.root)
		}()
	}
	defer w.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) shutdown() {
	w.mu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	close(w.done)
	w.wg.Wait()
	w.logger.Debug("watcher stopped", zap.String("root", w.root))
}

func (w *Watcher) consume(ctx context.Context) {
	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		case path := <-w.queue:
			if ctx.Err() != nil {
				return
			}
			w.mu.Lock()
			delete(w.queued, path)
			w.mu.Unlock()
			w.handle(ctx, path)
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !inDir(w.root, path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if ev.Has(fsnotify.Create) {
				w.handleNewDirectory(fw, path)
			}
			return
		}
		if matchExtension(path, w.extensions) {
			w.debounceFile(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
	}
}

// handleNewDirectory watches a directory created (or moved in) under root and queues the
// files it already holds.
func (w *Watcher) handleNewDirectory(fw *fsnotify.Watcher, dir string) {
	if !w.recursive {
		return
	}
	if err := w.addTree(fw, dir); err != nil {
		w.logger.Warn("watcher failed to add directory", zap.String("path", dir), zap.Error(err))
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.syncDirectory(dir)
	}()
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}
	if !w.recursive {
		return fw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.logger.Warn("watcher skipping directory", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			return err
		}
		w.logger.Debug("watcher added directory", zap.String("path", path))
		return nil
	})
}

func (w *Watcher) syncDirectory(dir string) {
	w.logger.Debug("watcher syncing directory", zap.String("path", dir))
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && !w.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && matchExtension(path, w.extensions) {
			if !w.enqueue(path) {
				return filepath.SkipAll
			}
		}
		return nil
	})
}

func (w *Watcher) debounceFile(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.enqueue(path)
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

// enqueue hands path to the consumer unless it is already waiting. It reports false once
// the watcher is shutting down.
func (w *Watcher) enqueue(path string) bool {
	w.mu.Lock()
	if w.queued[path] {
		w.mu.Unlock()
		return true
	}
	w.queued[path] = true
	w.mu.Unlock()
	select {
	case w.queue <- path:
		w.logger.Debug("watcher queued file", zap.String("path", path))
		return true
	case <-w.done:
		return false
	}
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// matchExtension compares name suffixes case-insensitively. An empty list matches everything.
func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	lower := strings.ToLower(filepath.Base(path))
	for _, e := range extensions {
		if e = strings.ToLower(e); e != "" && strings.HasSuffix(lower, e) {
			return true
		}
	}
	return false
}
