// Package watcher reports settled file changes under asset folders
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/poltergeist/atlaspack/pkg/interfaces"
	"github.com/poltergeist/atlaspack/pkg/logger"
	"github.com/poltergeist/atlaspack/pkg/texturepacker"
)

// ErrClosed is returned when watching through a closed watcher
var ErrClosed = errors.New("watcher is closed")

// root is one watched tree and the changes collected since its last callback
type root struct {
	path     string
	callback interfaces.FileChangeCallback
	settling time.Duration
	pending  map[string]struct{}
	timer    *time.Timer
}

// FSNotifyWatcher watches directory trees with fsnotify. Changes under a
// root are batched until no event arrived for the root's settling delay.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	logger     logger.Logger
	extensions map[string]bool
	exclusions *ExclusionMatcher
	roots      map[string]*root
	mu         sync.Mutex
	startOnce  sync.Once
	ctx        context.Context
	cancel     context.CancelFunc
	closed     bool
}

// NewFSNotifyWatcher creates a watcher reacting to image files
func NewFSNotifyWatcher(log logger.Logger) (*FSNotifyWatcher, error) {
	if log == nil {
		log = logger.CreateLoggerWithOutput("", "error", io.Discard)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &FSNotifyWatcher{
		watcher: w,
		logger:  log,
		roots:   make(map[string]*root),
		ctx:     ctx,
		cancel:  cancel,
	}
	f.SetExtensions(texturepacker.ImageExtensions())
	return f, nil
}

// SetExtensions sets the file extensions that trigger a change. Paths
// without an extension always do, since they may be removed directories.
func (f *FSNotifyWatcher) SetExtensions(exts []string) {
	m := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		m[strings.ToLower(ext)] = true
	}
	f.mu.Lock()
	f.extensions = m
	f.mu.Unlock()
}

// SetExclusions sets glob patterns for paths that are never reported.
// Directories already being watched stay watched, but their events are
// dropped.
func (f *FSNotifyWatcher) SetExclusions(patterns []string) error {
	matcher, err := NewExclusionMatcher(patterns)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.exclusions = matcher
	f.mu.Unlock()
	return nil
}

// Watch reports changes under dir to callback once settling has passed
// without further events
func (f *FSNotifyWatcher) Watch(dir string, settling time.Duration, callback interfaces.FileChangeCallback) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if _, exists := f.roots[abs]; exists {
		f.mu.Unlock()
		return fmt.Errorf("already watching %s", abs)
	}
	f.roots[abs] = &root{
		path:     abs,
		callback: callback,
		settling: settling,
		pending:  make(map[string]struct{}),
	}
	f.mu.Unlock()

	if err := f.addDirectory(abs); err != nil {
		f.mu.Lock()
		delete(f.roots, abs)
		f.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", abs, err)
	}

	f.startOnce.Do(func() { go f.processEvents() })

	f.logger.Info(fmt.Sprintf("Started watching %s with fsnotify", abs))
	return nil
}

// Remove stops watching a tree. Pending changes are dropped.
func (f *FSNotifyWatcher) Remove(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	f.mu.Lock()
	r, ok := f.roots[abs]
	if !ok {
		f.mu.Unlock()
		return fmt.Errorf("not watching %s", abs)
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	delete(f.roots, abs)
	f.mu.Unlock()

	for _, path := range f.watcher.WatchList() {
		if within(abs, path) && f.ownerOf(path) == nil {
			if err := f.watcher.Remove(path); err != nil {
				f.logger.Debug(fmt.Sprintf("Failed to stop watching %s", path), logger.WithField("error", err))
			}
		}
	}
	return nil
}

// List returns the watched roots
func (f *FSNotifyWatcher) List() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.roots))
	for path := range f.roots {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Close stops all watches and drops pending changes
func (f *FSNotifyWatcher) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	for _, r := range f.roots {
		if r.timer != nil {
			r.timer.Stop()
		}
	}
	f.roots = make(map[string]*root)
	f.mu.Unlock()

	f.cancel()
	return f.watcher.Close()
}

// addDirectory adds dir and its subdirectories to the watcher
func (f *FSNotifyWatcher) addDirectory(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			f.logger.Warn(fmt.Sprintf("Failed to read %s: %v", path, err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && f.isExcluded(path) {
			return filepath.SkipDir
		}
		if err := f.watcher.Add(path); err != nil {
			if path == dir {
				return err
			}
			f.logger.Warn(fmt.Sprintf("Failed to watch directory %s: %v", path, err))
			return nil
		}
		f.logger.Debug(fmt.Sprintf("Watching directory: %s", path))
		return nil
	})
}

func (f *FSNotifyWatcher) processEvents() {
	for {
		select {
		case <-f.ctx.Done():
			return

		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			f.handleEvent(event)

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Error(fmt.Sprintf("Watcher error: %v", err))
		}
	}
}

func (f *FSNotifyWatcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod || f.isExcluded(event.Name) {
		return
	}

	isDir := false
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			isDir = true
			if err := f.addDirectory(event.Name); err != nil {
				f.logger.Warn(fmt.Sprintf("Failed to watch new directory %s: %v", event.Name, err))
			}
		}
	}
	if !isDir && !f.matchesExtension(event.Name) {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.ownerLocked(event.Name)
	if r == nil {
		return
	}
	r.pending[event.Name] = struct{}{}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.settling, func() { f.flush(r) })
}

// flush hands the settled changes of r to its callback
func (f *FSNotifyWatcher) flush(r *root) {
	f.mu.Lock()
	if f.roots[r.path] != r || len(r.pending) == 0 {
		f.mu.Unlock()
		return
	}
	files := make([]string, 0, len(r.pending))
	for path := range r.pending {
		files = append(files, path)
	}
	r.pending = make(map[string]struct{})
	r.timer = nil
	f.mu.Unlock()

	sort.Strings(files)
	f.logger.Debug(fmt.Sprintf("%d file(s) changed under %s", len(files), r.path))

	defer func() {
		if rec := recover(); rec != nil {
			f.logger.Error("File change callback panic recovered", logger.WithField("panic", rec))
		}
	}()
	r.callback(files)
}

func (f *FSNotifyWatcher) ownerOf(path string) *root {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ownerLocked(path)
}

// ownerLocked returns the innermost root containing path
func (f *FSNotifyWatcher) ownerLocked(path string) *root {
	var best *root
	for p, r := range f.roots {
		if within(p, path) && (best == nil || len(p) > len(best.path)) {
			best = r
		}
	}
	return best
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// isExcluded reports hidden files, editor droppings and configured patterns
func (f *FSNotifyWatcher) isExcluded(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".tmp") {
		return true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exclusions == nil {
		return false
	}
	// patterns apply below the root, not to the root's own location
	if r := f.ownerLocked(path); r != nil {
		if rel, err := filepath.Rel(r.path, path); err == nil {
			path = rel
		}
	}
	return f.exclusions.IsExcluded(path)
}

func (f *FSNotifyWatcher) matchesExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.extensions[ext]
}
