package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/franz/music-librarian/internal/catalog"
	"github.com/franz/music-librarian/internal/index"
	"github.com/franz/music-librarian/internal/meta"
	"github.com/franz/music-librarian/internal/util"
)

// DefaultDebounce is how long a file must stay quiet after its last
// write before it is reindexed.
const DefaultDebounce = 500 * time.Millisecond

// Config holds watcher configuration
type Config struct {
	Catalog *catalog.Catalog
	// Debounce is the quiet period between the last write to a file
	// and its reindexing. Defaults to DefaultDebounce.
	Debounce time.Duration
}

// Watcher keeps the catalog in sync with a library that changes while
// mlib runs. Created and modified audio files are reindexed once they
// stop changing, removed files are marked inactive, and directories
// join the watch set as they appear.
type Watcher struct {
	catalog  *catalog.Catalog
	indexer  *index.Indexer
	debounce time.Duration

	fsw   *fsnotify.Watcher
	ready chan struct{}

	mu      sync.Mutex
	pending map[string]*time.Timer

	reindexed atomic.Int64
	removed   atomic.Int64
}

// New creates a Watcher
func New(cfg *Config) (*Watcher, error) {
	if cfg == nil || cfg.Catalog == nil {
		return nil, fmt.Errorf("%w: a catalog is required", util.ErrInvalidConfig)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		catalog:  cfg.Catalog,
		indexer:  index.New(&index.Config{Catalog: cfg.Catalog, Concurrency: 1}),
		debounce: debounce,
		ready:    make(chan struct{}),
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Ready is closed once the initial watch set covers the whole tree.
// Changes made before that point may be missed.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Stats reports how many files have been reindexed and marked inactive
func (w *Watcher) Stats() (reindexed, removed int64) {
	return w.reindexed.Load(), w.removed.Load()
}

// Run watches root until ctx is cancelled. Renaming a whole directory
// leaves its old rows active; a verify pass reconciles them.
func (w *Watcher) Run(ctx context.Context, root string) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("%w: cannot resolve %s: %v", util.ErrIO, root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: cannot access %s: %v", util.ErrIO, root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", util.ErrValidation, root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: cannot start filesystem watcher: %v", util.ErrIO, err)
	}
	w.fsw = fsw
	defer fsw.Close()

	dirs, err := w.addTree(root, false)
	if err != nil {
		return err
	}
	close(w.ready)
	util.InfoLog("Watching %s (%d directories)", root, dirs)

	for {
		select {
		case <-ctx.Done():
			w.drainPending()
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			util.WarnLog("Watcher error: %v", err)
		}
	}
}

// ignored filters dotfiles and the partial files copy tools leave behind
func ignored(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, ".tmp") ||
		strings.HasSuffix(name, ".part")
}

// addTree walks dir and watches every non-hidden directory under it.
// With scheduleFiles set, audio files found along the way are queued
// for indexing; a directory that appears and fills up before its watch
// lands would otherwise slip through.
func (w *Watcher) addTree(dir string, scheduleFiles bool) (int, error) {
	dirs := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			util.WarnLog("Cannot walk %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != dir && ignored(d.Name()) {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				return fmt.Errorf("%w: cannot watch %s: %v", util.ErrIO, path, err)
			}
			dirs++
			return nil
		}
		if scheduleFiles && !ignored(d.Name()) && meta.IsAudioFile(path) {
			w.scheduleIndex(path)
		}
		return nil
	})
	return dirs, err
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ignored(filepath.Base(ev.Name)) {
		return
	}

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		if meta.IsAudioFile(ev.Name) {
			w.cancelPending(ev.Name)
			w.markMissing(ev.Name)
		}

	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if _, err := w.addTree(ev.Name, true); err != nil {
				util.WarnLog("Cannot watch new directory %s: %v", ev.Name, err)
			}
			return
		}
		if meta.IsAudioFile(ev.Name) {
			w.scheduleIndex(ev.Name)
		}

	case ev.Has(fsnotify.Write):
		if meta.IsAudioFile(ev.Name) {
			w.scheduleIndex(ev.Name)
		}
	}
}

// scheduleIndex arms, or re-arms, the debounce timer for path. A burst
// of writes collapses into one reindex after the quiet period.
func (w *Watcher) scheduleIndex(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.indexNow(path)
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) drainPending() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) indexNow(path string) {
	if _, err := os.Stat(path); err != nil {
		// Gone again before the quiet period ended; the remove event
		// handles the catalog side
		return
	}

	outcome, err := w.indexer.IndexOne(path)
	if err != nil {
		util.WarnLog("Cannot index %s: %v", path, err)
		return
	}
	w.reindexed.Add(1)

	switch outcome {
	case catalog.UpsertInserted:
		util.InfoLog("Indexed new file: %s", path)
	case catalog.UpsertUpdated:
		util.InfoLog("Reindexed changed file: %s", path)
	default:
		util.DebugLog("Unchanged: %s", path)
	}
}

// markMissing soft-deletes the catalog row for a file that vanished
func (w *Watcher) markMissing(path string) {
	f, err := w.catalog.GetFileByPath(path)
	if err != nil {
		util.WarnLog("Cannot look up %s: %v", path, err)
		return
	}
	if f == nil || !f.Active {
		return
	}
	if err := w.catalog.MarkInactive(f.ID); err != nil {
		util.WarnLog("Cannot mark %s inactive: %v", path, err)
		return
	}
	w.removed.Add(1)
	util.InfoLog("Marked removed file inactive: %s", path)
}
