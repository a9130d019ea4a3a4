package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/franz/music-librarian/internal/catalog"
	"github.com/franz/music-librarian/internal/index"
	"github.com/franz/music-librarian/internal/testaudio"
	"github.com/franz/music-librarian/internal/util"
)

func openTestCatalog(t *testing.T, dir string) *catalog.Catalog {
	t.Helper()
	db, err := catalog.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("cannot open catalog: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// startWatcher runs w in the background, waits until the watch set is
// established, and stops it again when the test ends
func startWatcher(t *testing.T, db *catalog.Catalog, root string, debounce time.Duration) *Watcher {
	t.Helper()

	w, err := New(&Config{Catalog: db, Debounce: debounce})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, root) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})

	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("watcher exited during startup: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never became ready")
	}
	return w
}

func waitFor(t *testing.T, cond func() bool, desc string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestNewConfigValidation(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("nil config: err = %v", err)
	}
	if _, err := New(&Config{}); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("no catalog: err = %v", err)
	}

	db := openTestCatalog(t, t.TempDir())
	w, err := New(&Config{Catalog: db})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if w.debounce != DefaultDebounce {
		t.Errorf("default debounce = %v", w.debounce)
	}
}

func TestRunRejectsBadRoot(t *testing.T) {
	tmp := t.TempDir()
	db := openTestCatalog(t, tmp)
	w, err := New(&Config{Catalog: db})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := w.Run(context.Background(), filepath.Join(tmp, "missing")); !errors.Is(err, util.ErrIO) {
		t.Errorf("missing root: err = %v", err)
	}

	file := filepath.Join(tmp, "not-a-dir")
	testaudio.WriteFile(t, file, []byte("x"))
	if err := w.Run(context.Background(), file); !errors.Is(err, util.ErrValidation) {
		t.Errorf("file root: err = %v", err)
	}
}

func TestWatcherIndexesNewFile(t *testing.T) {
	tmp := t.TempDir()
	db := openTestCatalog(t, tmp)
	lib := filepath.Join(tmp, "library")
	if err := os.MkdirAll(lib, 0755); err != nil {
		t.Fatal(err)
	}

	w := startWatcher(t, db, lib, 100*time.Millisecond)

	path := filepath.Join(lib, "song.mp3")
	testaudio.WriteMP3(t, path, "Artist", "Fresh Arrival")

	waitFor(t, func() bool {
		f, err := db.GetFileByPath(path)
		return err == nil && f != nil && f.Active
	}, "new file to appear in the catalog")

	f, err := db.GetFileByPath(path)
	if err != nil {
		t.Fatalf("GetFileByPath: %v", err)
	}
	if f.Artist != "Artist" || f.Title != "Fresh Arrival" || f.Format != "mp3" {
		t.Errorf("indexed row = %q/%q %q", f.Artist, f.Title, f.Format)
	}

	reindexed, _ := w.Stats()
	if reindexed < 1 {
		t.Errorf("reindexed = %d", reindexed)
	}
}

func TestWatcherDebouncesWriteBursts(t *testing.T) {
	tmp := t.TempDir()
	db := openTestCatalog(t, tmp)
	lib := filepath.Join(tmp, "library")
	if err := os.MkdirAll(lib, 0755); err != nil {
		t.Fatal(err)
	}

	// Existing but unindexed file; only the rewrite burst below
	// generates events
	path := filepath.Join(lib, "song.mp3")
	testaudio.WriteMP3(t, path, "Artist", "Original")

	w := startWatcher(t, db, lib, 300*time.Millisecond)

	for i := 0; i < 3; i++ {
		testaudio.WriteMP3(t, path, "Artist", "Rewritten", 320, 320, 320, 320)
		time.Sleep(40 * time.Millisecond)
	}

	waitFor(t, func() bool {
		n, _ := w.Stats()
		return n >= 1
	}, "debounced reindex to fire")

	// The whole burst fits inside one quiet period
	time.Sleep(700 * time.Millisecond)
	if n, _ := w.Stats(); n != 1 {
		t.Errorf("reindexed = %d, want 1", n)
	}

	f, err := db.GetFileByPath(path)
	if err != nil || f == nil {
		t.Fatalf("row missing after burst: %v", err)
	}
	if f.Title != "Rewritten" {
		t.Errorf("title = %q, want the last write", f.Title)
	}
}

func TestWatcherReindexesChangedFile(t *testing.T) {
	tmp := t.TempDir()
	db := openTestCatalog(t, tmp)
	lib := filepath.Join(tmp, "library")
	if err := os.MkdirAll(lib, 0755); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(lib, "song.mp3")
	testaudio.WriteMP3(t, path, "Artist", "Original")
	idx := index.New(&index.Config{Catalog: db})
	if _, err := idx.IndexOne(path); err != nil {
		t.Fatalf("IndexOne: %v", err)
	}

	startWatcher(t, db, lib, 100*time.Millisecond)

	testaudio.WriteMP3(t, path, "Artist", "Remastered", 320, 320, 320, 320)

	waitFor(t, func() bool {
		f, err := db.GetFileByPath(path)
		return err == nil && f != nil && f.Title == "Remastered"
	}, "changed file to be reindexed")
}

func TestWatcherMarksRemovedInactive(t *testing.T) {
	tmp := t.TempDir()
	db := openTestCatalog(t, tmp)
	lib := filepath.Join(tmp, "library")
	if err := os.MkdirAll(lib, 0755); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(lib, "song.mp3")
	testaudio.WriteMP3(t, path, "Artist", "Doomed")
	idx := index.New(&index.Config{Catalog: db})
	if _, err := idx.IndexOne(path); err != nil {
		t.Fatalf("IndexOne: %v", err)
	}

	w := startWatcher(t, db, lib, 100*time.Millisecond)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		f, err := db.GetFileByPath(path)
		return err == nil && f != nil && !f.Active
	}, "removed file to go inactive")

	if _, removed := w.Stats(); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
}

func TestWatcherIgnoresHiddenAndTempFiles(t *testing.T) {
	tmp := t.TempDir()
	db := openTestCatalog(t, tmp)
	lib := filepath.Join(tmp, "library")
	hidden := filepath.Join(lib, ".git")
	if err := os.MkdirAll(hidden, 0755); err != nil {
		t.Fatal(err)
	}
	testaudio.WriteMP3(t, filepath.Join(hidden, "blob.mp3"), "Nobody", "Should See")

	w := startWatcher(t, db, lib, 80*time.Millisecond)

	testaudio.WriteMP3(t, filepath.Join(lib, ".hidden.mp3"), "Nobody", "Hidden")
	testaudio.WriteFile(t, filepath.Join(lib, "track.tmp"), []byte("partial"))
	testaudio.WriteFile(t, filepath.Join(lib, "copy.mp3.part"), []byte("partial"))

	cache := filepath.Join(lib, ".cache")
	if err := os.MkdirAll(cache, 0755); err != nil {
		t.Fatal(err)
	}
	testaudio.WriteMP3(t, filepath.Join(cache, "inner.mp3"), "Nobody", "Cached")

	time.Sleep(500 * time.Millisecond)

	n, err := db.CountFiles(false)
	if err != nil {
		t.Fatalf("CountFiles: %v", err)
	}
	if n != 0 {
		t.Errorf("%d rows indexed from ignored files", n)
	}
	if reindexed, _ := w.Stats(); reindexed != 0 {
		t.Errorf("reindexed = %d, want 0", reindexed)
	}
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	tmp := t.TempDir()
	db := openTestCatalog(t, tmp)
	lib := filepath.Join(tmp, "library")
	if err := os.MkdirAll(lib, 0755); err != nil {
		t.Fatal(err)
	}

	startWatcher(t, db, lib, 100*time.Millisecond)

	sub := filepath.Join(lib, "new-album")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(sub, "track.mp3")
	testaudio.WriteMP3(t, path, "Artist", "Buried Deep")

	waitFor(t, func() bool {
		f, err := db.GetFileByPath(path)
		return err == nil && f != nil && f.Active
	}, "file in a new directory to be indexed")
}
