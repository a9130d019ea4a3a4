package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/franz/music-librarian/internal/catalog"
	"github.com/franz/music-librarian/internal/hashing"
	"github.com/franz/music-librarian/internal/meta"
	"github.com/franz/music-librarian/internal/util"
	"github.com/schollz/progressbar/v3"
)

// Indexer walks a music library and keeps the catalog in sync with it
type Indexer struct {
	catalog     *catalog.Catalog
	concurrency int
	rescan      bool
}

// Config holds indexer configuration
type Config struct {
	Catalog     *catalog.Catalog
	Concurrency int
	// Rescan forces tag and property extraction even for files whose
	// size and mtime are unchanged
	Rescan bool
}

// New creates a new Indexer
func New(cfg *Config) *Indexer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	return &Indexer{
		catalog:     cfg.Catalog,
		concurrency: cfg.Concurrency,
		rescan:      cfg.Rescan,
	}
}

// Result represents an indexing run
type Result struct {
	Scanned        int
	New            int
	Updated        int
	Unchanged      int
	IOErrors       int
	MetadataErrors int
	Errors         []FileError
}

// FileError records one file that could not be indexed
type FileError struct {
	Path string
	Err  error
}

// writeOp is one catalog mutation queued for the writer goroutine
type writeOp struct {
	file  *catalog.File // nil when only last_verified needs touching
	touch int64
	path  string
}

// Scan walks root and indexes every audio file under it. Files already
// cataloged with unchanged size and mtime are only touched; everything
// else goes through full extraction. Per-file failures are collected,
// never fatal.
func (idx *Indexer) Scan(ctx context.Context, root string) (*Result, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot resolve %s: %v", util.ErrIO, root, err)
	}
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("%w: cannot access %s: %v", util.ErrIO, root, err)
	}

	util.InfoLog("Starting index of: %s", root)

	result := &Result{
		Errors: make([]FileError, 0),
	}

	var errMu sync.Mutex
	addError := func(path string, err error) {
		errMu.Lock()
		defer errMu.Unlock()
		result.Errors = append(result.Errors, FileError{Path: path, Err: err})
	}

	// Channel for discovered file paths
	filePaths := make(chan string, 100)

	// Channel for catalog mutations, drained by a single writer
	ops := make(chan writeOp, 100)

	// Counters for progress reporting (using atomic for thread-safety)
	var filesFound atomic.Int64
	var filesProcessed atomic.Int64
	var filesNew atomic.Int64
	var filesUpdated atomic.Int64
	var filesUnchanged atomic.Int64

	// WaitGroup for workers
	var wg sync.WaitGroup

	// Start progress reporter with visual progress bar
	progressCtx, cancelProgress := context.WithCancel(ctx)
	defer cancelProgress()

	// Check if stdout is a terminal (disable progress bar if piped/redirected)
	isTTY := util.IsTerminal(os.Stdout.Fd())
	var bar *progressbar.ProgressBar

	if isTTY && !util.IsQuiet() {
		// Create indeterminate progress bar (we don't know total yet)
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Indexing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	start := time.Now()
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-progressCtx.Done():
				return
			case <-ticker.C:
				found := filesFound.Load()
				processed := filesProcessed.Load()
				fresh := filesNew.Load()
				updated := filesUpdated.Load()
				unchanged := filesUnchanged.Load()

				if bar != nil && found > 0 {
					rate := float64(processed) / time.Since(start).Seconds()
					bar.Describe(fmt.Sprintf("Indexing | %d found | %d new | %d updated | %d cached | %.1f/s",
						found, fresh, updated, unchanged, rate))
					bar.Set64(processed)
				} else if found > 0 {
					// Fallback to text output if not a TTY
					util.InfoLog("Progress: found %d audio files, processed %d (new: %d, updated: %d, cached: %d)",
						found, processed, fresh, updated, unchanged)
				}
			}
		}
	}()

	// Start the catalog writer. It owns every mutation, so workers never
	// contend for the database, and it drains until the channel closes
	// even if the context is cancelled
	var writerWg sync.WaitGroup
	writerWg.Add(1)
	go func() {
		defer writerWg.Done()
		for op := range ops {
			if op.file == nil {
				if err := idx.catalog.TouchVerified(op.touch); err != nil {
					addError(op.path, err)
					continue
				}
				filesUnchanged.Add(1)
				continue
			}

			_, outcome, err := idx.catalog.UpsertFile(op.file)
			if err != nil {
				util.ErrorLog("Failed to store %s: %v", op.file.Path, err)
				addError(op.file.Path, err)
				continue
			}

			switch outcome {
			case catalog.UpsertInserted:
				filesNew.Add(1)
			case catalog.UpsertUpdated:
				filesUpdated.Add(1)
			default:
				filesUnchanged.Add(1)
			}
		}
	}()

	// Start worker pool
	for i := 0; i < idx.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range filePaths {
				// Check for cancellation
				select {
				case <-ctx.Done():
					return
				default:
				}

				if err := idx.processOne(path, ops); err != nil {
					util.ErrorLog("Failed to index %s: %v", path, err)
					addError(path, err)
				}
				filesProcessed.Add(1)
			}
		}()
	}

	// Walk directory tree
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		// Check for cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			util.WarnLog("Error accessing path %s: %v", path, err)
			addError(path, fmt.Errorf("%w: access error: %v", util.ErrIO, err))
			return nil // Continue walking
		}

		// Skip directories
		if d.IsDir() {
			return nil
		}

		if meta.IsAudioFile(path) {
			filesFound.Add(1)
			select {
			case filePaths <- path:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		return nil
	})

	// Close channel and wait for workers
	close(filePaths)
	wg.Wait()

	// Close the mutation channel and wait for the writer
	close(ops)
	writerWg.Wait()

	cancelProgress()

	// Finish progress bar
	if bar != nil {
		bar.Finish()
	}

	// Update result with final counts
	result.Scanned = int(filesProcessed.Load())
	result.New = int(filesNew.Load())
	result.Updated = int(filesUpdated.Load())
	result.Unchanged = int(filesUnchanged.Load())

	for _, fe := range result.Errors {
		switch {
		case errors.Is(fe.Err, util.ErrIO):
			result.IOErrors++
		case errors.Is(fe.Err, util.ErrMetadata):
			result.MetadataErrors++
		}
	}

	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) {
			return result, fmt.Errorf("%w: indexing interrupted", util.ErrCancelled)
		}
		return result, fmt.Errorf("walk error: %w", walkErr)
	}

	util.SuccessLog("Index complete: %d scanned, %d new, %d updated, %d unchanged, %d errors",
		result.Scanned, result.New, result.Updated, result.Unchanged, len(result.Errors))

	return result, nil
}

// processOne stats one file, short-circuits unchanged rows, and queues
// the catalog mutation for the writer
func (idx *Indexer) processOne(path string, ops chan<- writeOp) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: cannot stat %s: %v", util.ErrIO, path, err)
	}

	if !idx.rescan {
		existing, err := idx.catalog.GetFileByPath(path)
		if err != nil {
			return err
		}
		if existing != nil && existing.Active &&
			existing.SizeBytes == info.Size() && existing.MtimeUnix == info.ModTime().Unix() {
			util.DebugLog("Unchanged: %s", path)
			ops <- writeOp{touch: existing.ID, path: path}
			return nil
		}
	}

	file, err := idx.extractOne(path, info)
	if err != nil {
		return err
	}

	ops <- writeOp{file: file}
	return nil
}

// extractOne runs the full extraction pipeline for one file: embedded
// tags with filename fallback, audio properties, and both hashes
func (idx *Indexer) extractOne(path string, info os.FileInfo) (*catalog.File, error) {
	tags, err := meta.ExtractTags(path)
	if err != nil {
		return nil, err
	}
	meta.EnrichTags(tags, path)

	props, err := meta.Probe(path)
	if err != nil {
		return nil, err
	}

	contentHash, err := hashing.ContentHash(path)
	if err != nil {
		return nil, err
	}

	return &catalog.File{
		Path:         path,
		Filename:     filepath.Base(path),
		Artist:       tags.Artist,
		Title:        tags.Title,
		Album:        tags.Album,
		Year:         tags.Year,
		DurationSec:  props.DurationSec,
		Format:       props.Format,
		BitrateKbps:  props.BitrateKbps,
		Vbr:          props.Vbr,
		SampleRate:   props.SampleRate,
		SizeBytes:    info.Size(),
		MtimeUnix:    info.ModTime().Unix(),
		MetadataHash: hashing.MetadataHash(tags.Artist, tags.Title),
		ContentHash:  contentHash,
	}, nil
}

// IndexOne indexes a single file synchronously, outside the worker
// pool. The watcher uses it for debounced re-indexing.
func (idx *Indexer) IndexOne(path string) (catalog.UpsertOutcome, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot resolve %s: %v", util.ErrIO, path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot stat %s: %v", util.ErrIO, path, err)
	}

	if !idx.rescan {
		existing, err := idx.catalog.GetFileByPath(path)
		if err != nil {
			return 0, err
		}
		if existing != nil && existing.Active &&
			existing.SizeBytes == info.Size() && existing.MtimeUnix == info.ModTime().Unix() {
			if err := idx.catalog.TouchVerified(existing.ID); err != nil {
				return 0, err
			}
			return catalog.UpsertUnchanged, nil
		}
	}

	file, err := idx.extractOne(path, info)
	if err != nil {
		return 0, err
	}

	_, outcome, err := idx.catalog.UpsertFile(file)
	return outcome, err
}
