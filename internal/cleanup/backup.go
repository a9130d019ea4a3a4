package cleanup

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/franz/music-librarian/internal/report"
	"github.com/franz/music-librarian/internal/util"
)

// copyBufferSize balances local and network storage
const copyBufferSize = 128 * 1024

// Manifest records every backed-up file of one cleanup batch. It is
// committed to disk before the first deletion and never rewritten, so
// every deleted file can be restored from its entry.
type Manifest struct {
	BatchID   string          `json:"batch_id"`
	CreatedAt time.Time       `json:"created_at"`
	Mode      string          `json:"mode"`
	Entries   []ManifestEntry `json:"entries"`
}

// ManifestEntry maps one original file to its backup copy
type ManifestEntry struct {
	OriginalPath string `json:"original_path"`
	BackupPath   string `json:"backup_path"`
	SizeBytes    int64  `json:"size_bytes"`
	SHA1         string `json:"sha1"`
}

// backupBatch copies every delete-candidate into a fresh batch
// directory and commits the manifest. Any copy failure aborts the
// whole batch: with no manifest on disk, the deleting phase never
// starts and the library is untouched.
func (w *Workflow) backupBatch(ctx context.Context, review *Review) (*Manifest, string, string, error) {
	var candidates []*Member
	for _, g := range review.ActiveGroups() {
		candidates = append(candidates, g.Deletions()...)
	}
	if len(candidates) == 0 {
		return nil, "", "", nil
	}

	batchID := fmt.Sprintf("cleanup-%s-%s", time.Now().Format("20060102-150405"), uuid.NewString()[:8])
	batchDir := filepath.Join(w.backupDir, batchID)
	filesDir := filepath.Join(batchDir, "files")
	if err := os.MkdirAll(filesDir, 0755); err != nil {
		return nil, "", "", fmt.Errorf("%w: cannot create %s: %v", util.ErrBackup, filesDir, err)
	}

	util.InfoLog("Backing up %d files to %s", len(candidates), batchDir)

	var bar *progressbar.ProgressBar
	if util.IsTerminal(os.Stdout.Fd()) && !util.IsQuiet() {
		bar = progressbar.NewOptions(len(candidates),
			progressbar.OptionSetDescription("Backing up"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
	}

	manifest := &Manifest{
		BatchID:   batchID,
		CreatedAt: time.Now(),
		Mode:      w.mode,
	}

	for _, m := range candidates {
		// Between files, never mid-copy
		if err := ctx.Err(); err != nil {
			return nil, "", "", fmt.Errorf("%w: cleanup interrupted", util.ErrCancelled)
		}

		f := m.File
		backupPath := filepath.Join(filesDir, fmt.Sprintf("%d_%s", f.ID, f.Filename))
		written, sum, err := w.copyFile(ctx, f.Path, backupPath)
		if err != nil {
			return nil, "", "", fmt.Errorf("%w: copy %s: %v", util.ErrBackup, f.Path, err)
		}

		manifest.Entries = append(manifest.Entries, ManifestEntry{
			OriginalPath: f.Path,
			BackupPath:   backupPath,
			SizeBytes:    written,
			SHA1:         sum,
		})
		if bar != nil {
			bar.Add(1)
		}
		w.sink.FileProcessed(&report.Event{
			Level:  report.LevelInfo,
			Event:  report.EventBackup,
			Phase:  PhaseBackingUp.String(),
			Path:   f.Path,
			Status: "copied",
			Bytes:  written,
		})
	}

	manifestPath := filepath.Join(batchDir, "manifest.json")
	if err := writeManifest(manifestPath, manifest); err != nil {
		return nil, "", "", err
	}

	util.InfoLog("Backup manifest committed: %s", manifestPath)
	return manifest, batchDir, manifestPath, nil
}

// copyOne copies src to dst through a .part temporary, hashing the
// content on the way. The rename keeps partially-written backups from
// ever being mistaken for complete ones.
func (w *Workflow) copyOne(ctx context.Context, src, dst string) (int64, string, error) {
	srcFile, err := util.RetryableOpen(src, w.retryConfig)
	if err != nil {
		return 0, "", fmt.Errorf("failed to open source: %w", err)
	}
	defer srcFile.Close()

	tempPath := dst + ".part"
	dstFile, err := util.RetryableCreate(tempPath, w.retryConfig)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create temp file: %w", err)
	}

	h := sha1.New()
	written, err := copyWithContext(ctx, io.MultiWriter(dstFile, h), srcFile)
	dstFile.Close()

	if err != nil {
		os.Remove(tempPath)
		return 0, "", fmt.Errorf("failed to copy: %w", err)
	}

	if err := util.RetryableRename(tempPath, dst, w.retryConfig); err != nil {
		os.Remove(tempPath)
		return 0, "", fmt.Errorf("failed to rename: %w", err)
	}

	return written, hex.EncodeToString(h.Sum(nil)), nil
}

// copyWithContext copies data with context cancellation support
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, copyBufferSize)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[0:nr])
			if nw < 0 || nr < nw {
				nw = 0
				if ew == nil {
					ew = fmt.Errorf("invalid write result")
				}
			}
			written += int64(nw)
			if ew != nil {
				return written, ew
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if er != nil {
			if er != io.EOF {
				return written, er
			}
			break
		}
	}
	return written, nil
}

// writeManifest commits the manifest atomically: temp file, fsync,
// rename. Deletion must never start on a manifest that might not
// survive a crash.
func writeManifest(path string, m *Manifest) error {
	tempPath := path + ".part"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("%w: cannot create manifest: %v", util.ErrBackup, err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("%w: cannot encode manifest: %v", util.ErrBackup, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("%w: cannot sync manifest: %v", util.ErrBackup, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("%w: cannot close manifest: %v", util.ErrBackup, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("%w: cannot commit manifest: %v", util.ErrBackup, err)
	}
	return nil
}

// deleteOutcome is what actually happened during the deleting phase
type deleteOutcome struct {
	deleted   map[int64]bool
	failed    map[int64]string
	cancelled bool
}

// deleteBatch removes the delete-candidates one at a time. Per-file
// failures are skipped and recorded; they never stop the remaining
// deletions. Cancellation is honored between files only, and since the
// manifest is already committed, everything deleted so far stays
// restorable.
func (w *Workflow) deleteBatch(ctx context.Context, review *Review) *deleteOutcome {
	out := &deleteOutcome{
		deleted: make(map[int64]bool),
		failed:  make(map[int64]string),
	}

	for _, g := range review.ActiveGroups() {
		keeper := g.Keeper()
		for _, m := range g.Deletions() {
			if ctx.Err() != nil {
				out.cancelled = true
				return out
			}
			f := m.File
			if keeper != nil && f.ID == keeper.File.ID {
				continue
			}

			if err := os.Remove(f.Path); err != nil {
				out.failed[f.ID] = err.Error()
				util.WarnLog("Cannot delete %s: %v", f.Path, err)
				w.sink.FileProcessed(&report.Event{
					Level:  report.LevelWarning,
					Event:  report.EventDelete,
					Phase:  PhaseDeleting.String(),
					Path:   f.Path,
					Status: "failed",
					Error:  err.Error(),
				})
				continue
			}

			out.deleted[f.ID] = true
			if err := w.catalog.MarkInactive(f.ID); err != nil {
				util.WarnLog("Deleted %s but could not update the catalog: %v", f.Path, err)
			}
			w.sink.FileProcessed(&report.Event{
				Level:  report.LevelInfo,
				Event:  report.EventDelete,
				Phase:  PhaseDeleting.String(),
				Path:   f.Path,
				Status: "deleted",
				Bytes:  f.SizeBytes,
			})
		}
	}
	return out
}
