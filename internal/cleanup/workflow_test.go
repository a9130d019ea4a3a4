package cleanup

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/music-librarian/internal/catalog"
	"github.com/franz/music-librarian/internal/match"
	"github.com/franz/music-librarian/internal/report"
	"github.com/franz/music-librarian/internal/util"
)

const (
	keepContent = "flac keeper payload with plenty of unique bytes"
	d1Content   = "first duplicate payload"
	d2Content   = "second duplicate payload, slightly longer"
)

// seedTrio plants one three-way duplicate group: a flac keeper and two
// mp3 delete-candidates, deleted in path order d1 then d2
func seedTrio(t *testing.T, db *catalog.Catalog, lib string) (keep, d1, d2 *catalog.File) {
	t.Helper()
	keep = seedTrack(t, db, track{path: filepath.Join(lib, "keep.flac"), artist: "Artist", title: "Song", format: "flac", content: keepContent})
	d1 = seedTrack(t, db, track{path: filepath.Join(lib, "d1.mp3"), artist: "Artist", title: "Song", bitrate: 320, content: d1Content})
	d2 = seedTrack(t, db, track{path: filepath.Join(lib, "d2.mp3"), artist: "Artist", title: "Song", bitrate: 128, content: d2Content})
	return keep, d1, d2
}

func sha1hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func fileActive(t *testing.T, db *catalog.Catalog, path string) bool {
	t.Helper()
	f, err := db.GetFileByPath(path)
	if err != nil {
		t.Fatalf("GetFileByPath %s: %v", path, err)
	}
	if f == nil {
		t.Fatalf("no catalog row for %s", path)
	}
	return f.Active
}

func actionCounts(rep *Report) map[string]int {
	counts := make(map[string]int)
	for _, a := range rep.Actions {
		counts[a.Action]++
	}
	return counts
}

func TestNewDefaultsAndValidation(t *testing.T) {
	db := openTestCatalog(t, t.TempDir())

	bad := []*Config{
		nil,
		{},
		{Catalog: db}, // deleting without a backup destination
		{Catalog: db, Mode: "paranoid", DryRun: true},
		{Catalog: db, DryRun: true, FuzzyThreshold: 1.5},
	}
	for i, cfg := range bad {
		if _, err := New(cfg); !errors.Is(err, util.ErrInvalidConfig) {
			t.Errorf("config %d: err = %v, want ErrInvalidConfig", i, err)
		}
	}

	w, err := New(&Config{Catalog: db, DryRun: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if w.mode != ModeFast {
		t.Errorf("default mode = %q", w.mode)
	}
	if w.fuzzyThreshold != DefaultFuzzyThreshold {
		t.Errorf("default fuzzy threshold = %.2f", w.fuzzyThreshold)
	}
	if w.artifactsDir != "artifacts" {
		t.Errorf("default artifacts dir = %q", w.artifactsDir)
	}
	if w.Phase() != PhaseIdle {
		t.Errorf("initial phase = %s", w.Phase())
	}

	if _, err := New(&Config{Catalog: db, BackupDir: t.TempDir()}); err != nil {
		t.Errorf("backup config rejected: %v", err)
	}
}

func TestRunEndToEnd(t *testing.T) {
	tmp := t.TempDir()
	db := openTestCatalog(t, tmp)
	lib := filepath.Join(tmp, "library")
	backups := filepath.Join(tmp, "backups")
	artifacts := filepath.Join(tmp, "artifacts")

	keep, d1, d2 := seedTrio(t, db, lib)
	solo := seedTrack(t, db, track{path: filepath.Join(lib, "solo.mp3"), artist: "Solo", title: "Alone"})

	confirmCalls := 0
	w, err := New(&Config{
		Catalog:      db,
		BackupDir:    backups,
		ArtifactsDir: artifacts,
		EventLogPath: filepath.Join(artifacts, "logs", "events-test.jsonl"),
		Confirm: func(r *Review) bool {
			confirmCalls++
			if r.DeletionCount() != 2 {
				t.Errorf("confirm hook saw %d deletions, want 2", r.DeletionCount())
			}
			return true
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rep, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if w.Phase() != PhaseDone {
		t.Errorf("phase = %s, want done", w.Phase())
	}
	if confirmCalls != 1 {
		t.Errorf("confirm hook called %d times", confirmCalls)
	}

	if rep.Mode != ModeFast || rep.DryRun {
		t.Errorf("report header = %q dry=%t", rep.Mode, rep.DryRun)
	}
	if rep.GroupsFound != 1 || rep.GroupsExcluded != 0 {
		t.Errorf("groups = %d/%d excluded", rep.GroupsFound, rep.GroupsExcluded)
	}
	if rep.FilesReviewed != 3 || rep.FilesBackedUp != 2 || rep.FilesDeleted != 2 || rep.DeleteFailures != 0 {
		t.Errorf("counters = reviewed %d, backed up %d, deleted %d, failed %d",
			rep.FilesReviewed, rep.FilesBackedUp, rep.FilesDeleted, rep.DeleteFailures)
	}
	if want := d1.SizeBytes + d2.SizeBytes; rep.BytesRecovered != want {
		t.Errorf("BytesRecovered = %d, want %d", rep.BytesRecovered, want)
	}

	// The keeper and the unrelated file survive; the duplicates are gone
	for _, path := range []string{keep.Path, solo.Path} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s should still exist: %v", path, err)
		}
	}
	for _, path := range []string{d1.Path, d2.Path} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s should be deleted, stat err = %v", path, err)
		}
	}

	// Soft delete: rows survive with is_active flipped
	if fileActive(t, db, d1.Path) || fileActive(t, db, d2.Path) {
		t.Error("deleted files still active in the catalog")
	}
	if !fileActive(t, db, keep.Path) || !fileActive(t, db, solo.Path) {
		t.Error("surviving files marked inactive")
	}

	if !strings.HasPrefix(filepath.Base(rep.BatchDir), "cleanup-") {
		t.Errorf("batch dir = %q", rep.BatchDir)
	}

	data, err := os.ReadFile(rep.ManifestPath)
	if err != nil {
		t.Fatalf("manifest not readable: %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("manifest not valid JSON: %v", err)
	}
	if m.BatchID != filepath.Base(rep.BatchDir) {
		t.Errorf("manifest batch id = %q, dir = %q", m.BatchID, rep.BatchDir)
	}
	if m.Mode != ModeFast || m.CreatedAt.IsZero() {
		t.Errorf("manifest header = %q created %v", m.Mode, m.CreatedAt)
	}
	if len(m.Entries) != 2 {
		t.Fatalf("manifest has %d entries, want 2", len(m.Entries))
	}

	wantContent := map[string]string{d1.Path: d1Content, d2.Path: d2Content}
	wantID := map[string]int64{d1.Path: d1.ID, d2.Path: d2.ID}
	for _, e := range m.Entries {
		content, ok := wantContent[e.OriginalPath]
		if !ok {
			t.Errorf("unexpected manifest entry for %s", e.OriginalPath)
			continue
		}
		if e.SizeBytes != int64(len(content)) {
			t.Errorf("%s: manifest size %d, want %d", e.OriginalPath, e.SizeBytes, len(content))
		}
		if e.SHA1 != sha1hex(content) {
			t.Errorf("%s: manifest sha1 mismatch", e.OriginalPath)
		}
		wantBackup := filepath.Join(rep.BatchDir, "files",
			fmt.Sprintf("%d_%s", wantID[e.OriginalPath], filepath.Base(e.OriginalPath)))
		if e.BackupPath != wantBackup {
			t.Errorf("backup path = %q, want %q", e.BackupPath, wantBackup)
		}
		copied, err := os.ReadFile(e.BackupPath)
		if err != nil {
			t.Errorf("backup copy missing: %v", err)
		} else if string(copied) != content {
			t.Errorf("%s: backup bytes differ from original", e.OriginalPath)
		}
	}

	if !strings.HasPrefix(rep.SummaryPath, artifacts) {
		t.Errorf("summary path = %q, want under %s", rep.SummaryPath, artifacts)
	}
	body, err := os.ReadFile(rep.SummaryPath)
	if err != nil {
		t.Fatalf("summary not readable: %v", err)
	}
	for _, want := range []string{"Cleanup Report", "Artist - Song", "| Files Deleted | 2 |", "test.db", "events-test.jsonl"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("summary missing %q", want)
		}
	}

	counts := actionCounts(rep)
	if counts["keep"] != 1 || counts["delete"] != 2 {
		t.Errorf("actions = %v", counts)
	}

	// The test backup destination shares the library's filesystem
	if !strings.Contains(strings.Join(rep.Warnings, "\n"), "shares a filesystem") {
		t.Errorf("warnings = %v", rep.Warnings)
	}
}

func TestRunDryRun(t *testing.T) {
	tmp := t.TempDir()
	db := openTestCatalog(t, tmp)
	lib := filepath.Join(tmp, "library")
	artifacts := filepath.Join(tmp, "artifacts")

	keep, d1, d2 := seedTrio(t, db, lib)

	confirmCalled := false
	w, err := New(&Config{
		Catalog:      db,
		DryRun:       true,
		ArtifactsDir: artifacts,
		Confirm:      func(*Review) bool { confirmCalled = true; return false },
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rep, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if w.Phase() != PhaseDone {
		t.Errorf("phase = %s", w.Phase())
	}
	if confirmCalled {
		t.Error("confirm hook consulted during a dry run")
	}

	if !rep.DryRun || rep.FilesDeleted != 0 || rep.FilesBackedUp != 0 {
		t.Errorf("dry run touched files: %+v", rep)
	}
	if want := d1.SizeBytes + d2.SizeBytes; rep.BytesRecovered != want {
		t.Errorf("prospective BytesRecovered = %d, want %d", rep.BytesRecovered, want)
	}
	if rep.BatchDir != "" || rep.ManifestPath != "" {
		t.Errorf("dry run produced backup artifacts: %q %q", rep.BatchDir, rep.ManifestPath)
	}

	for _, path := range []string{keep.Path, d1.Path, d2.Path} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s vanished during dry run: %v", path, err)
		}
		if !fileActive(t, db, path) {
			t.Errorf("%s deactivated during dry run", path)
		}
	}

	counts := actionCounts(rep)
	if counts["keep"] != 1 || counts["would_delete"] != 2 {
		t.Errorf("actions = %v", counts)
	}

	body, err := os.ReadFile(rep.SummaryPath)
	if err != nil {
		t.Fatalf("summary not readable: %v", err)
	}
	if !strings.Contains(string(body), "Dry run") {
		t.Error("summary does not mention the dry run")
	}
}

func TestRunNothingToDelete(t *testing.T) {
	tmp := t.TempDir()
	db := openTestCatalog(t, tmp)
	lib := filepath.Join(tmp, "library")
	backups := filepath.Join(tmp, "backups")

	seedTrack(t, db, track{path: filepath.Join(lib, "one.mp3"), artist: "A", title: "One"})
	seedTrack(t, db, track{path: filepath.Join(lib, "two.mp3"), artist: "B", title: "Two"})

	w, err := New(&Config{Catalog: db, BackupDir: backups, ArtifactsDir: filepath.Join(tmp, "artifacts")})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rep, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if w.Phase() != PhaseDone {
		t.Errorf("phase = %s", w.Phase())
	}
	if rep.GroupsFound != 0 || rep.FilesDeleted != 0 || len(rep.Actions) != 0 {
		t.Errorf("report = %+v", rep)
	}
	if _, err := os.Stat(rep.SummaryPath); err != nil {
		t.Errorf("summary missing: %v", err)
	}

	// The writable probe created the destination but no batch
	entries, err := os.ReadDir(backups)
	if err != nil {
		t.Fatalf("backup dir unreadable: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("empty run left %d entries in the backup dir", len(entries))
	}
}

func TestRunConfirmDecline(t *testing.T) {
	tmp := t.TempDir()
	db := openTestCatalog(t, tmp)
	lib := filepath.Join(tmp, "library")
	backups := filepath.Join(tmp, "backups")

	keep, d1, d2 := seedTrio(t, db, lib)

	w, err := New(&Config{
		Catalog:   db,
		BackupDir: backups,
		Confirm:   func(*Review) bool { return false },
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rep, err := w.Run(context.Background())
	if rep != nil {
		t.Errorf("declined run returned a report")
	}
	if !errors.Is(err, util.ErrCancelled) || !strings.Contains(err.Error(), "declined") {
		t.Fatalf("err = %v, want declined ErrCancelled", err)
	}
	if w.Phase() != PhaseCancelled {
		t.Errorf("phase = %s, want cancelled", w.Phase())
	}

	for _, path := range []string{keep.Path, d1.Path, d2.Path} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s touched by declined run: %v", path, err)
		}
		if !fileActive(t, db, path) {
			t.Errorf("%s deactivated by declined run", path)
		}
	}
}

func TestRunBackupFailureAbortsDeletion(t *testing.T) {
	tmp := t.TempDir()
	db := openTestCatalog(t, tmp)
	lib := filepath.Join(tmp, "library")
	backups := filepath.Join(tmp, "backups")

	keep, d1, d2 := seedTrio(t, db, lib)

	w, err := New(&Config{Catalog: db, BackupDir: backups, ArtifactsDir: filepath.Join(tmp, "artifacts")})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	calls := 0
	w.copyFile = func(ctx context.Context, src, dst string) (int64, string, error) {
		calls++
		if calls == 2 {
			return 0, "", fmt.Errorf("storage vanished")
		}
		return w.copyOne(ctx, src, dst)
	}

	rep, err := w.Run(context.Background())
	if rep != nil {
		t.Error("aborted run returned a report")
	}
	if !errors.Is(err, util.ErrBackup) {
		t.Fatalf("err = %v, want ErrBackup", err)
	}
	if w.Phase() != PhaseBackingUp {
		t.Errorf("phase = %s, want backing_up", w.Phase())
	}

	// One copy failing means zero deletions
	for _, path := range []string{keep.Path, d1.Path, d2.Path} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s deleted despite aborted backup: %v", path, err)
		}
		if !fileActive(t, db, path) {
			t.Errorf("%s deactivated despite aborted backup", path)
		}
	}

	// No manifest means the batch never committed
	matches, err := filepath.Glob(filepath.Join(backups, "*", "manifest.json"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("aborted batch committed a manifest: %v", matches)
	}
}

func TestRunDeleteFailureSkipsFile(t *testing.T) {
	tmp := t.TempDir()
	db := openTestCatalog(t, tmp)
	lib := filepath.Join(tmp, "library")
	backups := filepath.Join(tmp, "backups")

	keep, d1, d2 := seedTrio(t, db, lib)

	w, err := New(&Config{Catalog: db, BackupDir: backups, ArtifactsDir: filepath.Join(tmp, "artifacts")})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// After its backup lands, swap the first candidate for a non-empty
	// directory so the delete pass cannot remove it
	w.copyFile = func(ctx context.Context, src, dst string) (int64, string, error) {
		n, sum, err := w.copyOne(ctx, src, dst)
		if err == nil && src == d1.Path {
			os.Remove(src)
			os.MkdirAll(filepath.Join(src, "pin"), 0755)
		}
		return n, sum, err
	}

	rep, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if w.Phase() != PhaseDone {
		t.Errorf("phase = %s", w.Phase())
	}

	if rep.FilesBackedUp != 2 || rep.FilesDeleted != 1 || rep.DeleteFailures != 1 {
		t.Errorf("counters = backed up %d, deleted %d, failed %d",
			rep.FilesBackedUp, rep.FilesDeleted, rep.DeleteFailures)
	}
	if rep.BytesRecovered != d2.SizeBytes {
		t.Errorf("BytesRecovered = %d, want %d", rep.BytesRecovered, d2.SizeBytes)
	}
	if len(rep.Failures) != 1 || rep.Failures[0].Path != d1.Path || rep.Failures[0].Stage != "delete" {
		t.Errorf("failures = %+v", rep.Failures)
	}

	if _, err := os.Stat(keep.Path); err != nil {
		t.Errorf("keeper missing: %v", err)
	}
	if _, err := os.Stat(d2.Path); !os.IsNotExist(err) {
		t.Errorf("%s should be deleted", d2.Path)
	}

	// The failed candidate stays active; only real deletions flip the flag
	if !fileActive(t, db, d1.Path) {
		t.Error("failed deletion deactivated the row")
	}
	if fileActive(t, db, d2.Path) {
		t.Error("deleted file still active")
	}

	counts := actionCounts(rep)
	if counts["keep"] != 1 || counts["delete"] != 1 || counts["delete_failed"] != 1 {
		t.Errorf("actions = %v", counts)
	}

	body, err := os.ReadFile(rep.SummaryPath)
	if err != nil {
		t.Fatalf("summary not readable: %v", err)
	}
	if !strings.Contains(string(body), "Failures") {
		t.Error("summary omits the failure table")
	}
}

func TestRunCancelledBeforeDeleting(t *testing.T) {
	tmp := t.TempDir()
	db := openTestCatalog(t, tmp)
	lib := filepath.Join(tmp, "library")

	keep, d1, d2 := seedTrio(t, db, lib)

	w, err := New(&Config{Catalog: db, BackupDir: filepath.Join(tmp, "backups")})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := w.Run(ctx)
	if rep != nil {
		t.Error("cancelled run returned a report")
	}
	if !errors.Is(err, util.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if w.Phase() != PhaseCancelled {
		t.Errorf("phase = %s, want cancelled", w.Phase())
	}

	for _, path := range []string{keep.Path, d1.Path, d2.Path} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s touched by cancelled run: %v", path, err)
		}
	}
}

// cancelOnDeleteSink cancels the run's context as soon as the first
// deletion is reported
type cancelOnDeleteSink struct {
	report.NopSink
	cancel context.CancelFunc
}

func (s *cancelOnDeleteSink) FileProcessed(ev *report.Event) error {
	if ev.Event == report.EventDelete && ev.Status == "deleted" {
		s.cancel()
	}
	return nil
}

func TestRunCancelMidDeletion(t *testing.T) {
	tmp := t.TempDir()
	db := openTestCatalog(t, tmp)
	lib := filepath.Join(tmp, "library")

	keep, d1, d2 := seedTrio(t, db, lib)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := New(&Config{
		Catalog:      db,
		BackupDir:    filepath.Join(tmp, "backups"),
		ArtifactsDir: filepath.Join(tmp, "artifacts"),
		Sink:         &cancelOnDeleteSink{cancel: cancel},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Once deleting has begun, cancellation stops further deletions
	// but the run still reports what it did
	rep, err := w.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rep == nil {
		t.Fatal("no report from interrupted deletion")
	}
	if w.Phase() != PhaseDone {
		t.Errorf("phase = %s, want done", w.Phase())
	}

	if rep.FilesDeleted != 1 {
		t.Errorf("FilesDeleted = %d, want 1", rep.FilesDeleted)
	}
	if _, err := os.Stat(d1.Path); !os.IsNotExist(err) {
		t.Errorf("first candidate should be deleted")
	}
	if _, err := os.Stat(d2.Path); err != nil {
		t.Errorf("second candidate should survive: %v", err)
	}
	if _, err := os.Stat(keep.Path); err != nil {
		t.Errorf("keeper missing: %v", err)
	}
	if !fileActive(t, db, d2.Path) {
		t.Error("surviving candidate deactivated")
	}

	if !strings.Contains(strings.Join(rep.Warnings, "\n"), "interrupted") {
		t.Errorf("warnings = %v", rep.Warnings)
	}
	for _, a := range rep.Actions {
		if a.Path == d2.Path && a.Action != "skipped" {
			t.Errorf("surviving candidate action = %q", a.Action)
		}
	}
}

func TestRunThoroughContentCleanup(t *testing.T) {
	tmp := t.TempDir()
	db := openTestCatalog(t, tmp)
	lib := filepath.Join(tmp, "library")

	b1 := seedTrack(t, db, track{path: filepath.Join(lib, "b1.mp3"), artist: "Tagged", title: "Properly", content: "identical-bytes-either-way"})
	b2 := seedTrack(t, db, track{path: filepath.Join(lib, "b2.mp3"), artist: "Other", title: "Name", content: "identical-bytes-either-way"})

	w, err := New(&Config{
		Catalog:      db,
		Mode:         ModeThorough,
		BackupDir:    filepath.Join(tmp, "backups"),
		ArtifactsDir: filepath.Join(tmp, "artifacts"),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	rep, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rep.Mode != ModeThorough || rep.FilesDeleted != 1 {
		t.Errorf("mode = %q, deleted = %d", rep.Mode, rep.FilesDeleted)
	}

	// Equal scores and sizes: the tie-break keeps the lexically first path
	if _, err := os.Stat(b1.Path); err != nil {
		t.Errorf("keeper missing: %v", err)
	}
	if _, err := os.Stat(b2.Path); !os.IsNotExist(err) {
		t.Errorf("%s should be deleted", b2.Path)
	}

	for _, a := range rep.Actions {
		if a.Path == b2.Path {
			if a.Action != "delete" || a.MatchType != match.MatchExactContent {
				t.Errorf("action = %+v", a)
			}
		}
	}
}

func TestRunSinkEventFlow(t *testing.T) {
	tmp := t.TempDir()
	db := openTestCatalog(t, tmp)
	lib := filepath.Join(tmp, "library")

	seedTrio(t, db, lib)

	sink := &recordingSink{}
	w, err := New(&Config{
		Catalog:      db,
		BackupDir:    filepath.Join(tmp, "backups"),
		ArtifactsDir: filepath.Join(tmp, "artifacts"),
		Sink:         sink,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wantPhases := []string{"scanning", "reviewing", "validating", "backing_up", "deleting"}
	if len(sink.phases) != len(wantPhases) {
		t.Fatalf("phases = %v, want %v", sink.phases, wantPhases)
	}
	for i, phase := range wantPhases {
		if sink.phases[i] != phase {
			t.Fatalf("phases = %v, want %v", sink.phases, wantPhases)
		}
	}

	if n := sink.countEvents(report.EventGroup, ""); n != 1 {
		t.Errorf("group events = %d, want 1", n)
	}
	if n := sink.countEvents(report.EventBackup, "copied"); n != 2 {
		t.Errorf("backup events = %d, want 2", n)
	}
	if n := sink.countEvents(report.EventDelete, "deleted"); n != 2 {
		t.Errorf("delete events = %d, want 2", n)
	}

	if !sink.hasCheck(batchKey, CheckBackupWritable, true) {
		t.Error("missing backup_writable pass")
	}
	if !sink.hasCheck("Artist - Song", CheckGroupSize, true) {
		t.Error("missing group_size pass")
	}
	if !sink.hasCheck(batchKey, CheckBackupSameDevice, false) {
		t.Error("missing same-device warning check")
	}
}
