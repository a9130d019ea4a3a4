package vet

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/franz/music-librarian/internal/catalog"
	"github.com/franz/music-librarian/internal/hashing"
	"github.com/franz/music-librarian/internal/match"
	"github.com/franz/music-librarian/internal/meta"
	"github.com/franz/music-librarian/internal/report"
	"github.com/franz/music-librarian/internal/util"
)

// Phase is where a vetting run currently is
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseMatching
	PhaseSummarizing
	PhaseDone
)

// String returns the phase as a lowercase word
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseMatching:
		return "matching"
	case PhaseSummarizing:
		return "summarizing"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Config holds vetting engine configuration
type Config struct {
	Catalog          *catalog.Catalog
	Threshold        float64 // Fuzzy duplicate threshold (0 = default)
	Concurrency      int
	ExportNew        bool
	ExportDuplicates bool
	ExportUncertain  bool
	ExportDir        string // Where export lists land (default "artifacts")
	Sink             report.Sink
}

// Engine classifies the files of an import folder against the library.
// It never writes library rows; the only thing it persists is the
// vetting session record.
type Engine struct {
	catalog     *catalog.Catalog
	matcher     *match.Matcher
	threshold   float64
	concurrency int

	exportNew        bool
	exportDuplicates bool
	exportUncertain  bool
	exportDir        string

	sink  report.Sink
	phase atomic.Int32
}

// New creates a vetting engine, validating the config
func New(cfg *Config) (*Engine, error) {
	if cfg == nil || cfg.Catalog == nil {
		return nil, fmt.Errorf("%w: vetting requires a catalog", util.ErrInvalidConfig)
	}

	matcher, err := match.New(&match.Config{
		Catalog:   cfg.Catalog,
		Threshold: cfg.Threshold,
	})
	if err != nil {
		return nil, err
	}

	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = match.DefaultThreshold
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	exportDir := cfg.ExportDir
	if exportDir == "" {
		exportDir = "artifacts"
	}

	sink := cfg.Sink
	if sink == nil {
		sink = report.NopSink{}
	}

	return &Engine{
		catalog:          cfg.Catalog,
		matcher:          matcher,
		threshold:        threshold,
		concurrency:      concurrency,
		exportNew:        cfg.ExportNew,
		exportDuplicates: cfg.ExportDuplicates,
		exportUncertain:  cfg.ExportUncertain,
		exportDir:        exportDir,
		sink:             sink,
	}, nil
}

// Phase returns the current phase. Safe to call from other goroutines
// while Vet runs.
func (e *Engine) Phase() Phase {
	return Phase(e.phase.Load())
}

func (e *Engine) setPhase(p Phase) {
	e.phase.Store(int32(p))
}

// FileVerdict pairs a scanned file with its classification
type FileVerdict struct {
	Path    string
	File    *catalog.File // Extracted but never persisted
	Verdict *match.Verdict
}

// FileError records a file that could not be classified
type FileError struct {
	Path string
	Err  error
}

// Result represents the outcome of one vetting run
type Result struct {
	Session        *catalog.Session
	New            []*FileVerdict
	Duplicates     []*FileVerdict
	Uncertain      []*FileVerdict
	Scanned        int
	IOErrors       int
	MetadataErrors int
	Errors         []FileError
	ExportPaths    []string
}

// Vet classifies every audio file under folder against the library.
// Per-file failures are recorded and never halt the run; only
// cancellation, an unreadable folder, or a summarizing failure do.
func (e *Engine) Vet(ctx context.Context, folder string) (*Result, error) {
	start := time.Now()

	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot resolve %s: %v", util.ErrIO, folder, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot access %s: %v", util.ErrIO, abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", util.ErrIO, abs)
	}

	e.setPhase(PhaseScanning)
	phaseStart := time.Now()

	files, err := e.scanFolder(ctx, abs)
	if err != nil {
		return nil, err
	}

	e.sink.PhaseComplete(PhaseScanning.String(), time.Since(phaseStart))
	util.InfoLog("Vetting %d files from %s (threshold %.2f)", len(files), abs, e.threshold)

	e.setPhase(PhaseMatching)
	phaseStart = time.Now()

	result := &Result{Scanned: len(files)}
	totalFiles := len(files)

	var processed atomic.Int64

	// Progress reporter
	progressCtx, cancelProgress := context.WithCancel(ctx)
	defer cancelProgress()

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-progressCtx.Done():
				return
			case <-ticker.C:
				p := processed.Load()
				if p > 0 {
					percentage := float64(p) / float64(totalFiles) * 100
					util.InfoLog("Vetting: %d/%d (%.1f%%)", p, totalFiles, percentage)
				}
			}
		}
	}()

	var mu sync.Mutex
	workers := pool.New().WithMaxGoroutines(e.concurrency)

	for _, path := range files {
		workers.Go(func() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			fv, err := e.classifyOne(path)
			processed.Add(1)

			if err != nil {
				util.WarnLog("Cannot classify %s: %v", path, err)
				mu.Lock()
				result.Errors = append(result.Errors, FileError{Path: path, Err: err})
				mu.Unlock()
				e.sink.FileProcessed(&report.Event{
					Level: report.LevelWarning,
					Event: report.EventError,
					Phase: PhaseMatching.String(),
					Path:  path,
					Error: err.Error(),
				})
				return
			}

			mu.Lock()
			switch fv.Verdict.Status {
			case match.StatusDuplicate:
				result.Duplicates = append(result.Duplicates, fv)
			case match.StatusUncertain:
				result.Uncertain = append(result.Uncertain, fv)
			default:
				result.New = append(result.New, fv)
			}
			mu.Unlock()

			ev := &report.Event{
				Level:      report.LevelInfo,
				Event:      report.EventMatch,
				Phase:      PhaseMatching.String(),
				Path:       path,
				Status:     fv.Verdict.Status.String(),
				MatchType:  fv.Verdict.MatchType,
				Confidence: fv.Verdict.Confidence,
			}
			if fv.Verdict.Match != nil {
				ev.MatchPath = fv.Verdict.Match.Path
			}
			e.sink.FileProcessed(ev)
		})
	}

	workers.Wait()
	cancelProgress()

	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: vetting interrupted", util.ErrCancelled)
	}

	// Workers race, exports should not
	sortVerdicts(result.New)
	sortVerdicts(result.Duplicates)
	sortVerdicts(result.Uncertain)

	for _, fe := range result.Errors {
		switch {
		case errors.Is(fe.Err, util.ErrIO):
			result.IOErrors++
		case errors.Is(fe.Err, util.ErrMetadata):
			result.MetadataErrors++
		}
	}

	e.sink.PhaseComplete(PhaseMatching.String(), time.Since(phaseStart))

	e.setPhase(PhaseSummarizing)
	phaseStart = time.Now()

	exportPaths, err := e.writeExports(result)
	if err != nil {
		return nil, err
	}
	result.ExportPaths = exportPaths

	session := &catalog.Session{
		SessionKey:     uuid.NewString(),
		ImportFolder:   abs,
		FileCount:      result.Scanned,
		NewCount:       len(result.New),
		DuplicateCount: len(result.Duplicates),
		UncertainCount: len(result.Uncertain),
		ErrorCount:     len(result.Errors),
		Threshold:      e.threshold,
		DurationMs:     time.Since(start).Milliseconds(),
	}
	if _, err := e.catalog.InsertSession(session); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrCatalog, err)
	}
	result.Session = session

	e.sink.PhaseComplete(PhaseSummarizing.String(), time.Since(phaseStart))
	e.setPhase(PhaseDone)

	util.SuccessLog("Vetting complete: %d new, %d duplicates, %d uncertain, %d errors",
		len(result.New), len(result.Duplicates), len(result.Uncertain), len(result.Errors))

	return result, nil
}

// scanFolder collects audio files under root, skipping hidden entries
func (e *Engine) scanFolder(ctx context.Context, root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			util.WarnLog("Cannot access %s: %v", path, err)
			return nil
		}

		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !meta.IsAudioFile(path) {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: vetting interrupted", util.ErrCancelled)
		}
		return nil, fmt.Errorf("%w: walk failed: %v", util.ErrIO, err)
	}

	return files, nil
}

// classifyOne extracts tags, properties, and hashes for a single file
// and classifies it against the library
func (e *Engine) classifyOne(path string) (*FileVerdict, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot stat %s: %v", util.ErrIO, path, err)
	}

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

	candidate := &catalog.File{
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
	}

	verdict, err := e.matcher.Classify(candidate)
	if err != nil {
		return nil, fmt.Errorf("%w: classify %s: %v", util.ErrCatalog, path, err)
	}

	return &FileVerdict{Path: path, File: candidate, Verdict: verdict}, nil
}

// writeExports writes the requested export lists. All exports of one
// run share a timestamp.
func (e *Engine) writeExports(result *Result) ([]string, error) {
	if !e.exportNew && !e.exportDuplicates && !e.exportUncertain {
		return nil, nil
	}

	if err := os.MkdirAll(e.exportDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create export dir %s: %v", util.ErrIO, e.exportDir, err)
	}

	ts := time.Now().Format("20060102-150405")
	var paths []string

	if e.exportNew {
		path := filepath.Join(e.exportDir, fmt.Sprintf("vet-%s-new.txt", ts))
		var b strings.Builder
		for _, fv := range result.New {
			b.WriteString(fv.Path)
			b.WriteByte('\n')
		}
		if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
			return nil, fmt.Errorf("%w: cannot write %s: %v", util.ErrIO, path, err)
		}
		paths = append(paths, path)
		util.InfoLog("Exported %d new files to %s", len(result.New), path)
	}

	if e.exportDuplicates {
		path := filepath.Join(e.exportDir, fmt.Sprintf("vet-%s-duplicates.tsv", ts))
		if err := writeVerdictTSV(path, result.Duplicates); err != nil {
			return nil, err
		}
		paths = append(paths, path)
		util.InfoLog("Exported %d duplicates to %s", len(result.Duplicates), path)
	}

	if e.exportUncertain {
		path := filepath.Join(e.exportDir, fmt.Sprintf("vet-%s-uncertain.tsv", ts))
		if err := writeVerdictTSV(path, result.Uncertain); err != nil {
			return nil, err
		}
		paths = append(paths, path)
		util.InfoLog("Exported %d uncertain files to %s", len(result.Uncertain), path)
	}

	return paths, nil
}

// writeVerdictTSV writes verdicts as tab-separated rows with a header
func writeVerdictTSV(path string, verdicts []*FileVerdict) error {
	var b strings.Builder
	b.WriteString("path\tmatch_type\tconfidence\tmatch_path\n")

	for _, fv := range verdicts {
		matchPath := ""
		if fv.Verdict.Match != nil {
			matchPath = fv.Verdict.Match.Path
		}
		fmt.Fprintf(&b, "%s\t%s\t%.3f\t%s\n", fv.Path, fv.Verdict.MatchType, fv.Verdict.Confidence, matchPath)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("%w: cannot write %s: %v", util.ErrIO, path, err)
	}
	return nil
}

// sortVerdicts orders a bucket by path
func sortVerdicts(verdicts []*FileVerdict) {
	sort.Slice(verdicts, func(i, j int) bool {
		return verdicts[i].Path < verdicts[j].Path
	})
}
