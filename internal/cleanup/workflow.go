package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/franz/music-librarian/internal/catalog"
	"github.com/franz/music-librarian/internal/match"
	"github.com/franz/music-librarian/internal/meta"
	"github.com/franz/music-librarian/internal/report"
	"github.com/franz/music-librarian/internal/score"
	"github.com/franz/music-librarian/internal/util"
)

// Phase tracks where a cleanup run currently is. Destructive work only
// happens in PhaseDeleting, and only after PhaseBackingUp committed a
// manifest.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseReviewing
	PhaseValidating
	PhaseBackingUp
	PhaseDeleting
	PhaseReporting
	PhaseDone
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseReviewing:
		return "reviewing"
	case PhaseValidating:
		return "validating"
	case PhaseBackingUp:
		return "backing_up"
	case PhaseDeleting:
		return "deleting"
	case PhaseReporting:
		return "reporting"
	case PhaseDone:
		return "done"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Cleanup modes. Fast groups by metadata hash only; thorough adds
// content-hash and fuzzy-similarity grouping.
const (
	ModeFast     = "fast"
	ModeThorough = "thorough"
)

// DefaultFuzzyThreshold is the minimum title similarity for two files
// of the same artist to land in one fuzzy group
const DefaultFuzzyThreshold = 0.85

// Config configures a cleanup workflow
type Config struct {
	Catalog *catalog.Catalog

	// Mode selects the grouping tiers, ModeFast by default
	Mode string

	// BackupDir receives one batch directory per run. Required
	// unless DryRun is set.
	BackupDir string

	// DryRun stops after validation and reports what would happen
	DryRun bool

	// Weights for keeper scoring, score.DefaultWeights by default
	Weights *score.Weights

	// FuzzyThreshold for title grouping, DefaultFuzzyThreshold by default
	FuzzyThreshold float64

	// Similarity compares normalized titles, match.JaroWinkler by default
	Similarity func(a, b string) float64

	// Confirm is consulted once after validation, before any file is
	// touched. A nil hook means proceed; returning false cancels the
	// run.
	Confirm func(*Review) bool

	// Sink receives progress events, report.NopSink by default
	Sink report.Sink

	// ArtifactsDir is where the Markdown summary lands, "artifacts"
	// by default
	ArtifactsDir string

	// EventLogPath is recorded in the summary so a reader can find
	// the matching event log. Purely informational.
	EventLogPath string

	// RetryConfig for backup copies on flaky storage
	RetryConfig *util.RetryConfig
}

// Workflow runs the duplicate cleanup pipeline: scan groups, pick
// keepers, validate, back up, delete, report
type Workflow struct {
	catalog        *catalog.Catalog
	mode           string
	backupDir      string
	dryRun         bool
	weights        score.Weights
	fuzzyThreshold float64
	similarity     func(a, b string) float64
	confirm        func(*Review) bool
	sink           report.Sink
	artifactsDir   string
	eventLogPath   string
	retryConfig    *util.RetryConfig

	// copyFile is swappable so tests can fail a specific copy
	copyFile func(ctx context.Context, src, dst string) (int64, string, error)

	phase atomic.Int32
}

// New creates a cleanup workflow
func New(cfg *Config) (*Workflow, error) {
	if cfg == nil || cfg.Catalog == nil {
		return nil, fmt.Errorf("%w: a catalog is required", util.ErrInvalidConfig)
	}

	mode := cfg.Mode
	if mode == "" {
		mode = ModeFast
	}
	if mode != ModeFast && mode != ModeThorough {
		return nil, fmt.Errorf("%w: unknown mode %q", util.ErrInvalidConfig, cfg.Mode)
	}

	if cfg.BackupDir == "" && !cfg.DryRun {
		return nil, fmt.Errorf("%w: a backup directory is required unless running dry", util.ErrInvalidConfig)
	}

	threshold := cfg.FuzzyThreshold
	if threshold == 0 {
		threshold = DefaultFuzzyThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: fuzzy threshold %.2f outside [0, 1]", util.ErrInvalidConfig, cfg.FuzzyThreshold)
	}

	weights := score.DefaultWeights()
	if cfg.Weights != nil {
		weights = *cfg.Weights
	}

	similarity := cfg.Similarity
	if similarity == nil {
		similarity = match.JaroWinkler
	}

	sink := cfg.Sink
	if sink == nil {
		sink = report.NopSink{}
	}

	artifactsDir := cfg.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = "artifacts"
	}

	w := &Workflow{
		catalog:        cfg.Catalog,
		mode:           mode,
		backupDir:      cfg.BackupDir,
		dryRun:         cfg.DryRun,
		weights:        weights,
		fuzzyThreshold: threshold,
		similarity:     similarity,
		confirm:        cfg.Confirm,
		sink:           sink,
		artifactsDir:   artifactsDir,
		eventLogPath:   cfg.EventLogPath,
		retryConfig:    cfg.RetryConfig,
	}
	w.copyFile = w.copyOne
	return w, nil
}

// Phase returns the workflow's current phase
func (w *Workflow) Phase() Phase {
	return Phase(w.phase.Load())
}

func (w *Workflow) setPhase(p Phase) {
	w.phase.Store(int32(p))
}

// checkCancel is called at phase boundaries. Once deletion has
// started, cancellation is handled inside deleteBatch instead: the run
// stops deleting but still reports.
func (w *Workflow) checkCancel(ctx context.Context) error {
	if ctx.Err() != nil {
		w.setPhase(PhaseCancelled)
		return fmt.Errorf("%w: cleanup interrupted", util.ErrCancelled)
	}
	return nil
}

// FileAction records what the run decided, or did, about one file
type FileAction struct {
	Path       string
	Action     string // keep, delete, delete_failed, would_delete, skipped
	GroupKey   string
	MatchType  string
	Confidence float64
	Score      float64
	SizeBytes  int64
	Format     string
}

// Report is the outcome of one cleanup run
type Report struct {
	Mode     string
	DryRun   bool
	Duration time.Duration

	GroupsFound    int
	GroupsExcluded int

	FilesReviewed  int
	FilesBackedUp  int
	FilesDeleted   int
	DeleteFailures int

	// BytesRecovered is what deletion actually freed, or in a dry
	// run what it would free
	BytesRecovered int64

	BatchDir     string
	ManifestPath string
	SummaryPath  string

	Actions    []FileAction
	Warnings   []string
	Exclusions []ValidationFailure
	Failures   []report.FailureSummary
}

// Run executes the cleanup pipeline. The returned report is non-nil
// whenever the run reached the reporting phase, even if some
// deletions failed along the way.
func (w *Workflow) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	w.setPhase(PhaseScanning)
	phaseStart := time.Now()
	groups, err := w.scanGroups()
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		w.sink.FileProcessed(&report.Event{
			Level:     report.LevelInfo,
			Event:     report.EventGroup,
			Phase:     PhaseScanning.String(),
			GroupKey:  g.Key,
			MatchType: g.MatchType,
			Reason:    fmt.Sprintf("%d members", len(g.Members)),
		})
	}
	w.sink.PhaseComplete(PhaseScanning.String(), time.Since(phaseStart))
	util.InfoLog("Found %d duplicate groups (%s mode)", len(groups), w.mode)

	if err := w.checkCancel(ctx); err != nil {
		return nil, err
	}
	w.setPhase(PhaseReviewing)
	phaseStart = time.Now()
	review := w.reviewGroups(groups)
	w.sink.PhaseComplete(PhaseReviewing.String(), time.Since(phaseStart))

	if err := w.checkCancel(ctx); err != nil {
		return nil, err
	}
	w.setPhase(PhaseValidating)
	phaseStart = time.Now()
	validation := w.validate(review)
	w.sink.PhaseComplete(PhaseValidating.String(), time.Since(phaseStart))

	var manifest *Manifest
	var batchDir, manifestPath string
	var outcome *deleteOutcome

	switch {
	case w.dryRun:
		util.InfoLog("Dry run: no files will be backed up or deleted")
	case review.DeletionCount() == 0:
		util.InfoLog("Nothing to delete")
	default:
		if err := w.checkCancel(ctx); err != nil {
			return nil, err
		}
		if w.confirm != nil && !w.confirm(review) {
			w.setPhase(PhaseCancelled)
			return nil, fmt.Errorf("%w: cleanup declined", util.ErrCancelled)
		}

		w.setPhase(PhaseBackingUp)
		phaseStart = time.Now()
		manifest, batchDir, manifestPath, err = w.backupBatch(ctx, review)
		if err != nil {
			if errors.Is(err, util.ErrCancelled) {
				w.setPhase(PhaseCancelled)
			}
			return nil, err
		}
		w.sink.PhaseComplete(PhaseBackingUp.String(), time.Since(phaseStart))

		if err := w.checkCancel(ctx); err != nil {
			return nil, err
		}
		w.setPhase(PhaseDeleting)
		phaseStart = time.Now()
		outcome = w.deleteBatch(ctx, review)
		w.sink.PhaseComplete(PhaseDeleting.String(), time.Since(phaseStart))
	}

	w.setPhase(PhaseReporting)
	rep := w.buildReport(review, validation, manifest, outcome, time.Since(start))
	rep.BatchDir = batchDir
	rep.ManifestPath = manifestPath

	summary := w.buildSummary(rep, review, outcome)
	summaryPath := report.SummaryPath(w.artifactsDir, start)
	if err := report.WriteMarkdownSummary(summary, summaryPath); err != nil {
		return rep, fmt.Errorf("%w: cannot write summary: %v", util.ErrIO, err)
	}
	rep.SummaryPath = summaryPath

	w.setPhase(PhaseDone)
	if rep.DryRun {
		util.SuccessLog("Dry run complete: %d groups, %s reclaimable, report at %s",
			rep.GroupsFound-rep.GroupsExcluded, util.FormatBytes(rep.BytesRecovered), summaryPath)
	} else {
		util.SuccessLog("Cleanup complete: %d files deleted, %s recovered, report at %s",
			rep.FilesDeleted, util.FormatBytes(rep.BytesRecovered), summaryPath)
	}
	return rep, nil
}

// buildReport assembles the per-file actions and counters from what
// the phases left behind
func (w *Workflow) buildReport(review *Review, validation *ValidationResult, manifest *Manifest, outcome *deleteOutcome, took time.Duration) *Report {
	rep := &Report{
		Mode:       review.Mode,
		DryRun:     w.dryRun,
		Duration:   took,
		Exclusions: validation.Exclusions,
	}

	rep.GroupsFound = len(review.Groups)
	for _, g := range review.Groups {
		rep.FilesReviewed += len(g.Members)
		if g.Excluded() {
			rep.GroupsExcluded++
		}
	}
	if manifest != nil {
		rep.FilesBackedUp = len(manifest.Entries)
	}

	for _, g := range review.ActiveGroups() {
		if keeper := g.Keeper(); keeper != nil {
			rep.Actions = append(rep.Actions, w.fileAction(g, keeper, "keep"))
		}
		for _, m := range g.Deletions() {
			action := "would_delete"
			if !w.dryRun {
				switch {
				case outcome == nil:
					action = "skipped"
				case outcome.deleted[m.File.ID]:
					action = "delete"
					rep.FilesDeleted++
					rep.BytesRecovered += m.File.SizeBytes
				case outcome.failed[m.File.ID] != "":
					action = "delete_failed"
					rep.DeleteFailures++
					rep.Failures = append(rep.Failures, report.FailureSummary{
						Path:   m.File.Path,
						Stage:  "delete",
						Reason: outcome.failed[m.File.ID],
					})
				default:
					action = "skipped"
				}
			}
			rep.Actions = append(rep.Actions, w.fileAction(g, m, action))
		}
	}

	if w.dryRun {
		rep.BytesRecovered = review.DeletionBytes()
	}

	for _, warn := range validation.Warnings {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s: %s", warn.Check, warn.Detail))
	}
	for _, excl := range validation.Exclusions {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("excluded group %q: %s: %s", excl.GroupKey, excl.Check, excl.Detail))
	}
	if outcome != nil && outcome.cancelled {
		rep.Warnings = append(rep.Warnings, "deletion interrupted; remaining candidates were left in place")
	}
	return rep
}

func (w *Workflow) fileAction(g *Group, m *Member, action string) FileAction {
	return FileAction{
		Path:       m.File.Path,
		Action:     action,
		GroupKey:   g.Key,
		MatchType:  g.MatchType,
		Confidence: m.Confidence,
		Score:      m.Score.Total,
		SizeBytes:  m.File.SizeBytes,
		Format:     m.File.Format,
	}
}

// buildSummary maps the report onto the Markdown summary model. In a
// real run only files that were actually deleted appear under a
// group's Deleted list; in a dry run every candidate does.
func (w *Workflow) buildSummary(rep *Report, review *Review, outcome *deleteOutcome) *report.CleanupSummary {
	summary := &report.CleanupSummary{
		GeneratedAt:    time.Now(),
		Duration:       rep.Duration,
		Mode:           rep.Mode,
		DryRun:         rep.DryRun,
		GroupsFound:    rep.GroupsFound,
		GroupsExcluded: rep.GroupsExcluded,
		FilesReviewed:  rep.FilesReviewed,
		FilesBackedUp:  rep.FilesBackedUp,
		FilesDeleted:   rep.FilesDeleted,
		DeleteFailures: rep.DeleteFailures,
		BytesRecovered: rep.BytesRecovered,
		DatabasePath:   w.catalog.Path(),
		EventLogPath:   w.eventLogPath,
		BackupDir:      rep.BatchDir,
		ManifestPath:   rep.ManifestPath,
		Warnings:       rep.Warnings,
		Failures:       rep.Failures,
	}

	for _, g := range review.ActiveGroups() {
		keeper := g.Keeper()
		if keeper == nil {
			continue
		}
		gs := report.GroupSummary{
			Key:       g.Key,
			MatchType: g.MatchType,
			Keeper:    memberSummary(keeper),
		}
		for _, m := range g.Deletions() {
			if !rep.DryRun && (outcome == nil || !outcome.deleted[m.File.ID]) {
				continue
			}
			gs.Deleted = append(gs.Deleted, memberSummary(m))
		}
		summary.Groups = append(summary.Groups, gs)
	}
	return summary
}

func memberSummary(m *Member) report.MemberSummary {
	f := m.File
	return report.MemberSummary{
		Path:       f.Path,
		Score:      m.Score.Total,
		Format:     f.Format,
		Bitrate:    f.BitrateKbps,
		SampleRate: f.SampleRate,
		Lossless:   meta.IsLossless(f.Format),
		SizeBytes:  f.SizeBytes,
	}
}
