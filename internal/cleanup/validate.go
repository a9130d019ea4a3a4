package cleanup

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/music-librarian/internal/util"
)

// Validation check names, reported per group (or per batch) through
// the sink
const (
	CheckGroupSize           = "group_size"
	CheckKeeperPresent       = "keeper_present"
	CheckKeeperQuality       = "keeper_quality"
	CheckUniqueMembership    = "unique_membership"
	CheckBackupWritable      = "backup_writable"
	CheckCandidatesDeletable = "candidates_deletable"
	CheckBackupSpace         = "backup_space"
	CheckBackupSameDevice    = "backup_separate_device"
)

// batchKey labels checks that apply to the whole deletion batch
const batchKey = "batch"

// ValidationFailure records one failed check. Hard failures exclude
// their group from the batch; warnings do not.
type ValidationFailure struct {
	GroupKey string
	Check    string
	Detail   string
}

// ValidationResult is the outcome of the validating phase
type ValidationResult struct {
	Exclusions []ValidationFailure
	Warnings   []ValidationFailure
}

// validate runs the safety checks against every group still in the
// batch. A failed hard check excludes only its group; the run
// continues with the rest.
func (w *Workflow) validate(review *Review) *ValidationResult {
	res := &ValidationResult{}

	// Back up nowhere, delete nothing: the destination gets probed
	// before any per-group effort. An unwritable destination fails every
	// group at once.
	if w.backupDir != "" {
		if err := util.DirWritable(w.backupDir); err != nil {
			detail := err.Error()
			w.sink.GroupValidated(batchKey, CheckBackupWritable, false, detail)
			for _, g := range review.ActiveGroups() {
				g.excluded = true
				res.Exclusions = append(res.Exclusions, ValidationFailure{g.Key, CheckBackupWritable, detail})
			}
			return res
		}
		w.sink.GroupValidated(batchKey, CheckBackupWritable, true, "")
	}

	seen := make(map[int64]string)
	for _, g := range review.ActiveGroups() {
		w.validateGroup(g, seen, res)
	}

	if w.backupDir != "" {
		w.validateBatch(review, res)
	}

	return res
}

// validateGroup runs the per-group checks in order, stopping at the
// first hard failure
func (w *Workflow) validateGroup(g *Group, seen map[int64]string, res *ValidationResult) {
	exclude := func(check, detail string) {
		g.excluded = true
		res.Exclusions = append(res.Exclusions, ValidationFailure{g.Key, check, detail})
		w.sink.GroupValidated(g.Key, check, false, detail)
	}
	pass := func(check string) {
		w.sink.GroupValidated(g.Key, check, true, "")
	}

	deletions := g.Deletions()
	if len(g.Members) < 2 || len(deletions) == 0 {
		exclude(CheckGroupSize, fmt.Sprintf("%d members, %d delete-candidates", len(g.Members), len(deletions)))
		return
	}
	pass(CheckGroupSize)

	keeper := g.Keeper()
	if keeper == nil {
		exclude(CheckKeeperPresent, "no keeper designated")
		return
	}
	if _, err := os.Stat(keeper.File.Path); err != nil {
		exclude(CheckKeeperPresent, fmt.Sprintf("keeper missing from disk: %v", err))
		return
	}
	for _, d := range deletions {
		if d.File.ID == keeper.File.ID {
			exclude(CheckKeeperPresent, "keeper is also a delete-candidate")
			return
		}
	}
	pass(CheckKeeperPresent)

	// Advisory only: with automatic selection the keeper is the top
	// scorer, and an override is a deliberate choice
	outscored := ""
	if !g.overridden {
		for _, d := range deletions {
			if d.Score.Total > keeper.Score.Total {
				outscored = fmt.Sprintf("%s outscores keeper (%.1f > %.1f)",
					d.File.Path, d.Score.Total, keeper.Score.Total)
				break
			}
		}
	}
	if outscored != "" {
		res.Warnings = append(res.Warnings, ValidationFailure{g.Key, CheckKeeperQuality, outscored})
		w.sink.GroupValidated(g.Key, CheckKeeperQuality, false, outscored)
	} else {
		pass(CheckKeeperQuality)
	}

	for _, m := range g.Members {
		if otherKey, dup := seen[m.File.ID]; dup {
			exclude(CheckUniqueMembership, fmt.Sprintf("%s already belongs to group %q", m.File.Path, otherKey))
			return
		}
	}
	for _, m := range g.Members {
		seen[m.File.ID] = g.Key
	}
	pass(CheckUniqueMembership)

	for _, d := range deletions {
		if err := util.FileDeletable(d.File.Path); err != nil {
			exclude(CheckCandidatesDeletable, fmt.Sprintf("%s: %v", d.File.Path, err))
			return
		}
	}
	pass(CheckCandidatesDeletable)
}

// validateBatch runs the warning-only destination checks against
// whatever survived the per-group gate
func (w *Workflow) validateBatch(review *Review, res *ValidationResult) {
	needed := review.DeletionBytes()
	if needed == 0 {
		return
	}

	if free, err := util.DiskFree(w.backupDir); err == nil && free < uint64(needed) {
		detail := fmt.Sprintf("backup destination has %s free, batch needs %s",
			util.FormatBytes(int64(free)), util.FormatBytes(needed))
		res.Warnings = append(res.Warnings, ValidationFailure{batchKey, CheckBackupSpace, detail})
		w.sink.GroupValidated(batchKey, CheckBackupSpace, false, detail)
	} else {
		w.sink.GroupValidated(batchKey, CheckBackupSpace, true, "")
	}

	// A backup on the same device does not survive the failure modes
	// backups exist for
	var sample string
	for _, g := range review.ActiveGroups() {
		if ds := g.Deletions(); len(ds) > 0 {
			sample = filepath.Dir(ds[0].File.Path)
			break
		}
	}
	if sample != "" {
		if same, err := util.IsSameFilesystem(w.backupDir, sample); err == nil && same {
			detail := fmt.Sprintf("backup directory shares a filesystem with %s", sample)
			res.Warnings = append(res.Warnings, ValidationFailure{batchKey, CheckBackupSameDevice, detail})
			w.sink.GroupValidated(batchKey, CheckBackupSameDevice, false, detail)
		} else {
			w.sink.GroupValidated(batchKey, CheckBackupSameDevice, true, "")
		}
	}
}
