package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/music-librarian/internal/util"
)

// VerifyResult summarizes a verification pass over the catalog
type VerifyResult struct {
	Checked        int
	Missing        int
	MarkedInactive int
	Reactivated    int
}

// Verify compares catalog rows under dir against the disk. Active rows
// whose file vanished are soft-deleted; inactive rows whose file
// reappeared are restored. An empty dir verifies the whole catalog.
// Rows are never removed, so a temporarily unmounted share recovers
// cleanly on the next pass.
func (idx *Indexer) Verify(ctx context.Context, dir string) (*VerifyResult, error) {
	if dir != "" {
		var err error
		dir, err = filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot resolve %s: %v", util.ErrIO, dir, err)
		}
	}

	active, err := idx.catalog.ActiveFilesUnder(dir)
	if err != nil {
		return nil, err
	}
	inactive, err := idx.catalog.InactiveFilesUnder(dir)
	if err != nil {
		return nil, err
	}

	util.InfoLog("Verifying %d active files", len(active))

	result := &VerifyResult{}

	for _, f := range active {
		select {
		case <-ctx.Done():
			return result, fmt.Errorf("%w: verification interrupted", util.ErrCancelled)
		default:
		}

		result.Checked++

		_, statErr := os.Stat(f.Path)
		if statErr == nil {
			continue
		}
		if !os.IsNotExist(statErr) {
			// Unreadable is not proof of absence; leave the row alone
			util.WarnLog("Cannot stat %s: %v", f.Path, statErr)
			continue
		}

		result.Missing++
		if err := idx.catalog.MarkInactive(f.ID); err != nil {
			return result, err
		}
		result.MarkedInactive++
		util.DebugLog("Marked inactive: %s", f.Path)
	}

	for _, f := range inactive {
		select {
		case <-ctx.Done():
			return result, fmt.Errorf("%w: verification interrupted", util.ErrCancelled)
		default:
		}

		if _, statErr := os.Stat(f.Path); statErr != nil {
			continue
		}

		if err := idx.catalog.MarkActive(f.ID); err != nil {
			return result, err
		}
		result.Reactivated++
		util.DebugLog("Reactivated: %s", f.Path)
	}

	util.SuccessLog("Verify complete: %d checked, %d missing, %d reactivated",
		result.Checked, result.Missing, result.Reactivated)

	return result, nil
}
