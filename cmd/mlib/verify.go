package main

import (
	"context"
	"fmt"
	"time"

	"github.com/franz/music-librarian/internal/index"
	"github.com/franz/music-librarian/internal/util"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Check that cataloged files still exist on disk",
	Long: `Compare catalog rows against the filesystem.

Active files that have vanished are marked inactive; inactive files
that reappeared (a remounted drive, a restored backup) are reactivated.
Rows are never removed, so an unplugged external disk recovers cleanly
on the next verify after remounting.

With a path argument only files under that path are checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	applyLogFlags()

	dir := ""
	if len(args) > 0 {
		dir = args[0]
	}

	db, err := openCatalog()
	if err != nil {
		return err
	}
	defer db.Close()

	idx := index.New(&index.Config{Catalog: db})

	util.InfoLog("=== Verification ===")
	if dir != "" {
		util.InfoLog("Scope: %s", dir)
	} else {
		util.InfoLog("Scope: whole catalog")
	}

	startTime := time.Now()

	result, err := idx.Verify(ctx, dir)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	duration := time.Since(startTime)

	util.InfoLog("")
	util.SuccessLog("=== Verification Summary ===")
	util.InfoLog("Total time: %s", util.FormatDuration(duration))
	util.InfoLog("Files checked: %d", result.Checked)
	util.InfoLog("  Missing: %d", result.Missing)
	util.InfoLog("  Marked inactive: %d", result.MarkedInactive)
	util.InfoLog("  Reactivated: %d", result.Reactivated)

	if result.MarkedInactive > 0 {
		util.InfoLog("")
		util.WarnLog("Missing files were soft-deleted, not forgotten.")
		util.InfoLog("If a volume was unmounted, remount it and run verify again to restore them.")
	}

	return nil
}
