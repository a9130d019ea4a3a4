package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/franz/music-librarian/internal/cleanup"
	"github.com/franz/music-librarian/internal/report"
	"github.com/franz/music-librarian/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Find duplicate groups and delete the lower-quality copies",
	Long: `Group duplicate files in the catalog, keep the best copy of each
group, and delete the rest.

Safety model:
- Every delete candidate is copied into a backup batch first. A single
  failed copy aborts the whole run before anything is deleted.
- The batch carries a JSON manifest (original path, backup path, size,
  SHA-1) committed to disk before the first deletion.
- Deleted files keep their catalog rows, flagged inactive.
- Without --yes, a confirmation prompt shows the plan first.

Modes:
  fast      - group by exact artist/title metadata only
  thorough  - also group byte-identical files and near-identical titles

Start with --dry-run to see what would happen.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().String("mode", "fast", "Matching mode: fast or thorough")
	cleanupCmd.Flags().String("backup-dir", "", "Directory that receives backups before any deletion")
	cleanupCmd.Flags().Bool("dry-run", false, "Report what would be deleted without touching files")
	cleanupCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	cleanupCmd.Flags().Float64("fuzzy-threshold", 0, "Title similarity needed to group in thorough mode (default 0.85)")

	viper.BindPFlag("backup_dir", cleanupCmd.Flags().Lookup("backup-dir"))
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verbose, quiet := applyLogFlags()

	mode, _ := cmd.Flags().GetString("mode")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	yes, _ := cmd.Flags().GetBool("yes")
	fuzzyThreshold, _ := cmd.Flags().GetFloat64("fuzzy-threshold")
	backupDir := viper.GetString("backup_dir")

	if backupDir == "" && !dryRun {
		return fmt.Errorf("refusing to delete without a backup destination (use --backup-dir, or --dry-run to preview)")
	}

	db, err := openCatalog()
	if err != nil {
		return err
	}
	defer db.Close()

	// Create event logger with appropriate log level
	logger, err := report.NewEventLogger(viper.GetString("artifacts"), eventLevel(verbose, quiet))
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		logger = report.NullLogger()
	}
	defer logger.Close()

	if logger.Path() != "" {
		util.InfoLog("Event log: %s", logger.Path())
	}

	var confirm func(*cleanup.Review) bool
	if !yes {
		confirm = promptConfirm
	}

	w, err := cleanup.New(&cleanup.Config{
		Catalog:        db,
		Mode:           mode,
		BackupDir:      backupDir,
		DryRun:         dryRun,
		FuzzyThreshold: fuzzyThreshold,
		Confirm:        confirm,
		Sink:           logger,
		ArtifactsDir:   viper.GetString("artifacts"),
		EventLogPath:   logger.Path(),
		RetryConfig:    util.RetryConfigForPaths(backupDir),
	})
	if err != nil {
		return err
	}

	util.InfoLog("=== Cleanup ===")
	util.InfoLog("Mode: %s", mode)
	if dryRun {
		util.InfoLog("Dry-run: no files will be touched")
	} else {
		util.InfoLog("Backups: %s", backupDir)
	}

	rep, err := w.Run(ctx)
	if err != nil {
		if errors.Is(err, util.ErrCancelled) {
			util.WarnLog("Cleanup cancelled; no files were deleted")
			return nil
		}
		return fmt.Errorf("cleanup failed: %w", err)
	}

	// Summary
	util.InfoLog("")
	util.SuccessLog("=== Cleanup Summary ===")
	util.InfoLog("Total time: %s", util.FormatDuration(rep.Duration))
	util.InfoLog("Duplicate groups: %d found, %d excluded by validation",
		rep.GroupsFound, rep.GroupsExcluded)
	util.InfoLog("Files reviewed: %d", rep.FilesReviewed)

	if rep.DryRun {
		util.InfoLog("Would delete: %d files (%s reclaimable)",
			prospectiveDeletes(rep), util.FormatBytes(rep.BytesRecovered))
	} else {
		util.InfoLog("Backed up: %d files", rep.FilesBackedUp)
		util.InfoLog("Deleted: %d files (%s recovered)",
			rep.FilesDeleted, util.FormatBytes(rep.BytesRecovered))
		if rep.DeleteFailures > 0 {
			util.WarnLog("Delete failures: %d (sources kept, see report)", rep.DeleteFailures)
		}
		if rep.BatchDir != "" {
			util.InfoLog("Backup batch: %s", rep.BatchDir)
		}
	}

	for _, warning := range rep.Warnings {
		util.WarnLog("Warning: %s", warning)
	}

	if rep.SummaryPath != "" {
		util.InfoLog("")
		util.InfoLog("Report: %s", rep.SummaryPath)
	}

	if rep.DryRun && prospectiveDeletes(rep) > 0 {
		util.InfoLog("")
		util.InfoLog("To apply: mlib cleanup --mode %s --backup-dir <dir>", mode)
	}

	return nil
}

func prospectiveDeletes(rep *cleanup.Report) int {
	n := 0
	for _, a := range rep.Actions {
		if a.Action == "would_delete" {
			n++
		}
	}
	return n
}

// promptConfirm shows the plan and asks before anything is deleted
func promptConfirm(review *cleanup.Review) bool {
	fmt.Printf("\nAbout to back up and delete %d files (%s reclaimed).\n",
		review.DeletionCount(), util.FormatBytes(review.DeletionBytes()))

	if !util.IsTerminal(os.Stdin.Fd()) {
		util.WarnLog("No terminal attached; pass --yes to confirm non-interactively")
		return false
	}

	fmt.Print("Proceed? (y/N): ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}
