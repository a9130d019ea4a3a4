package main

import (
	"fmt"
	"time"

	"github.com/franz/music-librarian/internal/util"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent vetting sessions",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "n", 10, "Number of sessions to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	limit, _ := cmd.Flags().GetInt("limit")

	db, err := openCatalog()
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := db.RecentSessions(limit)
	if err != nil {
		return fmt.Errorf("failed to read sessions: %w", err)
	}

	if len(sessions) == 0 {
		util.InfoLog("No vetting sessions recorded yet. Run 'mlib vet <folder>' first.")
		return nil
	}

	util.InfoLog("=== Vetting History ===")
	for _, s := range sessions {
		util.InfoLog("")
		util.InfoLog("%s  %s", s.ScannedAt.Format("2006-01-02 15:04"), s.ImportFolder)
		util.InfoLog("  Session: %s", s.SessionKey)
		util.InfoLog("  Files: %d (%d new, %d duplicates, %d uncertain)",
			s.FileCount, s.NewCount, s.DuplicateCount, s.UncertainCount)
		if s.ErrorCount > 0 {
			util.WarnLog("  Errors: %d", s.ErrorCount)
		}
		util.InfoLog("  Threshold: %.2f  Duration: %s",
			s.Threshold, util.FormatDuration(time.Duration(s.DurationMs)*time.Millisecond))
	}

	return nil
}
