package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/franz/music-librarian/internal/util"
	"github.com/franz/music-librarian/internal/watch"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <library-folder>",
	Short: "Keep the catalog in sync with a folder as it changes",
	Long: `Watch a library folder for filesystem changes and update the catalog
continuously: new and modified audio files are reindexed, removed files
are flagged inactive.

Rapid write bursts (downloads, tag editors saving) are debounced so a
file is indexed once, after it settles. Hidden files, .tmp and .part
files are ignored.

Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Duration("debounce", 0, "Quiet period before a changed file is reindexed (default 500ms)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	applyLogFlags()

	debounce, _ := cmd.Flags().GetDuration("debounce")

	db, err := openCatalog()
	if err != nil {
		return err
	}
	defer db.Close()

	w, err := watch.New(&watch.Config{
		Catalog:  db,
		Debounce: debounce,
	})
	if err != nil {
		return err
	}

	util.InfoLog("=== Watching ===")
	util.InfoLog("Folder: %s", args[0])
	util.InfoLog("Press Ctrl-C to stop")

	start := time.Now()
	if err := w.Run(ctx, args[0]); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}

	reindexed, removed := w.Stats()
	util.InfoLog("")
	util.SuccessLog("Watcher stopped after %s: %d files reindexed, %d marked inactive",
		util.FormatDuration(time.Since(start)), reindexed, removed)

	return nil
}
