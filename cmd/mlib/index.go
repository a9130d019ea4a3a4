package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/franz/music-librarian/internal/index"
	"github.com/franz/music-librarian/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Index a music folder into the catalog",
	Long: `Walk a music folder and bring the catalog up to date with it.

Every audio file is read for tags (with filename fallbacks when tags
are missing), audio properties, and identity hashes. Files already
cataloged with unchanged size and modification time are skipped unless
--rescan is given.

Indexing the same folder twice is idempotent: the second run only
touches verification timestamps.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().Bool("rescan", false, "Re-extract metadata even for unchanged files")
	indexCmd.Flags().Bool("incremental", true, "Skip files whose size and mtime are unchanged")
	indexCmd.Flags().IntP("concurrency", "c", 0, "Extraction workers (default 4)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	applyLogFlags()

	root := args[0]
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return fmt.Errorf("library folder does not exist: %s", root)
	}

	rescan, _ := cmd.Flags().GetBool("rescan")
	incremental, _ := cmd.Flags().GetBool("incremental")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		concurrency = viper.GetInt("concurrency")
	}

	db, err := openCatalog()
	if err != nil {
		return err
	}
	defer db.Close()

	idx := index.New(&index.Config{
		Catalog:     db,
		Concurrency: concurrency,
		Rescan:      rescan || !incremental,
	})

	util.InfoLog("=== Indexing ===")
	util.InfoLog("Library: %s", root)
	if rescan || !incremental {
		util.InfoLog("Rescan: re-extracting every file")
	}

	startTime := time.Now()

	result, err := idx.Scan(ctx, root)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	duration := time.Since(startTime)

	// Summary
	util.InfoLog("")
	util.SuccessLog("=== Index Summary ===")
	util.InfoLog("Total time: %s", util.FormatDuration(duration))
	util.InfoLog("Files scanned: %d", result.Scanned)
	util.InfoLog("  New: %d", result.New)
	util.InfoLog("  Updated: %d", result.Updated)
	util.InfoLog("  Unchanged: %d", result.Unchanged)
	if result.IOErrors > 0 || result.MetadataErrors > 0 {
		util.WarnLog("  Errors: %d IO, %d metadata", result.IOErrors, result.MetadataErrors)
	}

	if len(result.Errors) > 0 {
		util.InfoLog("")
		util.WarnLog("Files that could not be indexed:")
		for i, fe := range result.Errors {
			if i >= 10 {
				util.WarnLog("... and %d more", len(result.Errors)-10)
				break
			}
			util.WarnLog("  - %s: %v", fe.Path, fe.Err)
		}
	}

	active, _ := db.CountFiles(true)
	util.InfoLog("")
	util.InfoLog("Catalog now tracks %s active files", util.FormatCount(int64(active)))
	util.InfoLog("")
	util.InfoLog("Next step: mlib cleanup --dry-run, or mlib vet <import-folder>")

	return nil
}
