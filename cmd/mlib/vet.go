package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/franz/music-librarian/internal/report"
	"github.com/franz/music-librarian/internal/util"
	"github.com/franz/music-librarian/internal/vet"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var vetCmd = &cobra.Command{
	Use:   "vet <folder>",
	Short: "Vet an import folder against the library before adding it",
	Long: `Classify every audio file in an import folder against the catalog.

Each file is sorted into one of three buckets:
  new        - no trace of it in the library
  duplicate  - matches a library file by metadata, content, or close title
  uncertain  - similar enough to warrant a listen before importing

The library itself is never modified; the only thing recorded is a
vetting session for 'mlib history'. Export flags write file lists for
scripting the actual import.`,
	Args: cobra.ExactArgs(1),
	RunE: runVet,
}

func init() {
	rootCmd.AddCommand(vetCmd)

	vetCmd.Flags().Float64P("threshold", "t", 0, "Fuzzy duplicate threshold (default 0.8)")
	vetCmd.Flags().Bool("export-new", false, "Write a list of new files")
	vetCmd.Flags().Bool("export-duplicates", false, "Write a TSV of duplicates with their matches")
	vetCmd.Flags().Bool("export-uncertain", false, "Write a TSV of uncertain files for review")
	vetCmd.Flags().String("export-dir", "", "Directory for export lists (default: artifacts dir)")
	vetCmd.Flags().IntP("concurrency", "c", 0, "Classification workers (default 4)")
}

func runVet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	verbose, quiet := applyLogFlags()

	folder := args[0]
	if _, err := os.Stat(folder); os.IsNotExist(err) {
		return fmt.Errorf("import folder does not exist: %s", folder)
	}

	threshold, _ := cmd.Flags().GetFloat64("threshold")
	exportNew, _ := cmd.Flags().GetBool("export-new")
	exportDuplicates, _ := cmd.Flags().GetBool("export-duplicates")
	exportUncertain, _ := cmd.Flags().GetBool("export-uncertain")
	exportDir, _ := cmd.Flags().GetString("export-dir")
	if exportDir == "" {
		exportDir = viper.GetString("artifacts")
	}
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		concurrency = viper.GetInt("concurrency")
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

	engine, err := vet.New(&vet.Config{
		Catalog:          db,
		Threshold:        threshold,
		Concurrency:      concurrency,
		ExportNew:        exportNew,
		ExportDuplicates: exportDuplicates,
		ExportUncertain:  exportUncertain,
		ExportDir:        exportDir,
		Sink:             logger,
	})
	if err != nil {
		return err
	}

	util.InfoLog("=== Vetting ===")
	util.InfoLog("Import folder: %s", folder)

	startTime := time.Now()

	result, err := engine.Vet(ctx, folder)
	if err != nil {
		return fmt.Errorf("vetting failed: %w", err)
	}

	duration := time.Since(startTime)

	// Summary
	util.InfoLog("")
	util.SuccessLog("=== Vetting Summary ===")
	util.InfoLog("Total time: %s", util.FormatDuration(duration))
	util.InfoLog("Files scanned: %d", result.Scanned)
	util.InfoLog("  New: %d", len(result.New))
	util.InfoLog("  Duplicates: %d", len(result.Duplicates))
	util.InfoLog("  Uncertain: %d", len(result.Uncertain))
	if result.IOErrors > 0 || result.MetadataErrors > 0 {
		util.WarnLog("  Errors: %d IO, %d metadata", result.IOErrors, result.MetadataErrors)
	}

	for _, path := range result.ExportPaths {
		util.InfoLog("Export: %s", path)
	}

	if result.Session != nil {
		util.InfoLog("")
		util.InfoLog("Session %s recorded (mlib history shows past runs)", result.Session.SessionKey)
	}

	if len(result.Uncertain) > 0 {
		util.InfoLog("")
		util.InfoLog("Listen to the uncertain files before importing; --export-uncertain writes the list")
	}

	return nil
}
