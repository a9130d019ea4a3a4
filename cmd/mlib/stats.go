package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/franz/music-librarian/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	db, err := openCatalog()
	if err != nil {
		return err
	}
	defer db.Close()

	st, err := db.Stats()
	if err != nil {
		return fmt.Errorf("failed to compute statistics: %w", err)
	}

	util.InfoLog("=== Catalog Statistics ===")
	util.InfoLog("Database: %s", viper.GetString("db"))
	util.InfoLog("")
	util.InfoLog("Files: %d active, %d inactive (%d total)",
		st.ActiveFiles, st.InactiveFiles, st.TotalFiles)
	util.InfoLog("Library size: %s", util.FormatBytes(st.TotalBytes))
	util.InfoLog("Artists: %d", st.UniqueArtists)
	util.InfoLog("Albums: %d", st.UniqueAlbums)

	if len(st.ByFormat) > 0 {
		type formatCount struct {
			format string
			count  int
		}
		formats := make([]formatCount, 0, len(st.ByFormat))
		for f, n := range st.ByFormat {
			formats = append(formats, formatCount{f, n})
		}
		sort.Slice(formats, func(i, j int) bool {
			if formats[i].count != formats[j].count {
				return formats[i].count > formats[j].count
			}
			return formats[i].format < formats[j].format
		})

		util.InfoLog("")
		util.InfoLog("Formats:")
		for _, fc := range formats {
			util.InfoLog("  %-8s %d", fc.format, fc.count)
		}
	}

	util.InfoLog("")
	if !st.LastIndexedAt.IsZero() {
		util.InfoLog("Last indexed: %s", st.LastIndexedAt.Format(time.RFC3339))
	}
	util.InfoLog("Vetting sessions: %d", st.Sessions)

	return nil
}
