package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/franz/music-librarian/internal/util"
)

// CleanupSummary is the assembled outcome of one cleanup run,
// ready to be rendered as Markdown
type CleanupSummary struct {
	GeneratedAt time.Time
	Duration    time.Duration
	Mode        string
	DryRun      bool

	// Group statistics
	GroupsFound    int
	GroupsExcluded int

	// File statistics
	FilesReviewed  int
	FilesBackedUp  int
	FilesDeleted   int
	DeleteFailures int
	BytesRecovered int64

	// Run artifacts
	DatabasePath string
	EventLogPath string
	BackupDir    string
	ManifestPath string

	// Details
	Groups   []GroupSummary
	Warnings []string
	Failures []FailureSummary
}

// GroupSummary describes one duplicate group and what happened to it
type GroupSummary struct {
	Key       string
	MatchType string
	Keeper    MemberSummary
	Deleted   []MemberSummary
}

// MemberSummary describes one file inside a duplicate group
type MemberSummary struct {
	Path       string
	Score      float64
	Format     string
	Bitrate    int
	SampleRate int
	Lossless   bool
	SizeBytes  int64
}

// FailureSummary records a per-file failure during backup or deletion
type FailureSummary struct {
	Path   string
	Stage  string
	Reason string
}

// SummaryPath returns the default report location for a run started at ts
func SummaryPath(artifactsDir string, ts time.Time) string {
	name := fmt.Sprintf("cleanup-%s.md", ts.Format("20060102-150405"))
	return filepath.Join(artifactsDir, "reports", name)
}

// WriteMarkdownSummary writes the cleanup summary as Markdown
func WriteMarkdownSummary(summary *CleanupSummary, outputPath string) error {
	// Create output directory
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Generate markdown content
	var md strings.Builder

	// Header
	md.WriteString("# Music Librarian - Cleanup Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", summary.GeneratedAt.Format("2006-01-02 15:04:05")))

	if summary.Mode != "" {
		md.WriteString(fmt.Sprintf("**Mode:** %s\n\n", summary.Mode))
	}
	if summary.DryRun {
		md.WriteString("**Dry run** - no files were backed up or deleted\n\n")
	}
	if summary.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", summary.DatabasePath))
	}
	if summary.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", summary.EventLogPath))
	}
	if summary.BackupDir != "" {
		md.WriteString(fmt.Sprintf("**Backup:** `%s`\n\n", summary.BackupDir))
	}
	if summary.ManifestPath != "" {
		md.WriteString(fmt.Sprintf("**Manifest:** `%s`\n\n", summary.ManifestPath))
	}

	md.WriteString("---\n\n")

	// Overview
	md.WriteString("## 📊 Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Duplicate Groups | %d |\n", summary.GroupsFound))
	if summary.GroupsExcluded > 0 {
		md.WriteString(fmt.Sprintf("| Groups Excluded | %d |\n", summary.GroupsExcluded))
	}
	md.WriteString(fmt.Sprintf("| Files Reviewed | %d |\n", summary.FilesReviewed))
	md.WriteString(fmt.Sprintf("| Files Backed Up | %d |\n", summary.FilesBackedUp))
	md.WriteString(fmt.Sprintf("| Files Deleted | %d |\n", summary.FilesDeleted))
	if summary.DeleteFailures > 0 {
		md.WriteString(fmt.Sprintf("| Delete Failures | %d |\n", summary.DeleteFailures))
	}
	md.WriteString(fmt.Sprintf("| Space Recovered | %s |\n", util.FormatBytes(summary.BytesRecovered)))
	if summary.Duration > 0 {
		md.WriteString(fmt.Sprintf("| Duration | %s |\n", summary.Duration.Round(time.Second)))
	}
	md.WriteString("\n")

	// Warnings
	if len(summary.Warnings) > 0 {
		md.WriteString("## ⚠️ Warnings\n\n")
		for _, w := range summary.Warnings {
			md.WriteString(fmt.Sprintf("- %s\n", w))
		}
		md.WriteString("\n")
	}

	// Duplicate groups
	if len(summary.Groups) > 0 {
		md.WriteString("## 🔍 Duplicate Groups (Top 20)\n\n")
		md.WriteString("*Showing groups with the most duplicates*\n\n")

		deletedHeading := "**❌ Duplicates (deleted):**"
		if summary.DryRun {
			deletedHeading = "**❌ Duplicates (to delete):**"
		}

		for i, group := range topGroups(summary.Groups, 20) {
			md.WriteString(fmt.Sprintf("### %d. %s\n\n", i+1, group.Key))
			md.WriteString(fmt.Sprintf("**Matched by:** %s | **Total copies:** %d duplicates + 1 keeper\n\n",
				group.MatchType, len(group.Deleted)))

			// Keeper
			md.WriteString("**✅ Keeper (kept):**\n")
			md.WriteString(fmt.Sprintf("- **Score:** %.1f\n", group.Keeper.Score))
			md.WriteString(fmt.Sprintf("- **Format:** %s", group.Keeper.Format))
			if group.Keeper.Lossless {
				md.WriteString(" (lossless)")
			}
			md.WriteString("\n")
			if group.Keeper.Bitrate > 0 {
				md.WriteString(fmt.Sprintf("- **Bitrate:** %d kbps\n", group.Keeper.Bitrate))
			}
			if group.Keeper.SampleRate > 0 {
				md.WriteString(fmt.Sprintf("- **Sample Rate:** %d Hz\n", group.Keeper.SampleRate))
			}
			md.WriteString(fmt.Sprintf("- **Size:** %s\n", util.FormatBytes(group.Keeper.SizeBytes)))
			md.WriteString(fmt.Sprintf("- **Path:** `%s`\n", truncatePath(group.Keeper.Path, 80)))
			md.WriteString("\n")

			// Deleted copies
			if len(group.Deleted) > 0 {
				md.WriteString(deletedHeading + "\n\n")

				for j, member := range group.Deleted {
					md.WriteString(fmt.Sprintf("%d. Score: %.1f | %s", j+1, member.Score, member.Format))
					if member.Lossless {
						md.WriteString(" (lossless)")
					}
					if member.Bitrate > 0 {
						md.WriteString(fmt.Sprintf(" | %d kbps", member.Bitrate))
					}
					md.WriteString(fmt.Sprintf(" | %s\n", util.FormatBytes(member.SizeBytes)))
					md.WriteString(fmt.Sprintf("   - `%s`\n", truncatePath(member.Path, 80)))
				}
				md.WriteString("\n")
			}
		}
	}

	// Failures
	if len(summary.Failures) > 0 {
		md.WriteString("## 🚨 Failures\n\n")
		md.WriteString("| Stage | File | Reason |\n")
		md.WriteString("|-------|------|--------|\n")
		for _, f := range summary.Failures {
			md.WriteString(fmt.Sprintf("| %s | `%s` | %s |\n",
				f.Stage,
				truncatePath(f.Path, 40),
				f.Reason))
		}
		md.WriteString("\n")
	}

	// Footer
	md.WriteString("---\n\n")
	md.WriteString("*Generated by [mlib](https://github.com/franz/music-librarian) - Music Librarian*\n")

	// Write to file
	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// topGroups returns up to limit groups ordered by duplicate count
// The input slice is left untouched
func topGroups(groups []GroupSummary, limit int) []GroupSummary {
	sorted := make([]GroupSummary, len(groups))
	copy(sorted, groups)

	// Sort by number of duplicates (most duplicates first)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Deleted) > len(sorted[j].Deleted)
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	return sorted
}

// truncatePath truncates a file path to a maximum length
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Truncate from the middle, keeping start and end
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
