package main

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/franz/music-librarian/internal/catalog"
	"github.com/franz/music-librarian/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure mlib can operate correctly.

This command checks:
- SQLite version compatibility
- Database accessibility and integrity
- Whether the catalog sits on a network mount (risky for SQLite)
- Artifacts directory writability
- Library and backup directory access
- Disk space availability

Use this command to troubleshoot issues before running mlib operations.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	// Doctor-specific flags
	doctorCmd.Flags().String("library", "", "Library directory to check (optional)")
	doctorCmd.Flags().String("backup-dir", "", "Backup directory to check (optional)")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== mlib Doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{}

	// 1. Check SQLite
	results = append(results, checkSQLite())

	// 2. Check database file
	dbPath := viper.GetString("db")
	results = append(results, checkDatabase(dbPath))

	// 3. Check where the catalog lives
	if dbPath != "" {
		results = append(results, checkCatalogLocation(dbPath))
	}

	// 4. Check artifacts directory
	results = append(results, checkArtifactsDir(viper.GetString("artifacts")))

	// 5. Check library directory
	libraryPath, _ := cmd.Flags().GetString("library")
	if libraryPath == "" {
		libraryPath = viper.GetString("library")
	}
	if libraryPath != "" {
		results = append(results, checkLibraryDirectory(libraryPath))
	}

	// 6. Check backup directory
	backupPath, _ := cmd.Flags().GetString("backup-dir")
	if backupPath == "" {
		backupPath = viper.GetString("backup_dir")
	}
	if backupPath != "" {
		results = append(results, checkBackupDirectory(backupPath, libraryPath))
	}

	// 7. Check disk space
	if libraryPath != "" {
		results = append(results, checkDiskSpace(libraryPath, "library"))
	}
	if backupPath != "" && backupPath != libraryPath {
		results = append(results, checkDiskSpace(backupPath, "backup"))
	}

	// Print results
	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	// Summary
	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before running mlib.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed! System is ready for mlib operations.")
	}

	return nil
}

// checkSQLite verifies SQLite version
func checkSQLite() checkResult {
	// modernc.org/sqlite ships its own engine, no system library needed
	version := catalog.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies database file accessibility
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}
	}

	// Check if database exists
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created on first run)", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	// Check if it's a regular file
	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	// Try to open it
	db, err := catalog.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	// Check integrity
	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	// Get some stats
	active, _ := db.CountFiles(true)
	total, _ := db.CountFiles(false)
	size := util.FormatBytes(info.Size())

	return checkResult{
		name:    "Database",
		message: fmt.Sprintf("%s (%s, %d active / %d total files)", dbPath, size, active, total),
	}
}

// checkCatalogLocation warns when the SQLite file sits on a network
// mount, where its locking is unreliable
func checkCatalogLocation(dbPath string) checkResult {
	dir := filepath.Dir(dbPath)

	info, err := util.DetectNetworkFilesystem(dir)
	if err != nil {
		return checkResult{
			name:    "Catalog location",
			warning: true,
			message: fmt.Sprintf("cannot inspect filesystem: %v", err),
		}
	}

	if info.IsNetwork {
		return checkResult{
			name:    "Catalog location",
			warning: true,
			message: fmt.Sprintf("%s mount (%s); SQLite locking is unreliable over the network, keep the catalog on a local disk", info.Protocol, dir),
		}
	}

	return checkResult{
		name:    "Catalog location",
		message: "local filesystem",
	}
}

// checkArtifactsDir verifies the artifacts directory is writable
func checkArtifactsDir(path string) checkResult {
	if path == "" {
		return checkResult{
			name:    "Artifacts directory",
			warning: true,
			message: "no artifacts path specified (use --artifacts flag or config)",
		}
	}

	_, statErr := os.Stat(path)
	if err := util.DirWritable(path); err != nil {
		return checkResult{
			name:    "Artifacts directory",
			error:   true,
			message: err.Error(),
		}
	}

	if os.IsNotExist(statErr) {
		return checkResult{
			name:    "Artifacts directory",
			message: fmt.Sprintf("%s (created)", path),
		}
	}

	return checkResult{
		name:    "Artifacts directory",
		message: fmt.Sprintf("%s (writable)", path),
	}
}

// checkLibraryDirectory verifies the library directory is readable
func checkLibraryDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		return checkResult{
			name:    "Library directory",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    "Library directory",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	// Check read permission by trying to list directory
	entries, err := os.ReadDir(path)
	if err != nil {
		return checkResult{
			name:    "Library directory",
			error:   true,
			message: fmt.Sprintf("cannot read %s: %v", path, err),
		}
	}

	return checkResult{
		name:    "Library directory",
		message: fmt.Sprintf("%s (%d entries)", path, len(entries)),
	}
}

// checkBackupDirectory verifies the backup directory is writable and
// warns when it shares a filesystem with the library
func checkBackupDirectory(path string, libraryPath string) checkResult {
	info, statErr := os.Stat(path)
	if statErr == nil && !info.IsDir() {
		return checkResult{
			name:    "Backup directory",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	if err := util.DirWritable(path); err != nil {
		return checkResult{
			name:    "Backup directory",
			error:   true,
			message: err.Error(),
		}
	}

	suffix := "writable"
	if os.IsNotExist(statErr) {
		suffix = "created"
	}

	if libraryPath != "" {
		if same, err := util.IsSameFilesystem(path, libraryPath); err == nil && same {
			return checkResult{
				name:    "Backup directory",
				warning: true,
				message: fmt.Sprintf("%s (%s, but shares a filesystem with the library; a disk failure would take both)", path, suffix),
			}
		}
	}

	return checkResult{
		name:    "Backup directory",
		message: fmt.Sprintf("%s (%s)", path, suffix),
	}
}

// checkDiskSpace verifies available disk space
func checkDiskSpace(path string, label string) checkResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{
			name:    fmt.Sprintf("Disk space (%s)", label),
			warning: true,
			message: fmt.Sprintf("cannot determine disk space: %v", err),
		}
	}

	// Available bytes = available blocks * block size
	availBytes := stat.Bavail * uint64(stat.Bsize)
	totalBytes := stat.Blocks * uint64(stat.Bsize)
	usedBytes := totalBytes - (stat.Bfree * uint64(stat.Bsize))

	availGB := float64(availBytes) / (1024 * 1024 * 1024)
	usedPercent := float64(usedBytes) / float64(totalBytes) * 100

	// Warn if less than 10GB available or >90% used
	warning := false
	warningMsg := ""
	if availGB < 10 {
		warning = true
		warningMsg = " (low space!)"
	} else if usedPercent > 90 {
		warning = true
		warningMsg = " (>90% used)"
	}

	return checkResult{
		name:    fmt.Sprintf("Disk space (%s)", label),
		warning: warning,
		message: fmt.Sprintf("%.1f GB available%s", availGB, warningMsg),
	}
}
