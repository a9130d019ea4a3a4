package main

import (
	"fmt"

	"github.com/franz/music-librarian/internal/catalog"
	"github.com/franz/music-librarian/internal/report"
	"github.com/franz/music-librarian/internal/util"
	"github.com/spf13/viper"
)

// applyLogFlags sets the logger level from the global flags and
// returns (verbose, quiet) for event-log level selection
func applyLogFlags() (bool, bool) {
	verbose := viper.GetBool("verbose")
	quiet := viper.GetBool("quiet")
	util.SetVerbose(verbose)
	util.SetQuiet(quiet)
	return verbose, quiet
}

// openCatalog opens the configured catalog database
func openCatalog() (*catalog.Catalog, error) {
	dbPath := viper.GetString("db")
	util.InfoLog("Opening catalog: %s", dbPath)

	// Check if the catalog is on network storage
	networkOptimized := false
	if dbInfo, err := util.DetectNetworkFilesystem(dbPath); err == nil && dbInfo.IsNetwork {
		networkOptimized = true
		util.InfoLog("Catalog on network storage (%s) - applying optimizations", dbInfo.Protocol)
	}

	db, err := catalog.OpenWithOptions(dbPath, &catalog.OpenOptions{
		NetworkOptimized: networkOptimized,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return db, nil
}

// eventLevel maps the verbosity flags to the event log's minimum level
func eventLevel(verbose, quiet bool) report.EventLevel {
	if quiet {
		return report.LevelWarning
	}
	if verbose {
		return report.LevelDebug
	}
	return report.LevelInfo
}
