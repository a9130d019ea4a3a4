package util

import "errors"

// Sentinel errors for the failure classes the engines report.
// Call sites wrap these with fmt.Errorf("...: %w", ...) so callers can
// classify with errors.Is while keeping the file-level detail.
var (
	// ErrIO indicates a file could not be opened, read, or hashed
	ErrIO = errors.New("io failure")

	// ErrMetadata indicates tags or audio properties could not be extracted
	ErrMetadata = errors.New("metadata extraction failed")

	// ErrValidation indicates a cleanup pre-flight check failed
	ErrValidation = errors.New("validation failed")

	// ErrBackup indicates a backup copy or manifest commit failed
	ErrBackup = errors.New("backup failed")

	// ErrDelete indicates a deletion candidate could not be removed
	ErrDelete = errors.New("delete failed")

	// ErrCatalog indicates a catalog read or write failed
	ErrCatalog = errors.New("catalog failure")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCancelled indicates the operation was cancelled before completion
	ErrCancelled = errors.New("cancelled")
)
