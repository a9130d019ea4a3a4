package catalog

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const (
	currentSchemaVersion = 2
)

// Catalog represents the persistent library index
type Catalog struct {
	db   *sql.DB
	path string
}

// OpenOptions holds options for opening a catalog database
type OpenOptions struct {
	NetworkOptimized bool // Apply network-optimized pragmas
}

// Open opens or creates a SQLite catalog at the given path with default options
func Open(path string) (*Catalog, error) {
	return OpenWithOptions(path, nil)
}

// OpenWithOptions opens or creates a SQLite catalog with custom options
func OpenWithOptions(path string, opts *OpenOptions) (*Catalog, error) {
	if opts == nil {
		opts = &OpenOptions{}
	}

	// Open with pragmas for performance and reliability
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_timeout=5000&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with a single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	cat := &Catalog{db: db, path: path}

	// Apply network-optimized pragmas if requested
	if opts.NetworkOptimized {
		if err := cat.applyNetworkPragmas(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply network pragmas: %w", err)
		}
	}

	// Run migrations
	if err := cat.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return cat, nil
}

// applyNetworkPragmas applies SQLite optimizations for network filesystems
func (c *Catalog) applyNetworkPragmas() error {
	pragmas := []string{
		// Reduce fsync calls - NORMAL is safe with WAL mode
		// Instead of fsync on every commit (FULL), only fsync at checkpoints
		"PRAGMA synchronous = NORMAL",

		// Keep temp tables in memory instead of on network disk
		"PRAGMA temp_store = MEMORY",

		// Increase cache size to 64MB (reduce network round-trips)
		// Negative value = KB (64000 KB = ~64 MB)
		"PRAGMA cache_size = -64000",

		// Increase page size to 8KB (better for network, default is 4KB)
		// Must be set before any tables are created, so this may not apply
		// to existing databases
		"PRAGMA page_size = 8192",
	}

	for _, pragma := range pragmas {
		if _, err := c.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (c *Catalog) Close() error {
	return c.db.Close()
}

// DB returns the underlying database connection for custom queries
func (c *Catalog) DB() *sql.DB {
	return c.db
}

// Path returns the database file path this catalog was opened with
func (c *Catalog) Path() string {
	return c.path
}

// SQLiteVersion returns the SQLite version string
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var version string
	err = db.QueryRow("SELECT sqlite_version()").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

// CheckIntegrity runs PRAGMA integrity_check on the database
func (c *Catalog) CheckIntegrity() error {
	var result string
	err := c.db.QueryRow("PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// migrate applies database migrations
func (c *Catalog) migrate() error {
	// Check current schema version
	version, err := c.getSchemaVersion()
	if err != nil {
		return err
	}

	if version >= currentSchemaVersion {
		// Already at current version
		return nil
	}

	// Start transaction for migration
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Apply schema v1
	if version < 1 {
		if _, err := tx.Exec(schemaV1); err != nil {
			return fmt.Errorf("failed to apply schema v1: %w", err)
		}
		if err := c.setSchemaVersion(tx, 1); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	// Apply schema v2 - Performance indexes
	if version < 2 {
		if _, err := tx.Exec(schemaV2); err != nil {
			return fmt.Errorf("failed to apply schema v2: %w", err)
		}
		if err := c.setSchemaVersion(tx, 2); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}

	// Future migrations would go here:
	// if version < 3 { ... }

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version
func (c *Catalog) getSchemaVersion() (int, error) {
	// Check if schema_version table exists
	var exists int
	err := c.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&exists)
	if err != nil {
		return 0, err
	}

	if exists == 0 {
		// No schema yet
		return 0, nil
	}

	// Get latest version
	var version int
	err = c.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion records a schema version in a transaction
func (c *Catalog) setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// Transaction executes a function within a transaction
func (c *Catalog) Transaction(fn func(*sql.Tx) error) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpsertOutcome reports what UpsertFile did with a row
type UpsertOutcome int

const (
	UpsertInserted UpsertOutcome = iota
	UpsertUpdated
	UpsertUnchanged
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertInserted:
		return "inserted"
	case UpsertUpdated:
		return "updated"
	case UpsertUnchanged:
		return "unchanged"
	}
	return "unknown"
}

// File represents an indexed library file
type File struct {
	ID           int64
	Path         string
	Filename     string
	Artist       string
	ArtistNorm   string
	Title        string
	Album        string
	Year         int
	DurationSec  float64
	Format       string
	BitrateKbps  int
	Vbr          bool
	SampleRate   int
	SizeBytes    int64
	MtimeUnix    int64
	MetadataHash string
	ContentHash  string
	Active       bool
	IndexedAt    time.Time
	LastVerified time.Time
}

// Session represents one recorded vetting run
type Session struct {
	ID             int64
	SessionKey     string
	ImportFolder   string
	ScannedAt      time.Time
	FileCount      int
	NewCount       int
	DuplicateCount int
	UncertainCount int
	ErrorCount     int
	Threshold      float64
	DurationMs     int64
}
