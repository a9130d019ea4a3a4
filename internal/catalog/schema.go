package catalog

// Schema v1 - Initial library schema
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexed audio files (soft-deleted via is_active, never removed by
-- the standard workflows)
CREATE TABLE IF NOT EXISTS library_files (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  file_path TEXT UNIQUE NOT NULL,
  filename TEXT NOT NULL,
  artist TEXT,
  artist_norm TEXT,
  title TEXT,
  album TEXT,
  year INTEGER,
  duration_sec REAL,
  format TEXT,
  bitrate_kbps INTEGER,
  vbr INTEGER NOT NULL DEFAULT 0,
  sample_rate INTEGER,
  size_bytes INTEGER,
  mtime_unix INTEGER,
  metadata_hash TEXT,
  content_hash TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  indexed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  last_verified DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_library_files_metadata_hash ON library_files(metadata_hash);
CREATE INDEX IF NOT EXISTS idx_library_files_content_hash ON library_files(content_hash);
CREATE INDEX IF NOT EXISTS idx_library_files_artist_norm ON library_files(artist_norm);
CREATE INDEX IF NOT EXISTS idx_library_files_active ON library_files(is_active);

-- One row per vetting run, immutable after insert
CREATE TABLE IF NOT EXISTS vetting_sessions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  session_key TEXT UNIQUE NOT NULL,
  import_folder TEXT NOT NULL,
  scanned_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  file_count INTEGER NOT NULL DEFAULT 0,
  new_count INTEGER NOT NULL DEFAULT 0,
  duplicate_count INTEGER NOT NULL DEFAULT 0,
  uncertain_count INTEGER NOT NULL DEFAULT 0,
  error_count INTEGER NOT NULL DEFAULT 0,
  threshold REAL NOT NULL DEFAULT 0,
  duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_vetting_sessions_scanned_at ON vetting_sessions(scanned_at);
`

// Schema v2 - Composite indexes for the matcher's active-only lookups
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_library_files_active_metadata_hash ON library_files(is_active, metadata_hash);
CREATE INDEX IF NOT EXISTS idx_library_files_active_content_hash ON library_files(is_active, content_hash);
CREATE INDEX IF NOT EXISTS idx_library_files_active_artist_norm ON library_files(is_active, artist_norm);
`
