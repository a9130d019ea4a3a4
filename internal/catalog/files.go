package catalog

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/franz/music-librarian/internal/hashing"
	"github.com/franz/music-librarian/internal/meta"
)

// fileColumns is the column list every file query selects, in scanFile order
const fileColumns = `id, file_path, filename,
	COALESCE(artist, ''), COALESCE(artist_norm, ''), COALESCE(title, ''), COALESCE(album, ''),
	COALESCE(year, 0), COALESCE(duration_sec, 0), COALESCE(format, ''),
	COALESCE(bitrate_kbps, 0), vbr, COALESCE(sample_rate, 0),
	COALESCE(size_bytes, 0), COALESCE(mtime_unix, 0),
	COALESCE(metadata_hash, ''), COALESCE(content_hash, ''),
	is_active, indexed_at, last_verified`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(r rowScanner) (*File, error) {
	var f File
	err := r.Scan(
		&f.ID, &f.Path, &f.Filename,
		&f.Artist, &f.ArtistNorm, &f.Title, &f.Album,
		&f.Year, &f.DurationSec, &f.Format,
		&f.BitrateKbps, &f.Vbr, &f.SampleRate,
		&f.SizeBytes, &f.MtimeUnix,
		&f.MetadataHash, &f.ContentHash,
		&f.Active, &f.IndexedAt, &f.LastVerified,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *Catalog) queryFiles(query string, args ...interface{}) ([]*File, error) {
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// likePrefix builds a LIKE pattern matching paths under dir, escaping
// any wildcard characters in dir itself
func likePrefix(dir string) string {
	dir = strings.TrimSuffix(dir, "/")
	esc := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(dir)
	return esc + "/%"
}

// UpsertFile inserts or refreshes the row for f.Path and returns the row
// id plus what happened. A row whose size, mtime and hashes all still
// match is only touched (last_verified), so repeat indexing of an
// unchanged tree is idempotent. The artist_norm column is derived here
// from f.Artist so that lookups stay consistent no matter who writes.
func (c *Catalog) UpsertFile(f *File) (int64, UpsertOutcome, error) {
	f.ArtistNorm = meta.NormalizeArtist(f.Artist)

	var id int64
	outcome := UpsertUnchanged

	err := c.Transaction(func(tx *sql.Tx) error {
		var existingID, size, mtime int64
		var metaHash, contentHash string
		var active bool
		err := tx.QueryRow(`
			SELECT id, COALESCE(size_bytes, 0), COALESCE(mtime_unix, 0),
			       COALESCE(metadata_hash, ''), COALESCE(content_hash, ''), is_active
			FROM library_files WHERE file_path = ?
		`, f.Path).Scan(&existingID, &size, &mtime, &metaHash, &contentHash, &active)

		if err == sql.ErrNoRows {
			res, err := tx.Exec(`
				INSERT INTO library_files (
					file_path, filename, artist, artist_norm, title, album, year,
					duration_sec, format, bitrate_kbps, vbr, sample_rate,
					size_bytes, mtime_unix, metadata_hash, content_hash, is_active
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
			`, f.Path, f.Filename, f.Artist, f.ArtistNorm, f.Title, f.Album, f.Year,
				f.DurationSec, f.Format, f.BitrateKbps, f.Vbr, f.SampleRate,
				f.SizeBytes, f.MtimeUnix, f.MetadataHash, f.ContentHash)
			if err != nil {
				return fmt.Errorf("failed to insert file: %w", err)
			}
			id, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get insert id: %w", err)
			}
			outcome = UpsertInserted
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up file: %w", err)
		}

		id = existingID
		if active && size == f.SizeBytes && mtime == f.MtimeUnix &&
			metaHash == f.MetadataHash && contentHash == f.ContentHash {
			if _, err := tx.Exec(`UPDATE library_files SET last_verified = datetime('now') WHERE id = ?`, id); err != nil {
				return fmt.Errorf("failed to touch file: %w", err)
			}
			outcome = UpsertUnchanged
			return nil
		}

		_, err = tx.Exec(`
			UPDATE library_files SET
				filename = ?, artist = ?, artist_norm = ?, title = ?, album = ?, year = ?,
				duration_sec = ?, format = ?, bitrate_kbps = ?, vbr = ?, sample_rate = ?,
				size_bytes = ?, mtime_unix = ?, metadata_hash = ?, content_hash = ?,
				is_active = 1, indexed_at = datetime('now'), last_verified = datetime('now')
			WHERE id = ?
		`, f.Filename, f.Artist, f.ArtistNorm, f.Title, f.Album, f.Year,
			f.DurationSec, f.Format, f.BitrateKbps, f.Vbr, f.SampleRate,
			f.SizeBytes, f.MtimeUnix, f.MetadataHash, f.ContentHash, id)
		if err != nil {
			return fmt.Errorf("failed to update file: %w", err)
		}
		outcome = UpsertUpdated
		return nil
	})
	if err != nil {
		return 0, outcome, err
	}

	f.ID = id
	return id, outcome, nil
}

// GetFileByID returns a file by its row id, or nil if not found
func (c *Catalog) GetFileByID(id int64) (*File, error) {
	f, err := scanFile(c.db.QueryRow(`SELECT `+fileColumns+` FROM library_files WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

// GetFileByPath returns a file by its path, or nil if not found
func (c *Catalog) GetFileByPath(path string) (*File, error) {
	f, err := scanFile(c.db.QueryRow(`SELECT `+fileColumns+` FROM library_files WHERE file_path = ?`, path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

// FindByMetadataHash returns files with an exact metadata hash match,
// most recently verified first. The untagged sentinel matches nothing:
// files must never pair up on the absence of tags.
func (c *Catalog) FindByMetadataHash(hash string, activeOnly bool) ([]*File, error) {
	if hash == "" || hash == hashing.NoMetadata {
		return nil, nil
	}
	query := `SELECT ` + fileColumns + ` FROM library_files WHERE metadata_hash = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY last_verified DESC, file_path`
	return c.queryFiles(query, hash)
}

// FindByContentHash returns files with an exact content hash match,
// most recently verified first
func (c *Catalog) FindByContentHash(hash string, activeOnly bool) ([]*File, error) {
	if hash == "" {
		return nil, nil
	}
	query := `SELECT ` + fileColumns + ` FROM library_files WHERE content_hash = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY last_verified DESC, file_path`
	return c.queryFiles(query, hash)
}

// FindCandidatesByArtist returns files whose artist matches ignoring
// case and diacritics, via the stored artist_norm column
func (c *Catalog) FindCandidatesByArtist(artist string, activeOnly bool) ([]*File, error) {
	norm := meta.NormalizeArtist(artist)
	if norm == "" {
		return nil, nil
	}
	query := `SELECT ` + fileColumns + ` FROM library_files WHERE artist_norm = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY last_verified DESC, file_path`
	return c.queryFiles(query, norm)
}

// ActiveFiles returns every active file ordered by path
func (c *Catalog) ActiveFiles() ([]*File, error) {
	return c.queryFiles(`SELECT ` + fileColumns + ` FROM library_files WHERE is_active = 1 ORDER BY file_path`)
}

// ActiveFilesUnder returns active files whose path is dir itself or
// anything below it
func (c *Catalog) ActiveFilesUnder(dir string) ([]*File, error) {
	dir = strings.TrimSuffix(dir, "/")
	return c.queryFiles(`
		SELECT `+fileColumns+` FROM library_files
		WHERE is_active = 1 AND (file_path = ? OR file_path LIKE ? ESCAPE '\')
		ORDER BY file_path
	`, dir, likePrefix(dir))
}

// InactiveFilesUnder returns inactive files whose path is dir itself or
// anything below it
func (c *Catalog) InactiveFilesUnder(dir string) ([]*File, error) {
	dir = strings.TrimSuffix(dir, "/")
	return c.queryFiles(`
		SELECT `+fileColumns+` FROM library_files
		WHERE is_active = 0 AND (file_path = ? OR file_path LIKE ? ESCAPE '\')
		ORDER BY file_path
	`, dir, likePrefix(dir))
}

// MarkInactive soft-deletes a file. The row survives so history and
// hashes remain queryable; only PurgeInactive removes it.
func (c *Catalog) MarkInactive(id int64) error {
	_, err := c.db.Exec(`UPDATE library_files SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark file inactive: %w", err)
	}
	return nil
}

// MarkActive restores a soft-deleted file
func (c *Catalog) MarkActive(id int64) error {
	_, err := c.db.Exec(`UPDATE library_files SET is_active = 1, last_verified = datetime('now') WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark file active: %w", err)
	}
	return nil
}

// TouchVerified updates last_verified without touching anything else
func (c *Catalog) TouchVerified(id int64) error {
	_, err := c.db.Exec(`UPDATE library_files SET last_verified = datetime('now') WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to touch file: %w", err)
	}
	return nil
}

// PurgeInactive physically deletes all inactive rows and returns how
// many were removed. No standard workflow calls this; it exists for
// explicit catalog maintenance only.
func (c *Catalog) PurgeInactive() (int64, error) {
	res, err := c.db.Exec(`DELETE FROM library_files WHERE is_active = 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge inactive files: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged files: %w", err)
	}
	return n, nil
}

// CountFiles returns the number of files, optionally active only
func (c *Catalog) CountFiles(activeOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM library_files`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	var n int
	if err := c.db.QueryRow(query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}
