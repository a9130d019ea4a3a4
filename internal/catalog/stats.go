package catalog

import (
	"database/sql"
	"fmt"
	"time"
)

// Stats aggregates catalog-wide statistics. All fields are safe on an
// empty catalog: zeros, an empty format map and a zero LastIndexedAt.
type Stats struct {
	TotalFiles    int
	ActiveFiles   int
	InactiveFiles int
	TotalBytes    int64 // active files only
	ByFormat      map[string]int
	UniqueArtists int
	UniqueAlbums  int
	LastIndexedAt time.Time
	Sessions      int
}

// Stats computes the aggregate statistics snapshot
func (c *Catalog) Stats() (*Stats, error) {
	st := &Stats{ByFormat: make(map[string]int)}

	err := c.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN is_active = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN is_active = 1 THEN size_bytes ELSE 0 END), 0)
		FROM library_files
	`).Scan(&st.TotalFiles, &st.ActiveFiles, &st.TotalBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to query file counts: %w", err)
	}
	st.InactiveFiles = st.TotalFiles - st.ActiveFiles

	rows, err := c.db.Query(`
		SELECT COALESCE(format, ''), COUNT(*)
		FROM library_files
		WHERE is_active = 1
		GROUP BY format
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query format counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var format string
		var count int
		if err := rows.Scan(&format, &count); err != nil {
			return nil, fmt.Errorf("failed to scan format count: %w", err)
		}
		if format == "" {
			format = "unknown"
		}
		st.ByFormat[format] += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = c.db.QueryRow(`
		SELECT COUNT(DISTINCT artist_norm)
		FROM library_files
		WHERE is_active = 1 AND COALESCE(artist_norm, '') <> ''
	`).Scan(&st.UniqueArtists)
	if err != nil {
		return nil, fmt.Errorf("failed to count artists: %w", err)
	}

	err = c.db.QueryRow(`
		SELECT COUNT(DISTINCT lower(album))
		FROM library_files
		WHERE is_active = 1 AND COALESCE(album, '') <> ''
	`).Scan(&st.UniqueAlbums)
	if err != nil {
		return nil, fmt.Errorf("failed to count albums: %w", err)
	}

	// MAX() would strip the column's DATETIME affinity, so take the top
	// row instead and let the driver hand back a time.Time
	err = c.db.QueryRow(`
		SELECT indexed_at FROM library_files
		ORDER BY indexed_at DESC LIMIT 1
	`).Scan(&st.LastIndexedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query last indexed time: %w", err)
	}

	err = c.db.QueryRow(`SELECT COUNT(*) FROM vetting_sessions`).Scan(&st.Sessions)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	return st, nil
}
