package catalog

import (
	"fmt"
)

// InsertSession records a completed vetting run and returns its row id
func (c *Catalog) InsertSession(s *Session) (int64, error) {
	res, err := c.db.Exec(`
		INSERT INTO vetting_sessions (
			session_key, import_folder, scanned_at, file_count, new_count,
			duplicate_count, uncertain_count, error_count, threshold, duration_ms
		) VALUES (?, ?, datetime('now'), ?, ?, ?, ?, ?, ?, ?)
	`, s.SessionKey, s.ImportFolder, s.FileCount, s.NewCount,
		s.DuplicateCount, s.UncertainCount, s.ErrorCount, s.Threshold, s.DurationMs)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get session id: %w", err)
	}
	s.ID = id
	return id, nil
}

// RecentSessions returns the most recent vetting sessions, newest first
func (c *Catalog) RecentSessions(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := c.db.Query(`
		SELECT id, session_key, import_folder, scanned_at, file_count, new_count,
		       duplicate_count, uncertain_count, error_count, threshold, duration_ms
		FROM vetting_sessions
		ORDER BY scanned_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var s Session
		err := rows.Scan(&s.ID, &s.SessionKey, &s.ImportFolder, &s.ScannedAt,
			&s.FileCount, &s.NewCount, &s.DuplicateCount, &s.UncertainCount,
			&s.ErrorCount, &s.Threshold, &s.DurationMs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}
