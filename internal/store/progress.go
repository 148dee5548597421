package store

import (
	"database/sql"
	"time"
)

// PopulateProgress tracks the state of a population run for resumability
type PopulateProgress struct {
	LastPage     int
	TotalPages   int
	RowsInserted int
	Query        string
	UpdatedAt    time.Time
}

// GetPopulateProgress retrieves the current population progress.
// Returns nil when no run is in progress.
func (s *Store) GetPopulateProgress() (*PopulateProgress, error) {
	var p PopulateProgress
	var query sql.NullString
	var updatedAt sql.NullString

	err := s.db.QueryRow(`
		SELECT last_page, total_pages, rows_inserted, query, updated_at
		FROM populate_progress
		WHERE id = 1
	`).Scan(&p.LastPage, &p.TotalPages, &p.RowsInserted, &query, &updatedAt)

	if err == sql.ErrNoRows {
		// No progress tracked yet
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	if query.Valid {
		p.Query = query.String
	}
	if updatedAt.Valid {
		p.UpdatedAt, _ = time.Parse("2006-01-02 15:04:05", updatedAt.String)
	}

	return &p, nil
}

// SavePopulateProgress records the page a run has reached
func (s *Store) SavePopulateProgress(lastPage, totalPages, rowsInserted int, query string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO populate_progress
		(id, last_page, total_pages, rows_inserted, query, updated_at)
		VALUES (1, ?, ?, ?, ?, datetime('now'))
	`, lastPage, totalPages, rowsInserted, query)
	return err
}

// ClearPopulateProgress removes progress tracking (called when a run completes)
func (s *Store) ClearPopulateProgress() error {
	_, err := s.db.Exec(`DELETE FROM populate_progress WHERE id = 1`)
	return err
}

// HasInProgressPopulate checks if there is an interrupted population run
func (s *Store) HasInProgressPopulate() (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM populate_progress WHERE id = 1`).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
