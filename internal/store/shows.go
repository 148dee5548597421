package store

import (
	"database/sql"
	"fmt"
)

const showColumns = `
	identifier, date, COALESCE(venue, ''), COALESCE(city, ''), COALESCE(state, ''),
	COALESCE(avg_rating, 0), COALESCE(num_reviews, 0),
	COALESCE(source_type, ''), COALESCE(taper, ''), COALESCE(last_updated, '')`

// InsertShow inserts a show if absent. Existing rows are left untouched.
// Returns true if a new row was inserted.
func (s *Store) InsertShow(show *Show) (bool, error) {
	result, err := s.db.Exec(`
		INSERT OR IGNORE INTO shows
			(identifier, date, venue, city, state, avg_rating, num_reviews,
			 source_type, taper, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, show.Identifier, show.Date, show.Venue, show.City, show.State,
		show.AvgRating, show.NumReviews, show.SourceType, show.Taper,
		show.LastUpdated)

	if err != nil {
		return false, fmt.Errorf("failed to insert show: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	return affected > 0, nil
}

// InsertShows inserts a batch of shows in a single transaction.
// Returns the number of rows actually inserted (duplicates are ignored).
func (s *Store) InsertShows(shows []*Show) (int, error) {
	inserted := 0

	err := s.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR IGNORE INTO shows
				(identifier, date, venue, city, state, avg_rating, num_reviews,
				 source_type, taper, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, show := range shows {
			result, err := stmt.Exec(
				show.Identifier, show.Date, show.Venue, show.City, show.State,
				show.AvgRating, show.NumReviews, show.SourceType, show.Taper,
				show.LastUpdated)
			if err != nil {
				return fmt.Errorf("failed to insert %s: %w", show.Identifier, err)
			}
			if affected, err := result.RowsAffected(); err == nil && affected > 0 {
				inserted++
			}
		}
		return nil
	})

	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// UpsertShow inserts or refreshes a show record
func (s *Store) UpsertShow(show *Show) error {
	_, err := s.db.Exec(`
		INSERT INTO shows
			(identifier, date, venue, city, state, avg_rating, num_reviews,
			 source_type, taper, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			date = excluded.date,
			venue = excluded.venue,
			city = excluded.city,
			state = excluded.state,
			avg_rating = excluded.avg_rating,
			num_reviews = excluded.num_reviews,
			source_type = excluded.source_type,
			taper = excluded.taper,
			last_updated = excluded.last_updated
	`, show.Identifier, show.Date, show.Venue, show.City, show.State,
		show.AvgRating, show.NumReviews, show.SourceType, show.Taper,
		show.LastUpdated)

	if err != nil {
		return fmt.Errorf("failed to upsert show: %w", err)
	}

	return nil
}

// GetShow retrieves a show by its identifier
func (s *Store) GetShow(identifier string) (*Show, error) {
	show := &Show{}
	err := s.db.QueryRow(`
		SELECT `+showColumns+`
		FROM shows WHERE identifier = ?
	`, identifier).Scan(
		&show.Identifier, &show.Date, &show.Venue, &show.City, &show.State,
		&show.AvgRating, &show.NumReviews, &show.SourceType, &show.Taper,
		&show.LastUpdated,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get show: %w", err)
	}

	return show, nil
}

// ShowsByDate retrieves all recordings of shows on an exact date (YYYY-MM-DD)
func (s *Store) ShowsByDate(date string) ([]*Show, error) {
	return s.queryShows(`
		SELECT `+showColumns+`
		FROM shows WHERE date = ?
		ORDER BY avg_rating DESC, identifier
	`, date)
}

// ShowsOnDate retrieves every show played on a month/day across all years
func (s *Store) ShowsOnDate(month, day int) ([]*Show, error) {
	pattern := fmt.Sprintf("%%-%02d-%02d", month, day)
	return s.queryShows(`
		SELECT `+showColumns+`
		FROM shows WHERE date LIKE ?
		ORDER BY date, avg_rating DESC
	`, pattern)
}

// ShowsByYear retrieves all shows in a year
func (s *Store) ShowsByYear(year int) ([]*Show, error) {
	return s.queryShows(`
		SELECT `+showColumns+`
		FROM shows WHERE substr(date,1,4) = ?
		ORDER BY date, identifier
	`, fmt.Sprintf("%04d", year))
}

// ShowsByVenue retrieves shows whose venue contains the given text
func (s *Store) ShowsByVenue(venue string) ([]*Show, error) {
	return s.queryShows(`
		SELECT `+showColumns+`
		FROM shows WHERE venue LIKE ? COLLATE NOCASE
		ORDER BY date
	`, "%"+venue+"%")
}

// ShowsByState retrieves shows in a state (two-letter code)
func (s *Store) ShowsByState(state string) ([]*Show, error) {
	return s.queryShows(`
		SELECT `+showColumns+`
		FROM shows WHERE state = ? COLLATE NOCASE
		ORDER BY date
	`, state)
}

// TopRated retrieves the highest-rated shows with at least minReviews reviews
func (s *Store) TopRated(limit, minReviews int) ([]*Show, error) {
	if limit <= 0 {
		limit = 25
	}
	return s.queryShows(`
		SELECT `+showColumns+`
		FROM shows
		WHERE num_reviews >= ?
		ORDER BY avg_rating DESC, num_reviews DESC
		LIMIT ?
	`, minReviews, limit)
}

// CountShows returns the total number of shows
func (s *Store) CountShows() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM shows").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count shows: %w", err)
	}
	return count, nil
}

// YearCount holds the number of shows recorded for one year
type YearCount struct {
	Year  string
	Count int
}

// CountByYear returns show counts grouped by year, ascending
func (s *Store) CountByYear() ([]YearCount, error) {
	rows, err := s.db.Query(`
		SELECT substr(date,1,4) AS year, COUNT(*)
		FROM shows
		GROUP BY year
		ORDER BY year
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by year: %w", err)
	}
	defer rows.Close()

	var counts []YearCount
	for rows.Next() {
		var yc YearCount
		if err := rows.Scan(&yc.Year, &yc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan year count: %w", err)
		}
		counts = append(counts, yc)
	}

	return counts, rows.Err()
}

// DateRange returns the earliest and latest show dates in the catalog
func (s *Store) DateRange() (string, string, error) {
	var min, max string
	err := s.db.QueryRow(`
		SELECT COALESCE(MIN(date), ''), COALESCE(MAX(date), '') FROM shows
	`).Scan(&min, &max)
	if err != nil {
		return "", "", fmt.Errorf("failed to get date range: %w", err)
	}
	return min, max, nil
}

// VenueCount holds the number of recordings held for one venue
type VenueCount struct {
	Venue string
	Count int
}

// TopVenues returns the most-recorded venues, descending
func (s *Store) TopVenues(limit int) ([]VenueCount, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(`
		SELECT venue, COUNT(*) AS n
		FROM shows
		WHERE venue != ''
		GROUP BY venue
		ORDER BY n DESC, venue
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to count venues: %w", err)
	}
	defer rows.Close()

	var counts []VenueCount
	for rows.Next() {
		var vc VenueCount
		if err := rows.Scan(&vc.Venue, &vc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan venue count: %w", err)
		}
		counts = append(counts, vc)
	}

	return counts, rows.Err()
}

// SourceDistribution returns recording counts grouped by source type
func (s *Store) SourceDistribution() (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT COALESCE(NULLIF(source_type, ''), 'unknown'), COUNT(*)
		FROM shows
		GROUP BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count source types: %w", err)
	}
	defer rows.Close()

	dist := make(map[string]int)
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("failed to scan source count: %w", err)
		}
		dist[source] = count
	}

	return dist, rows.Err()
}

// RatingHistogram buckets rated recordings by whole stars (0 through 5).
// Unreviewed recordings are left out.
func (s *Store) RatingHistogram() (map[int]int, error) {
	rows, err := s.db.Query(`
		SELECT CAST(avg_rating AS INTEGER), COUNT(*)
		FROM shows
		WHERE num_reviews > 0
		GROUP BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to build rating histogram: %w", err)
	}
	defer rows.Close()

	hist := make(map[int]int)
	for rows.Next() {
		var bucket, count int
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("failed to scan rating bucket: %w", err)
		}
		if bucket < 0 {
			bucket = 0
		}
		if bucket > 5 {
			bucket = 5
		}
		hist[bucket] += count
	}

	return hist, rows.Err()
}

// queryShows runs a query returning full show rows
func (s *Store) queryShows(query string, args ...interface{}) ([]*Show, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shows: %w", err)
	}
	defer rows.Close()

	var shows []*Show
	for rows.Next() {
		show := &Show{}
		err := rows.Scan(
			&show.Identifier, &show.Date, &show.Venue, &show.City, &show.State,
			&show.AvgRating, &show.NumReviews, &show.SourceType, &show.Taper,
			&show.LastUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan show: %w", err)
		}
		shows = append(shows, show)
	}

	return shows, rows.Err()
}
