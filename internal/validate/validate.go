package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/franz/deadstream/internal/store"
)

// duplicateReportLimit caps the per-date findings so a fully populated
// catalog (where nearly every date has several recordings) stays readable
const duplicateReportLimit = 25

// Severity grades a finding
type Severity int

const (
	SeverityOK Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "ok"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Finding is the result of one validation check
type Finding struct {
	Check    string
	Severity Severity
	Message  string
	Count    int
}

// expectedIndexes are the indexes the schema migration creates. Their
// absence usually means the database predates a migration or was built
// by hand.
var expectedIndexes = []string{
	"idx_shows_date",
	"idx_shows_venue",
	"idx_shows_rating",
	"idx_shows_year",
	"idx_shows_state",
	"idx_shows_date_rating",
}

// Quick runs the fast structural checks against the show catalog and
// returns one finding per check. An error return means a check could not
// run at all, not that the data is bad.
func Quick(db *store.Store) ([]Finding, error) {
	findings := make([]Finding, 0, 8)

	total, err := db.CountShows()
	if err != nil {
		return nil, fmt.Errorf("failed to count shows: %w", err)
	}
	if total == 0 {
		findings = append(findings, Finding{
			Check:    "row count",
			Severity: SeverityWarning,
			Message:  "catalog is empty, run populate first",
		})
	} else {
		findings = append(findings, Finding{
			Check:    "row count",
			Severity: SeverityOK,
			Message:  fmt.Sprintf("catalog holds %d shows", total),
			Count:    total,
		})
	}

	// GLOB is anchored at both ends, so this is the whole-string
	// YYYY-MM-DD shape check
	badDates, err := countWhere(db,
		`date IS NULL OR date NOT GLOB '[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]'`)
	if err != nil {
		return nil, fmt.Errorf("date check failed: %w", err)
	}
	findings = append(findings, boolFinding("date format", badDates, SeverityError,
		"all dates are YYYY-MM-DD",
		fmt.Sprintf("%d shows have a NULL or malformed date", badDates)))

	badRatings, err := countWhere(db, `avg_rating < 0 OR avg_rating > 5`)
	if err != nil {
		return nil, fmt.Errorf("rating check failed: %w", err)
	}
	findings = append(findings, boolFinding("rating range", badRatings, SeverityError,
		"all ratings are within 0-5",
		fmt.Sprintf("%d shows have a rating outside 0-5", badRatings)))

	badReviews, err := countWhere(db, `num_reviews < 0`)
	if err != nil {
		return nil, fmt.Errorf("review count check failed: %w", err)
	}
	findings = append(findings, boolFinding("review counts", badReviews, SeverityError,
		"no negative review counts",
		fmt.Sprintf("%d shows have a negative review count", badReviews)))

	// Only well-formed dates, malformed ones are already reported above
	futureDates, err := countWhere(db,
		`date GLOB '[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]' AND date > date('now')`)
	if err != nil {
		return nil, fmt.Errorf("future date check failed: %w", err)
	}
	findings = append(findings, boolFinding("future dates", futureDates, SeverityWarning,
		"no shows dated in the future",
		fmt.Sprintf("%d shows are dated in the future", futureDates)))

	missing, err := missingIndexes(db)
	if err != nil {
		return nil, fmt.Errorf("index check failed: %w", err)
	}
	if len(missing) == 0 {
		findings = append(findings, Finding{
			Check:    "indexes",
			Severity: SeverityOK,
			Message:  fmt.Sprintf("all %d expected indexes present", len(expectedIndexes)),
		})
	} else {
		findings = append(findings, Finding{
			Check:    "indexes",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("missing indexes: %s", strings.Join(missing, ", ")),
			Count:    len(missing),
		})
	}

	if err := db.CheckIntegrity(); err != nil {
		findings = append(findings, Finding{
			Check:    "integrity",
			Severity: SeverityError,
			Message:  err.Error(),
			Count:    1,
		})
	} else {
		findings = append(findings, Finding{
			Check:    "integrity",
			Severity: SeverityOK,
			Message:  "integrity check passed",
		})
	}

	return findings, nil
}

// Duplicates reports dates carrying more than one recording. Multiple
// recordings of the same concert are normal (tapers, soundboards and
// remasters all coexist), so everything here is informational.
func Duplicates(db *store.Store) ([]Finding, error) {
	rows, err := db.DB().Query(`
		SELECT date, COALESCE(NULLIF(source_type, ''), 'unknown') AS src, COUNT(*)
		FROM shows
		WHERE date IN (SELECT date FROM shows GROUP BY date HAVING COUNT(*) > 1)
		GROUP BY date, src
		ORDER BY date, src
	`)
	if err != nil {
		return nil, fmt.Errorf("duplicate query failed: %w", err)
	}
	defer rows.Close()

	type dateGroup struct {
		total   int
		sources []string
	}
	groups := make(map[string]*dateGroup)
	dates := make([]string, 0)

	for rows.Next() {
		var date, src string
		var n int
		if err := rows.Scan(&date, &src, &n); err != nil {
			return nil, fmt.Errorf("duplicate scan failed: %w", err)
		}
		g, ok := groups[date]
		if !ok {
			g = &dateGroup{}
			groups[date] = g
			dates = append(dates, date)
		}
		g.total += n
		g.sources = append(g.sources, fmt.Sprintf("%s %d", src, n))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duplicate query failed: %w", err)
	}

	totalRows := 0
	for _, g := range groups {
		totalRows += g.total
	}

	findings := []Finding{{
		Check:    "duplicates",
		Severity: SeverityInfo,
		Message: fmt.Sprintf("%d dates have multiple recordings (%d rows total)",
			len(dates), totalRows),
		Count: len(dates),
	}}

	// Busiest dates first
	sort.SliceStable(dates, func(i, j int) bool {
		if groups[dates[i]].total != groups[dates[j]].total {
			return groups[dates[i]].total > groups[dates[j]].total
		}
		return dates[i] < dates[j]
	})

	limit := len(dates)
	if limit > duplicateReportLimit {
		limit = duplicateReportLimit
	}
	for _, date := range dates[:limit] {
		g := groups[date]
		findings = append(findings, Finding{
			Check:    "duplicates",
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("%s: %d recordings (%s)", date, g.total, strings.Join(g.sources, ", ")),
			Count:    g.total,
		})
	}
	if len(dates) > limit {
		findings = append(findings, Finding{
			Check:    "duplicates",
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("... and %d more dates", len(dates)-limit),
		})
	}

	return findings, nil
}

func countWhere(db *store.Store, cond string) (int, error) {
	var n int
	err := db.DB().QueryRow("SELECT COUNT(*) FROM shows WHERE " + cond).Scan(&n)
	return n, err
}

// boolFinding builds the ok-or-problem finding for a count-based check
func boolFinding(check string, count int, problemSeverity Severity, okMsg, problemMsg string) Finding {
	if count == 0 {
		return Finding{Check: check, Severity: SeverityOK, Message: okMsg}
	}
	return Finding{Check: check, Severity: problemSeverity, Message: problemMsg, Count: count}
}

func missingIndexes(db *store.Store) ([]string, error) {
	rows, err := db.DB().Query(`
		SELECT name FROM sqlite_master
		WHERE type = 'index' AND tbl_name = 'shows'
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, name := range expectedIndexes {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// Worst returns the highest severity across a set of findings
func Worst(findings []Finding) Severity {
	worst := SeverityOK
	for _, f := range findings {
		if f.Severity > worst {
			worst = f.Severity
		}
	}
	return worst
}
