package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/deadstream/internal/store"
)

func seededStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "summary-test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	shows := []*store.Show{
		{
			Identifier: "gd1977-05-08.sbd.hicks", Date: "1977-05-08",
			Venue: "Barton Hall", City: "Ithaca", State: "NY",
			AvgRating: 4.9, NumReviews: 312, SourceType: "soundboard",
		},
		{
			Identifier: "gd1977-05-08.aud.wagner", Date: "1977-05-08",
			Venue: "Barton Hall", City: "Ithaca", State: "NY",
			AvgRating: 4.1, NumReviews: 18, SourceType: "audience",
		},
		{
			Identifier: "gd1972-05-03.sbd.unknown", Date: "1972-05-03",
			Venue: "Olympia Theatre", City: "Paris", State: "",
			AvgRating: 4.6, NumReviews: 40, SourceType: "soundboard",
		},
		{
			Identifier: "gd1969-11-08.aud.vernon", Date: "1969-11-08",
			Venue: "Fillmore Auditorium", City: "San Francisco", State: "CA",
			AvgRating: 0, NumReviews: 0, SourceType: "audience",
		},
	}

	for _, show := range shows {
		if _, err := db.InsertShow(show); err != nil {
			t.Fatalf("failed to seed show %s: %v", show.Identifier, err)
		}
	}

	return db
}

func TestGenerateSummary(t *testing.T) {
	db := seededStore(t)

	summary, err := GenerateSummary(db)
	if err != nil {
		t.Fatalf("GenerateSummary failed: %v", err)
	}

	if summary.TotalShows != 4 {
		t.Errorf("total = %d, expected 4", summary.TotalShows)
	}
	if summary.FirstDate != "1969-11-08" || summary.LastDate != "1977-05-08" {
		t.Errorf("date range = %s .. %s", summary.FirstDate, summary.LastDate)
	}

	if len(summary.Years) != 3 {
		t.Fatalf("got %d year buckets, expected 3", len(summary.Years))
	}
	if summary.Years[0].Year != "1969" || summary.Years[0].Count != 1 {
		t.Errorf("first year bucket = %+v", summary.Years[0])
	}
	if summary.Years[2].Year != "1977" || summary.Years[2].Count != 2 {
		t.Errorf("last year bucket = %+v", summary.Years[2])
	}

	if len(summary.TopVenues) == 0 || summary.TopVenues[0].Venue != "Barton Hall" {
		t.Errorf("top venue = %+v, expected Barton Hall", summary.TopVenues)
	}

	if summary.Sources["soundboard"] != 2 || summary.Sources["audience"] != 2 {
		t.Errorf("source distribution = %v", summary.Sources)
	}

	// Three rated shows: 4.9 and 4.6 land in the 4-star bucket with 4.1
	if summary.Ratings[4] != 3 {
		t.Errorf("rating histogram = %v, expected three 4-star entries", summary.Ratings)
	}

	if len(summary.TopRated) == 0 || summary.TopRated[0].Identifier != "gd1977-05-08.sbd.hicks" {
		t.Errorf("top rated = %+v", summary.TopRated)
	}
}

func TestGenerateSummary_EmptyDatabase(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	summary, err := GenerateSummary(db)
	if err != nil {
		t.Fatalf("GenerateSummary failed on empty database: %v", err)
	}

	if summary.TotalShows != 0 {
		t.Errorf("total = %d, expected 0", summary.TotalShows)
	}
	if summary.FirstDate != "" || summary.LastDate != "" {
		t.Errorf("empty catalog should have no date range: %s .. %s",
			summary.FirstDate, summary.LastDate)
	}
}

func TestWriteMarkdownReport(t *testing.T) {
	db := seededStore(t)

	summary, err := GenerateSummary(db)
	if err != nil {
		t.Fatalf("GenerateSummary failed: %v", err)
	}
	summary.DatabasePath = "/tmp/dsc-shows.db"
	summary.RunID = "9f67a3ce-run-id"

	outputPath := filepath.Join(t.TempDir(), "reports", "summary.md")
	if err := WriteMarkdownReport(summary, outputPath); err != nil {
		t.Fatalf("WriteMarkdownReport failed: %v", err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	md := string(data)

	for _, expected := range []string{
		"# DeadStream - Collection Report",
		"| Recordings | 4 |",
		"| First Show | 1969-11-08 |",
		"| 1977 | 2 |",
		"| Barton Hall | 2 |",
		"| soundboard | 2 |",
		"gd1977-05-08.sbd.hicks",
		"`/tmp/dsc-shows.db`",
		"9f67a3ce-run-id",
	} {
		if !strings.Contains(md, expected) {
			t.Errorf("report missing %q", expected)
		}
	}
}
