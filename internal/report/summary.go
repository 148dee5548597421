package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/deadstream/internal/store"
)

// topVenueLimit and topRatedLimit bound the detail sections
const (
	topVenueLimit = 15
	topRatedLimit = 20
)

// CollectionSummary describes the catalog held in one database
type CollectionSummary struct {
	GeneratedAt time.Time

	// Catalog statistics
	TotalShows int
	FirstDate  string
	LastDate   string
	Years      []store.YearCount
	TopVenues  []store.VenueCount
	TopRated   []*store.Show
	Sources    map[string]int
	Ratings    map[int]int

	// Metadata
	DatabasePath string
	EventLogPath string
	RunID        string
}

// GenerateSummary builds a collection summary from the shows database
func GenerateSummary(db *store.Store) (*CollectionSummary, error) {
	summary := &CollectionSummary{
		GeneratedAt: time.Now(),
	}

	total, err := db.CountShows()
	if err != nil {
		return nil, fmt.Errorf("failed to count shows: %w", err)
	}
	summary.TotalShows = total

	first, last, err := db.DateRange()
	if err != nil {
		return nil, err
	}
	summary.FirstDate = first
	summary.LastDate = last

	if summary.Years, err = db.CountByYear(); err != nil {
		return nil, err
	}
	if summary.TopVenues, err = db.TopVenues(topVenueLimit); err != nil {
		return nil, err
	}
	if summary.TopRated, err = db.TopRated(topRatedLimit, 5); err != nil {
		return nil, err
	}
	if summary.Sources, err = db.SourceDistribution(); err != nil {
		return nil, err
	}
	if summary.Ratings, err = db.RatingHistogram(); err != nil {
		return nil, err
	}

	return summary, nil
}

// WriteMarkdownReport writes the summary as a Markdown document
func WriteMarkdownReport(summary *CollectionSummary, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder

	md.WriteString("# DeadStream - Collection Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", summary.GeneratedAt.Format("2006-01-02 15:04:05")))

	if summary.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", summary.DatabasePath))
	}
	if summary.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", summary.EventLogPath))
	}
	if summary.RunID != "" {
		md.WriteString(fmt.Sprintf("**Run:** `%s`\n\n", summary.RunID))
	}

	md.WriteString("---\n\n")

	// Overview
	md.WriteString("## 📊 Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Recordings | %d |\n", summary.TotalShows))
	if summary.FirstDate != "" {
		md.WriteString(fmt.Sprintf("| First Show | %s |\n", summary.FirstDate))
		md.WriteString(fmt.Sprintf("| Last Show | %s |\n", summary.LastDate))
	}
	md.WriteString("\n")

	// Per-year breakdown
	if len(summary.Years) > 0 {
		md.WriteString("## 📅 Recordings by Year\n\n")
		md.WriteString("| Year | Recordings |\n")
		md.WriteString("|------|------------|\n")
		for _, yc := range summary.Years {
			md.WriteString(fmt.Sprintf("| %s | %d |\n", yc.Year, yc.Count))
		}
		md.WriteString("\n")
	}

	// Venues
	if len(summary.TopVenues) > 0 {
		md.WriteString("## 🏟 Most-Recorded Venues\n\n")
		md.WriteString("| Venue | Recordings |\n")
		md.WriteString("|-------|------------|\n")
		for _, vc := range summary.TopVenues {
			md.WriteString(fmt.Sprintf("| %s | %d |\n", vc.Venue, vc.Count))
		}
		md.WriteString("\n")
	}

	// Source types
	if len(summary.Sources) > 0 {
		md.WriteString("## 🎛 Source Types\n\n")
		md.WriteString("| Source | Recordings |\n")
		md.WriteString("|--------|------------|\n")
		for _, source := range []string{"soundboard", "matrix", "audience", "unknown"} {
			if count, ok := summary.Sources[source]; ok {
				md.WriteString(fmt.Sprintf("| %s | %d |\n", source, count))
			}
		}
		md.WriteString("\n")
	}

	// Rating histogram
	if len(summary.Ratings) > 0 {
		md.WriteString("## ⭐ Rating Distribution\n\n")
		md.WriteString("| Stars | Recordings |\n")
		md.WriteString("|-------|------------|\n")
		for stars := 5; stars >= 0; stars-- {
			if count, ok := summary.Ratings[stars]; ok {
				md.WriteString(fmt.Sprintf("| %d | %d |\n", stars, count))
			}
		}
		md.WriteString("\n")
	}

	// Top rated shows
	if len(summary.TopRated) > 0 {
		md.WriteString("## 🏆 Top Rated\n\n")
		md.WriteString("| Date | Venue | Rating | Reviews | Identifier |\n")
		md.WriteString("|------|-------|--------|---------|------------|\n")
		for _, show := range summary.TopRated {
			md.WriteString(fmt.Sprintf("| %s | %s | %.2f | %d | `%s` |\n",
				show.Date, show.Venue, show.AvgRating, show.NumReviews, show.Identifier))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by [dsc](https://github.com/franz/deadstream)*\n")

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}
