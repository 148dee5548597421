package meta

import (
	"regexp"
	"strings"
	"time"

	"github.com/franz/deadstream/internal/archive"
	"github.com/franz/deadstream/internal/store"
)

// Item titles follow the pattern "Grateful Dead Live at <venue> on <date>"
var titleVenuePattern = regexp.MustCompile(`^Grateful Dead Live at (.+) on \d{4}-\d{2}-\d{2}$`)

// ShowFromDoc converts one search result into a show row. Fields the
// document lacks fall back to what the identifier itself encodes; a
// document without any usable date yields nil.
func ShowFromDoc(doc archive.SearchDoc) *store.Show {
	identifier := strings.TrimSpace(doc.Identifier.String())
	if identifier == "" {
		return nil
	}

	parsed := ParseIdentifier(identifier)

	date := NormalizeDate(doc.Date.String())
	if date == "" {
		date = parsed.Date
	}
	if date == "" {
		return nil
	}

	venue := NormalizeVenue(doc.Venue.String())
	if venue == "" {
		venue = venueFromTitle(doc.Title.String())
	}

	city, state := ParseCoverage(doc.Coverage.String())

	source := DetectSourceType(doc.Source.String())
	if source == "" {
		source = parsed.SourceType
	}
	if source == "" {
		source = "unknown"
	}

	return &store.Show{
		Identifier:  identifier,
		Date:        date,
		Venue:       venue,
		City:        city,
		State:       state,
		AvgRating:   doc.AvgRating.Float(),
		NumReviews:  doc.NumReviews.Int(),
		SourceType:  source,
		Taper:       NormalizeTaper(parsed.Taper),
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
	}
}

// venueFromTitle recovers the venue from a standard-form item title
func venueFromTitle(title string) string {
	m := titleVenuePattern.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return ""
	}
	return NormalizeVenue(m[1])
}
