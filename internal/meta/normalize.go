package meta

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	isoDatePattern   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	slashDatePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2,4})$`)
)

// NormalizeDate reduces the date shapes seen in archive responses to
// YYYY-MM-DD. Returns an empty string when nothing parseable remains.
// Observed shapes: "1977-05-08", "1977-05-08T00:00:00Z", "5/8/1977".
func NormalizeDate(date string) string {
	date = strings.TrimSpace(date)
	if date == "" {
		return ""
	}

	if matches := isoDatePattern.FindStringSubmatch(date); matches != nil {
		return fmt.Sprintf("%s-%s-%s", matches[1], matches[2], matches[3])
	}

	if matches := slashDatePattern.FindStringSubmatch(date); matches != nil {
		month := matches[1]
		day := matches[2]
		year := expandYear(matches[3])
		if year == 0 {
			return ""
		}
		return fmt.Sprintf("%04d-%s-%s", year, pad2(month), pad2(day))
	}

	return ""
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// NormalizeVenue cleans a venue name for storage and comparison
func NormalizeVenue(venue string) string {
	return CleanString(venue)
}

// NormalizeTaper cleans a taper name
func NormalizeTaper(taper string) string {
	taper = CleanString(taper)

	// Strip common prefixes from taper credits
	lower := strings.ToLower(taper)
	for _, prefix := range []string{"taped by ", "taper: ", "recorded by "} {
		if strings.HasPrefix(lower, prefix) {
			taper = strings.TrimSpace(taper[len(prefix):])
			break
		}
	}

	return taper
}

// DetectSourceType classifies a free-text source description.
// Returns "soundboard", "matrix", "audience" or empty when unclassifiable.
func DetectSourceType(source string) string {
	if source == "" {
		return ""
	}

	lower := strings.ToLower(source)

	switch {
	case strings.Contains(lower, "matrix") || strings.Contains(lower, "mtx"):
		// Matrix first: matrix sources usually mention both SBD and AUD feeds
		return "matrix"
	case strings.Contains(lower, "soundboard") || strings.Contains(lower, "sbd"):
		return "soundboard"
	case strings.Contains(lower, "audience") || strings.Contains(lower, "aud"):
		return "audience"
	}

	return ""
}

// CleanString performs basic string cleaning (Unicode, trim, collapse)
func CleanString(s string) string {
	if s == "" {
		return ""
	}

	// Unicode NFC normalization
	s = norm.NFC.String(s)

	// Trim whitespace
	s = strings.TrimSpace(s)

	// Collapse whitespace
	s = collapseWhitespace(s)

	return s
}

// collapseWhitespace replaces multiple spaces with a single space
func collapseWhitespace(s string) string {
	re := regexp.MustCompile(`\s+`)
	return strings.TrimSpace(re.ReplaceAllString(s, " "))
}
