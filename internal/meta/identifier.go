package meta

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// IdentifierMeta holds metadata parsed from an archive identifier
type IdentifierMeta struct {
	Date       string // YYYY-MM-DD when parseable
	SourceType string // soundboard, matrix, audience or empty
	Taper      string // taper segment hint, lowercased
	Confidence float64 // 0.0-1.0 how confident we are in the parse
}

// Identifiers follow loose community conventions, e.g.
//   gd77-05-08.sbd.hicks.4982.sbeok.shnf
//   gd1969-11-08.aud.unknown.12345.flac16
// The date segment sometimes uses two-digit years.
var identifierDatePattern = regexp.MustCompile(`^gd(\d{2}|\d{4})-(\d{2})-(\d{2})`)

// ParseIdentifier extracts date, source and taper hints from an archive
// identifier. Missing segments degrade the confidence rather than failing.
func ParseIdentifier(identifier string) *IdentifierMeta {
	m := &IdentifierMeta{
		Confidence: 0.2, // Default low confidence
	}

	id := strings.ToLower(strings.TrimSpace(identifier))
	if id == "" {
		return m
	}

	// Date segment
	if matches := identifierDatePattern.FindStringSubmatch(id); matches != nil {
		year := expandYear(matches[1])
		month, _ := strconv.Atoi(matches[2])
		day, _ := strconv.Atoi(matches[3])
		if year > 0 && month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			m.Date = fmt.Sprintf("%04d-%02d-%02d", year, month, day)
			m.Confidence = 0.6
		}
	}

	// Dotted segments after the date carry source and taper hints
	segments := strings.Split(id, ".")
	for i, seg := range segments {
		if i == 0 {
			continue // date segment handled above
		}

		switch {
		case seg == "sbd" || strings.Contains(seg, "soundboard"):
			m.SourceType = "soundboard"
			m.Confidence += 0.2
		case seg == "mtx" || strings.Contains(seg, "matrix"):
			m.SourceType = "matrix"
			m.Confidence += 0.2
		case seg == "aud" || seg == "fob" || strings.Contains(seg, "audience"):
			m.SourceType = "audience"
			m.Confidence += 0.2
		case m.SourceType != "" && m.Taper == "" && isTaperSegment(seg):
			// The segment right after the source marker is usually the taper
			m.Taper = seg
			m.Confidence += 0.1
		}
	}

	if m.Confidence > 1.0 {
		m.Confidence = 1.0
	}

	return m
}

// expandYear turns a two-digit year into a full year.
// The band was active from the mid-sixties, so 65 and up is 19xx.
func expandYear(s string) int {
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	if len(s) == 4 {
		return year
	}
	if year >= 65 {
		return 1900 + year
	}
	return 2000 + year
}

// isTaperSegment filters out catalog numbers and format markers so we
// don't mistake them for a taper name
func isTaperSegment(seg string) bool {
	if seg == "" || seg == "unknown" {
		return false
	}

	// Purely numeric segments are catalog numbers
	if _, err := strconv.Atoi(seg); err == nil {
		return false
	}

	formatMarkers := []string{
		"shnf", "flac", "flac16", "flac24", "sbeok", "sbefail",
		"mp3", "vbr", "shn", "miller-remaster", "t-flac16",
	}
	for _, marker := range formatMarkers {
		if seg == marker {
			return false
		}
	}

	// Taper segments are short alphabetic names
	for _, r := range seg {
		if (r < 'a' || r > 'z') && r != '-' {
			return false
		}
	}

	return true
}
