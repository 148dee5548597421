package meta

import (
	"strings"
)

// ParseCoverage splits an archive coverage string ("Ithaca, NY") into
// city and state. Extra segments ("Ithaca, NY, USA") drop the country.
// A lone token is treated as the city.
func ParseCoverage(coverage string) (city, state string) {
	coverage = CleanString(coverage)
	if coverage == "" {
		return "", ""
	}

	parts := strings.Split(coverage, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch len(parts) {
	case 1:
		return parts[0], ""
	default:
		city = parts[0]
		state = parts[1]
	}

	// Country suffixes sneak into the state slot ("NY, USA" already split,
	// but some entries read "Paris, France")
	if len(state) > 2 && !isUSState(state) {
		// Keep it anyway; foreign venues carry the region here
		return city, state
	}

	return city, strings.ToUpper(state)
}

// isUSState reports whether s is a two-letter US state code
func isUSState(s string) bool {
	return len(s) == 2 && usStates[strings.ToUpper(s)]
}

var usStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true,
	"CO": true, "CT": true, "DE": true, "FL": true, "GA": true,
	"HI": true, "ID": true, "IL": true, "IN": true, "IA": true,
	"KS": true, "KY": true, "LA": true, "ME": true, "MD": true,
	"MA": true, "MI": true, "MN": true, "MS": true, "MO": true,
	"MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true,
	"OK": true, "OR": true, "PA": true, "RI": true, "SC": true,
	"SD": true, "TN": true, "TX": true, "UT": true, "VT": true,
	"VA": true, "WA": true, "WV": true, "WI": true, "WY": true,
	"DC": true,
}
