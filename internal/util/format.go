package util

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes formats a byte count in human-readable IEC units
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatCount formats an integer with thousands separators
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// FormatDuration formats a duration for display, trimming sub-second noise
// for anything longer than a minute
func FormatDuration(d time.Duration) string {
	if d >= time.Minute {
		d = d.Round(time.Second)
	} else if d >= time.Second {
		d = d.Round(10 * time.Millisecond)
	}
	return d.String()
}

// FormatTimeAgo formats a timestamp relative to now ("3 days ago")
func FormatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
