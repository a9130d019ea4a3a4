package util

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count in human-readable binary units
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// FormatCount renders an integer with thousands separators
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// FormatDuration rounds a duration to a display-friendly precision
func FormatDuration(d time.Duration) string {
	if d >= time.Minute {
		return d.Round(time.Second).String()
	}
	return d.Round(time.Millisecond).String()
}
