// Package timeutil formats the times tokenreplay shows to people:
// offsets into a replay, replay lengths and catalog timestamps.
//
// Catalog timestamps are Unix nanoseconds (int64).
package timeutil

import (
	"fmt"
	"time"
)

// FromNano converts a Unix nanosecond timestamp to time.Time.
func FromNano(ns int64) time.Time {
	return time.Unix(0, ns)
}

// FormatTimestamp formats a Unix nanosecond timestamp with date.
// Format: "2006-01-02 15:04:05"
func FormatTimestamp(ns int64) string {
	return FromNano(ns).Format("2006-01-02 15:04:05")
}

// FormatDuration formats a replay length for reports.
// Examples: "450ms", "1.2s", "2m 15.3s"
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := d.Seconds()
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	minutes := int(seconds / 60)
	remaining := seconds - float64(minutes*60)
	return fmt.Sprintf("%dm %.1fs", minutes, remaining)
}

// FormatOffset formats a position within a replay as "+MM:SS.mmm".
func FormatOffset(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("+%02d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}
