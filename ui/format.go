package ui

import (
	"strconv"
	"time"
)

// TimeLayout is how timestamps are shown in history and alert lines.
const TimeLayout = "2006-01-02 15:04:05"

// FormatMillis renders epoch milliseconds in loc (local time when nil).
func FormatMillis(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc).Format(TimeLayout)
}

// FormatNumber prints a float the way JSON would: no trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Short keeps the first n runes of s.
func Short(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
