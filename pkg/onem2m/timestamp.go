package onem2m

import (
	"strings"
	"time"
)

// TimestampLayout is the oneM2M basic-format timestamp (TS-0004 m2m:timestamp).
const TimestampLayout = "20060102T150405"

// Timestamp formats t in the oneM2M basic format, UTC.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Now returns the current time as a oneM2M timestamp string.
func Now() string {
	return Timestamp(time.Now())
}

// ParseTimestamp parses a oneM2M basic-format timestamp. The fractional
// seconds suffix (",ffffff") some implementations emit is tolerated.
func ParseTimestamp(s string) (time.Time, bool) {
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
