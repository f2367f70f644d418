// Package timestamp handles the textual timestamps carried by events.
//
// Events carry their creation time in the Timestamp header as an RFC 3339
// string with second precision and the producer's UTC offset, for example
// "2012-04-23T10:31:02+02:00". For scheduling purposes the string is turned
// into float seconds since the Unix epoch; the offset only matters for that
// conversion and is not recoverable from the number.
//
// Usage Examples:
//
//	ts := timestamp.Now()                 // "2012-04-23T10:31:02+02:00"
//	secs, err := timestamp.Seconds(ts)    // 1335169862
//	t := timestamp.FromSeconds(secs)      // time.Time
package timestamp

import (
	"fmt"
	"math"
	"time"
)

// Layout is the wire layout of the Timestamp header.
const Layout = "2006-01-02T15:04:05Z07:00"

// Now returns the current local time formatted for the Timestamp header.
func Now() string {
	return Format(time.Now())
}

// Format renders t for the Timestamp header. Sub-second precision is dropped.
func Format(t time.Time) string {
	return t.Truncate(time.Second).Format(Layout)
}

// Parse parses a Timestamp header value. Fractional seconds are accepted.
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// Seconds converts a Timestamp header value to seconds since the epoch.
func Seconds(s string) (float64, error) {
	t, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return ToSeconds(t), nil
}

// ToSeconds converts t to float seconds since the epoch.
func ToSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromSeconds converts float seconds since the epoch to a time.Time.
func FromSeconds(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}

// SecondsDuration converts a float number of seconds to a time.Duration.
func SecondsDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}
