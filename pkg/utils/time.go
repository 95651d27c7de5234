package utils

import "time"

// ParseRFC3339 parses an RFC3339 timestamp, as carried in stored
// conversation items and client-supplied message history.
func ParseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
