package service

import "time"

// IsUpcoming reports whether a show starting at start has not yet begun at
// now.  Both instants are read in zone, the canonical display zone, so the
// rule is the same wherever the process runs.  A show starting exactly now
// is not upcoming.
func IsUpcoming(start, now time.Time, zone *time.Location) bool {
	if zone == nil {
		zone = time.UTC
	}
	return start.In(zone).After(now.In(zone))
}

// DisplayTime renders t in zone as RFC 3339.
func DisplayTime(t time.Time, zone *time.Location) string {
	if zone == nil {
		zone = time.UTC
	}
	return t.In(zone).Format(time.RFC3339)
}

// ParseShowTime reads a show start time.  RFC 3339 values keep their own
// offset; values without one ("2006-01-02T15:04" or "2006-01-02 15:04:05")
// are read in zone.
func ParseShowTime(s string, zone *time.Location) (time.Time, error) {
	if zone == nil {
		zone = time.UTC
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, zone); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, validation("invalid starts_at format")
}
