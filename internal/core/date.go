package core

import (
	"strings"
	"time"
)

// Accepted input layouts, tried in order. Layouts carrying a time of day are
// reduced to the calendar date as written.
var dateLayouts = []string{
	dateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseDate parses s into a calendar Date. It returns ErrInvalidDate when no
// accepted layout matches or the date is 0001-01-01, which Date reserves as
// its unset value.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := NewDate(t.Year(), int(t.Month()), t.Day())
		if d.IsZero() {
			return Date{}, ErrInvalidDate
		}
		return d, nil
	}
	return Date{}, ErrInvalidDate
}

// MonthKey returns the YYYY-MM bucket key of the date.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

// MonthLabel returns the short month label, e.g. "Jan 2024".
func (d Date) MonthLabel() string {
	return d.Format("Jan 2006")
}
