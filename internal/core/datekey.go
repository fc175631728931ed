package core

import "time"

// DateKeyLayout is the calendar-date format of history keys.
const DateKeyLayout = "2006-01-02"

// DateKey returns the calendar date of t in loc. A nil loc means time.Local.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateKeyLayout)
}

// ParseDateKey validates a YYYY-MM-DD key.
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.Parse(DateKeyLayout, key)
	if err != nil {
		return time.Time{}, ErrInvalidDateKey
	}
	return t, nil
}
