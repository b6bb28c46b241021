package storage

import (
	"fmt"
	"time"
)

// timeLayout is fixed width so stored SQLite timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// dbTime scans timestamps stored either as native time values (Postgres) or
// as timeLayout text (SQLite). NULL scans into the zero time.
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	}
	return fmt.Errorf("unsupported time value %T", src)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range []string{timeLayout, time.RFC3339Nano} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("parse time %q", s)
}

func formatTime(t time.Time) any {
	return t.UTC().Format(timeLayout)
}
