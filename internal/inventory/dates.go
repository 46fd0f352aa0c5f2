package inventory

import (
	"strings"
	"time"

	"medshop/backend/internal/store"
)

// ParseExpiry accepts "YYYY-MM-DD", "YYYY-MM" (normalized to the 1st of the
// month) or an RFC 3339 timestamp. Blank input means no expiry.
func ParseExpiry(raw string) (*time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if parsed, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			day := Day(parsed)
			return &day, nil
		}
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		day := Day(parsed)
		return &day, nil
	}
	return nil, store.Invalid("expiry_date %q must be YYYY-MM or YYYY-MM-DD", value)
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
