package dateutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layout of calendar dates stored in sessions and streaks. ISO dates compare
// lexicographically in chronological order.
const Layout = "2006-01-02"

const day = 24 * time.Hour

// DateString formats t as YYYY-MM-DD in t's own location.
func DateString(t time.Time) string {
	return t.Format(Layout)
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsDateToday reports whether date names the same calendar day as now.
// Unparseable dates are never today.
func IsDateToday(date string, now time.Time) bool {
	parsed, err := time.ParseInLocation(Layout, date, now.Location())
	if err != nil {
		return false
	}
	return parsed.Equal(StartOfDay(now))
}

// DaysBetween returns the absolute number of whole calendar days between two dates.
func DaysBetween(a, b string) (int, error) {
	ta, err := time.Parse(Layout, a)
	if err != nil {
		return 0, fmt.Errorf("parsing date %q: %w", a, err)
	}
	tb, err := time.Parse(Layout, b)
	if err != nil {
		return 0, fmt.Errorf("parsing date %q: %w", b, err)
	}
	diff := tb.Sub(ta)
	if diff < 0 {
		diff = -diff
	}
	return int(diff / day), nil
}

// AreConsecutiveDays reports whether a and b are exactly one calendar day apart, in either order.
func AreConsecutiveDays(a, b string) bool {
	n, err := DaysBetween(a, b)
	return err == nil && n == 1
}

// FormatTime renders seconds as MM:SS.
func FormatTime(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// FormatDuration renders seconds as "45s", "1m 30s" or "2m".
func FormatDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	mins, secs := seconds/60, seconds%60
	if secs > 0 {
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	return fmt.Sprintf("%dm", mins)
}

// ParseTimeString splits an HH:mm string. Missing or malformed parts become zero.
func ParseTimeString(s string) (hours, minutes int) {
	parts := strings.SplitN(s, ":", 2)
	hours, _ = strconv.Atoi(parts[0])
	if len(parts) > 1 {
		minutes, _ = strconv.Atoi(parts[1])
	}
	return hours, minutes
}
