package display

import (
	"fmt"
	"time"
)

const (
	dateLayout     = "2 Jan 2006"
	dateTimeLayout = "2 Jan 2006, 03:04 pm"
)

func FormatDate(t time.Time) string {
	return t.Local().Format(dateLayout)
}

func FormatDateTime(t time.Time) string {
	return t.Local().Format(dateTimeLayout)
}

// RelativeTime describes t relative to now for order lists. Anything a
// week or older falls back to the date.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	mins := int(d / time.Minute)
	hours := mins / 60
	days := hours / 24

	switch {
	case mins < 1:
		return "Just now"
	case mins < 60:
		return fmt.Sprintf("%d min ago", mins)
	case hours < 24:
		return fmt.Sprintf("%d %s ago", hours, plural(hours, "hour"))
	case days < 7:
		return fmt.Sprintf("%d %s ago", days, plural(days, "day"))
	}
	return FormatDate(t)
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
