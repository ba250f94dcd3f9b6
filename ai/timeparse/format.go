package timeparse

import (
	"fmt"
	"strings"
	"time"
)

// FormatTimeNatural renders a timestamp the way a person would say it,
// relative to the reference time: "today at 6:00 PM", "tomorrow at 9:30 AM",
// "Monday at 2:15 PM", or a full date for anything further out.
func FormatTimeNatural(t, ref time.Time) string {
	clock := strings.TrimPrefix(t.Format("3:04 PM"), "0")

	refDay := ref.Truncate(24 * time.Hour)
	day := t.Truncate(24 * time.Hour)

	switch {
	case t.Year() == ref.Year() && t.YearDay() == ref.YearDay():
		return "today at " + clock
	case t.Year() == ref.AddDate(0, 0, 1).Year() && t.YearDay() == ref.AddDate(0, 0, 1).YearDay():
		return "tomorrow at " + clock
	case day.Sub(refDay) > 0 && day.Sub(refDay) <= 7*24*time.Hour:
		return t.Format("Monday") + " at " + clock
	default:
		return t.Format("Monday, January 2") + " at " + clock
	}
}

// FormatDurationNatural renders a minute duration in natural language:
// 30 -> "30 minutes", 90 -> "1 hour 30 minutes", 120 -> "2 hours".
func FormatDurationNatural(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d %s", minutes, plural("minute", minutes))
	}

	hours := minutes / 60
	remaining := minutes % 60
	if remaining == 0 {
		return fmt.Sprintf("%d %s", hours, plural("hour", hours))
	}
	return fmt.Sprintf("%d %s %d %s", hours, plural("hour", hours), remaining, plural("minute", remaining))
}

func plural(unit string, n int) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
