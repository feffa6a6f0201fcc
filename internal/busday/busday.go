// Package busday counts working time for cycle metrics. A business day is a
// weekday; both interval endpoints count.
package busday

import "time"

// HoursPerDay is the working hours assumed per business day for man-hour
// derivations.
const HoursPerDay = 8

// Inclusive returns the number of weekdays in the closed interval
// [start, end]. A same-day interval on a weekday counts as 1; start after
// end returns 0. Callers substitute "now" for an absent endpoint, never this
// function.
func Inclusive(start, end time.Time) int {
	start = truncateDay(start)
	end = truncateDay(end)
	if start.After(end) {
		return 0
	}
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count
}

// ManHours derives man-hours from business days and assigned mechanics.
func ManHours(days, mechanics int) int {
	if days < 0 || mechanics < 1 {
		return 0
	}
	return days * mechanics * HoursPerDay
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
