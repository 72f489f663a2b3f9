package perf

import "time"

// DateKeyLayout is the canonical day key used across price maps and series.
const DateKeyLayout = "2006-01-02"

func DateKey(t time.Time) string {
	return t.UTC().Format(DateKeyLayout)
}

// DateOnly truncates to a UTC midnight.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateRange returns every calendar day from start through end inclusive.
// Returns nil if start is after end.
func DateRange(start, end time.Time) []time.Time {
	start = DateOnly(start)
	end = DateOnly(end)
	if start.After(end) {
		return nil
	}
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}
