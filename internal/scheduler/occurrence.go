package scheduler

import (
	"time"

	"moneta/internal/core"
)

// NextOccurrence advances a schedule by interval periods. Month and year
// arithmetic is calendar-aware: the day of month clamps to the last day of
// the target month (Jan 31 + 1 month = Feb 28), never a fixed day count.
func NextOccurrence(base time.Time, period core.RecurrencePeriod, interval int) time.Time {
	if interval < 1 {
		interval = 1
	}
	switch period {
	case core.Daily:
		return base.AddDate(0, 0, interval)
	case core.Weekly:
		return base.AddDate(0, 0, 7*interval)
	case core.Monthly:
		return addMonthsClamped(base, interval)
	case core.Yearly:
		return addMonthsClamped(base, 12*interval)
	}
	return base
}

// addMonthsClamped avoids time.AddDate's normalization, which would turn
// Jan 31 + 1 month into Mar 3.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := lastDayOfMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	// Day zero of the next month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
