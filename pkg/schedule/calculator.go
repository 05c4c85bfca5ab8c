package schedule

import "time"

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// EffectiveDay reduces a configured day of month to one that exists in the
// given month, so day 31 becomes 30 in April and 28 or 29 in February.
func EffectiveDay(year int, month time.Month, dayOfMonth int) int {
	if dayOfMonth < 1 {
		dayOfMonth = 1
	}
	return min(dayOfMonth, DaysIn(year, month))
}

// NextRun returns the first occurrence of the schedule strictly after now.
// It is pure: the result depends only on the schedule rules and now, never on
// Enabled or the run markers.
func NextRun(s Settings, now time.Time) time.Time {
	switch s.Frequency {
	case Weekly:
		return nextWeekly(s, now)
	case Monthly:
		return nextMonthly(s, now)
	default:
		return nextDaily(s.TimeOfDay, now)
	}
}

func nextDaily(tod TimeOfDay, now time.Time) time.Time {
	candidate := tod.On(now)
	if !candidate.After(now) {
		candidate = tod.On(now.AddDate(0, 0, 1))
	}
	return candidate
}

func nextWeekly(s Settings, now time.Time) time.Time {
	start := now
	if !s.TimeOfDay.On(now).After(now) {
		start = now.AddDate(0, 0, 1)
	}
	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i)
		if s.Weekdays.Contains(day.Weekday()) {
			return s.TimeOfDay.On(day)
		}
	}
	// Unreachable while the non-empty weekday invariant holds.
	return s.TimeOfDay.On(now.AddDate(0, 0, 7))
}

func nextMonthly(s Settings, now time.Time) time.Time {
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	candidate := monthlyCandidate(s, month)
	if !candidate.After(now) {
		candidate = monthlyCandidate(s, month.AddDate(0, 1, 0))
	}
	return candidate
}

// monthlyCandidate builds the run time for the month containing first, which
// must be the first day of that month.
func monthlyCandidate(s Settings, first time.Time) time.Time {
	day := EffectiveDay(first.Year(), first.Month(), s.DayOfMonth)
	return s.TimeOfDay.On(time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, first.Location()))
}
