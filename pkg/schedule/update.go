package schedule

import "fmt"

// Update is the raw input of a settings change. Optional fields left nil keep
// their current value.
type Update struct {
	Enabled    bool
	Frequency  string
	TimeOfDay  string
	Weekdays   *string
	DayOfMonth *int
	TimeFormat *string
}

// Apply validates u and returns current with the change applied. Run markers
// are carried over untouched; recomputing NextRunAt is the caller's job.
//
// Weekdays fall back to all seven days only when the caller omitted the field
// and no weekday is stored. An explicitly empty list for a weekly schedule is
// rejected.
func (u Update) Apply(current Settings) (Settings, error) {
	next := current.Clone()
	verr := &ValidationError{}

	next.Enabled = u.Enabled

	freq, err := ParseFrequency(u.Frequency)
	if err != nil {
		verr.Add("frequency", err.Error())
	} else {
		next.Frequency = freq
	}

	tod, err := ParseTimeOfDay(u.TimeOfDay)
	if err != nil {
		verr.Add("sync_time", err.Error())
	} else {
		next.TimeOfDay = tod
	}

	if u.Weekdays != nil {
		days, err := ParseWeekdays(*u.Weekdays)
		switch {
		case err != nil:
			verr.Add("weekdays", err.Error())
		case days.Empty() && freq == Weekly:
			verr.Add("weekdays", "at least one weekday is required for weekly schedules")
		default:
			next.Weekdays = days
		}
	} else if next.Weekdays.Empty() {
		next.Weekdays = AllWeekdays
	}

	if u.DayOfMonth != nil {
		if *u.DayOfMonth < 1 || *u.DayOfMonth > 31 {
			verr.Add("day_of_month", fmt.Sprintf("day of month %d is outside 1..31", *u.DayOfMonth))
		} else {
			next.DayOfMonth = *u.DayOfMonth
		}
	} else if next.DayOfMonth == 0 {
		next.DayOfMonth = 1
	}

	if u.TimeFormat != nil {
		format, err := ParseTimeFormat(*u.TimeFormat)
		if err != nil {
			verr.Add("time_format", err.Error())
		} else {
			next.TimeFormat = format
		}
	} else if !next.TimeFormat.Valid() {
		next.TimeFormat = Format24h
	}

	if verr.HasErrors() {
		return current, verr
	}
	if err := next.Validate(); err != nil {
		return current, err
	}
	return next, nil
}
