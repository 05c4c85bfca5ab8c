package schedule

import (
	"fmt"
	"time"
)

// Decision reasons reported by Evaluate.
const (
	ReasonDue                = "due"
	ReasonDisabled           = "disabled"
	ReasonTimeMismatch       = "time_mismatch"
	ReasonWeekdayNotSelected = "weekday_not_selected"
	ReasonNotEffectiveDay    = "not_effective_day"
	ReasonAlreadyRan         = "already_ran_this_period"
)

// Decision is the verdict of the run guard for one tick.
type Decision struct {
	Fire   bool
	Reason string
}

// Period identifies a scheduling period. Daily and weekly schedules use the
// calendar date; monthly schedules leave Day at zero.
type Period struct {
	Year  int
	Month time.Month
	Day   int
}

func (p Period) String() string {
	if p.Day == 0 {
		return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
	}
	return fmt.Sprintf("%04d-%02d-%02d", p.Year, int(p.Month), p.Day)
}

// PeriodOf returns the period key of t under frequency f.
func PeriodOf(f Frequency, t time.Time) Period {
	y, m, d := t.Date()
	if f == Monthly {
		return Period{Year: y, Month: m}
	}
	return Period{Year: y, Month: m, Day: d}
}

// Evaluate decides whether the tick observed at now should trigger a run.
// A matching minute that is never observed is skipped for good; there is no
// catch-up.
func Evaluate(s Settings, now time.Time) Decision {
	if !s.Enabled {
		return Decision{Reason: ReasonDisabled}
	}
	if !s.TimeOfDay.Matches(now) {
		return Decision{Reason: ReasonTimeMismatch}
	}
	switch s.Frequency {
	case Weekly:
		if !s.Weekdays.Contains(now.Weekday()) {
			return Decision{Reason: ReasonWeekdayNotSelected}
		}
	case Monthly:
		if now.Day() != EffectiveDay(now.Year(), now.Month(), s.DayOfMonth) {
			return Decision{Reason: ReasonNotEffectiveDay}
		}
	}
	if s.LastRunAt != nil && PeriodOf(s.Frequency, *s.LastRunAt) == PeriodOf(s.Frequency, now) {
		return Decision{Reason: ReasonAlreadyRan}
	}
	return Decision{Fire: true, Reason: ReasonDue}
}

// ShouldFire reports whether Evaluate lets the tick at now through.
func ShouldFire(s Settings, now time.Time) bool {
	return Evaluate(s, now).Fire
}
