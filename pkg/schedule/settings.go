// Package schedule holds the recurring sync settings model together with the
// pure functions that decide when a sync should run: NextRun computes the next
// occurrence and Evaluate gates a single poll tick.
//
// All times are naive local wall-clock values. Calculations use the location of
// the "now" argument and never convert between zones.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency is the cadence rule of a schedule.
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
)

// ParseFrequency parses a frequency name case-insensitively.
func ParseFrequency(value string) (Frequency, error) {
	switch Frequency(strings.ToUpper(strings.TrimSpace(value))) {
	case Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	}
	return "", fmt.Errorf("unknown frequency %q", value)
}

// Valid reports whether f is one of the supported frequencies.
func (f Frequency) Valid() bool {
	return f == Daily || f == Weekly || f == Monthly
}

// DisplayName returns the human readable name, e.g. "Weekly".
func (f Frequency) DisplayName() string {
	switch f {
	case Weekly:
		return "Weekly"
	case Monthly:
		return "Monthly"
	default:
		return "Daily"
	}
}

// TimeOfDay is a 24-hour wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a strict "HH:mm" value.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	value = strings.TrimSpace(value)
	if len(value) != 5 || value[2] != ':' {
		return TimeOfDay{}, fmt.Errorf("invalid time %q, expected HH:mm", value)
	}
	h, err := strconv.Atoi(value[:2])
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", value)
	}
	m, err := strconv.Atoi(value[3:])
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", value)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// MustTimeOfDay is ParseTimeOfDay for constant inputs; it panics on error.
func MustTimeOfDay(value string) TimeOfDay {
	t, err := ParseTimeOfDay(value)
	if err != nil {
		panic(err)
	}
	return t
}

// Valid reports whether t is a valid 24-hour time.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// String returns the "HH:mm" form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// On combines the calendar date of day with t in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, day.Location())
}

// Matches reports whether now falls in the same hour and minute as t.
func (t TimeOfDay) Matches(now time.Time) bool {
	return now.Hour() == t.Hour && now.Minute() == t.Minute
}

// TimeFormat is the display preference for times. It never affects scheduling.
type TimeFormat string

const (
	Format12h TimeFormat = "12h"
	Format24h TimeFormat = "24h"
)

// ParseTimeFormat accepts "12h" or "24h".
func ParseTimeFormat(value string) (TimeFormat, error) {
	switch TimeFormat(strings.ToLower(strings.TrimSpace(value))) {
	case Format12h:
		return Format12h, nil
	case Format24h:
		return Format24h, nil
	}
	return "", fmt.Errorf("unknown time format %q, expected 12h or 24h", value)
}

// Valid reports whether f is a known display format.
func (f TimeFormat) Valid() bool {
	return f == Format12h || f == Format24h
}

// FormatTimeOfDay renders t for display, e.g. "03:00 AM" for the 12h format.
func FormatTimeOfDay(t TimeOfDay, format TimeFormat) string {
	if format != Format12h {
		return t.String()
	}
	suffix := "AM"
	if t.Hour >= 12 {
		suffix = "PM"
	}
	hour := t.Hour % 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%02d:%02d %s", hour, t.Minute, suffix)
}

// Settings is the persisted configuration of one recurring scheduler.
type Settings struct {
	Enabled    bool       `json:"enabled"`
	Frequency  Frequency  `json:"frequency"`
	TimeOfDay  TimeOfDay  `json:"sync_time"`
	Weekdays   WeekdaySet `json:"weekdays"`
	DayOfMonth int        `json:"day_of_month"`
	TimeFormat TimeFormat `json:"time_format"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
}

// Validate checks the invariants every persisted Settings value must hold.
func (s Settings) Validate() error {
	verr := &ValidationError{}
	if !s.Frequency.Valid() {
		verr.Add("frequency", fmt.Sprintf("unknown frequency %q", s.Frequency))
	}
	if !s.TimeOfDay.Valid() {
		verr.Add("sync_time", fmt.Sprintf("invalid time %d:%d", s.TimeOfDay.Hour, s.TimeOfDay.Minute))
	}
	if s.Frequency == Weekly && s.Weekdays.Empty() {
		verr.Add("weekdays", "at least one weekday is required for weekly schedules")
	}
	if s.DayOfMonth < 1 || s.DayOfMonth > 31 {
		verr.Add("day_of_month", fmt.Sprintf("day of month %d is outside 1..31", s.DayOfMonth))
	}
	if !s.TimeFormat.Valid() {
		verr.Add("time_format", fmt.Sprintf("unknown time format %q", s.TimeFormat))
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// Description summarizes the schedule, e.g. "Weekly on MON,WED at 09:00".
func (s Settings) Description() string {
	var b strings.Builder
	b.WriteString(s.Frequency.DisplayName())
	switch s.Frequency {
	case Weekly:
		b.WriteString(" on ")
		if s.Weekdays == AllWeekdays {
			b.WriteString("all days")
		} else {
			b.WriteString(s.Weekdays.String())
		}
	case Monthly:
		fmt.Fprintf(&b, " on day %d", s.DayOfMonth)
	}
	b.WriteString(" at ")
	b.WriteString(FormatTimeOfDay(s.TimeOfDay, s.TimeFormat))
	return b.String()
}

// DisplayTime returns the configured time in the preferred display format.
func (s Settings) DisplayTime() string {
	return FormatTimeOfDay(s.TimeOfDay, s.TimeFormat)
}

// Clone returns a copy that shares no pointers with s.
func (s Settings) Clone() Settings {
	c := s
	if s.LastRunAt != nil {
		t := *s.LastRunAt
		c.LastRunAt = &t
	}
	if s.NextRunAt != nil {
		t := *s.NextRunAt
		c.NextRunAt = &t
	}
	return c
}

// Trigger identifies what dispatched a run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// RunOutcome is the transient result of one dispatched run.
type RunOutcome struct {
	RunID      string    `json:"run_id"`
	Trigger    Trigger   `json:"trigger"`
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration is the wall time between start and finish.
func (o RunOutcome) Duration() time.Duration {
	if o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}
