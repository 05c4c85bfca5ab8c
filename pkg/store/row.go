package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/docsync/core/pkg/schedule"
)

// TimestampLayout is the naive wall-clock layout used by text backed stores.
const TimestampLayout = "2006-01-02T15:04:05"

// Row is the flat column representation of Settings shared by the SQL and
// Redis backends. Timestamps are naive wall-clock text; invalid means NULL.
type Row struct {
	Key         string         `db:"scheduler_key"`
	Enabled     bool           `db:"sync_enabled"`
	Frequency   string         `db:"frequency"`
	SyncTime    string         `db:"sync_time"`
	Weekdays    string         `db:"weekdays"`
	DayOfMonth  int            `db:"day_of_month"`
	TimeFormat  string         `db:"time_format"`
	LastSyncRun sql.NullString `db:"last_sync_run"`
	NextSyncRun sql.NullString `db:"next_sync_run"`
}

// EncodeRow flattens s for storage under key.
func EncodeRow(key string, s schedule.Settings) Row {
	return Row{
		Key:         key,
		Enabled:     s.Enabled,
		Frequency:   string(s.Frequency),
		SyncTime:    s.TimeOfDay.String(),
		Weekdays:    s.Weekdays.String(),
		DayOfMonth:  s.DayOfMonth,
		TimeFormat:  string(s.TimeFormat),
		LastSyncRun: nullTimestamp(s.LastRunAt),
		NextSyncRun: nullTimestamp(s.NextRunAt),
	}
}

// Decode rebuilds Settings, placing timestamps in loc.
func (r Row) Decode(loc *time.Location) (schedule.Settings, error) {
	freq, err := schedule.ParseFrequency(r.Frequency)
	if err != nil {
		return schedule.Settings{}, fmt.Errorf("decode %s: %w", r.Key, err)
	}
	tod, err := schedule.ParseTimeOfDay(r.SyncTime)
	if err != nil {
		return schedule.Settings{}, fmt.Errorf("decode %s: %w", r.Key, err)
	}
	days, err := schedule.ParseWeekdays(r.Weekdays)
	if err != nil {
		return schedule.Settings{}, fmt.Errorf("decode %s: %w", r.Key, err)
	}
	format, err := schedule.ParseTimeFormat(r.TimeFormat)
	if err != nil {
		format = schedule.Format24h
	}

	s := schedule.Settings{
		Enabled:    r.Enabled,
		Frequency:  freq,
		TimeOfDay:  tod,
		Weekdays:   days,
		DayOfMonth: r.DayOfMonth,
		TimeFormat: format,
	}
	if s.LastRunAt, err = parseNullTimestamp(r.LastSyncRun, loc); err != nil {
		return schedule.Settings{}, fmt.Errorf("decode %s last_sync_run: %w", r.Key, err)
	}
	if s.NextRunAt, err = parseNullTimestamp(r.NextSyncRun, loc); err != nil {
		return schedule.Settings{}, fmt.Errorf("decode %s next_sync_run: %w", r.Key, err)
	}
	return s, nil
}

// FormatTimestamp renders the wall clock of t without any zone information.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp reads a naive wall-clock value into loc.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(TimestampLayout, value, loc)
}

// InLocation keeps the wall clock of t and attaches loc. Drivers return naive
// timestamps in UTC, which would otherwise shift the stored local time.
func InLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func nullTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatTimestamp(*t), Valid: true}
}

func parseNullTimestamp(v sql.NullString, loc *time.Location) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := ParseTimestamp(v.String, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
