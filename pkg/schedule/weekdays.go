package schedule

import (
	"fmt"
	"strings"
	"time"
)

// WeekdaySet is a set of days of the week stored as a bitmask indexed by time.Weekday.
type WeekdaySet uint8

// AllWeekdays contains every day of the week.
const AllWeekdays WeekdaySet = 1<<7 - 1

// weekOrder is the display and persistence order, Monday first.
var weekOrder = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

var weekdayCodes = map[string]time.Weekday{
	"MON": time.Monday,
	"TUE": time.Tuesday,
	"WED": time.Wednesday,
	"THU": time.Thursday,
	"FRI": time.Friday,
	"SAT": time.Saturday,
	"SUN": time.Sunday,
}

// NewWeekdaySet builds a set from the given days.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

// ParseWeekdays parses comma-separated three letter codes such as "MON,WED,FRI".
// Codes are case-insensitive and surrounding blanks are ignored. An empty input
// yields an empty set.
func ParseWeekdays(value string) (WeekdaySet, error) {
	var s WeekdaySet
	for _, part := range strings.Split(value, ",") {
		code := strings.ToUpper(strings.TrimSpace(part))
		if code == "" {
			continue
		}
		day, ok := weekdayCodes[code]
		if !ok {
			return 0, fmt.Errorf("unknown weekday code %q", part)
		}
		s = s.With(day)
	}
	return s, nil
}

// WeekdayCode returns the three letter code of d, e.g. "MON".
func WeekdayCode(d time.Weekday) string {
	return strings.ToUpper(d.String()[:3])
}

// With returns s with d added.
func (s WeekdaySet) With(d time.Weekday) WeekdaySet {
	return s | 1<<uint(d)
}

// Contains reports whether d is in the set.
func (s WeekdaySet) Contains(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

// Empty reports whether no day is selected.
func (s WeekdaySet) Empty() bool {
	return s&AllWeekdays == 0
}

// Len returns the number of selected days.
func (s WeekdaySet) Len() int {
	n := 0
	for _, d := range weekOrder {
		if s.Contains(d) {
			n++
		}
	}
	return n
}

// Days lists the selected days, Monday first.
func (s WeekdaySet) Days() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for _, d := range weekOrder {
		if s.Contains(d) {
			days = append(days, d)
		}
	}
	return days
}

// String returns the comma-separated codes, Monday first.
func (s WeekdaySet) String() string {
	codes := make([]string, 0, 7)
	for _, d := range s.Days() {
		codes = append(codes, WeekdayCode(d))
	}
	return strings.Join(codes, ",")
}

func (s WeekdaySet) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *WeekdaySet) UnmarshalText(text []byte) error {
	parsed, err := ParseWeekdays(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
