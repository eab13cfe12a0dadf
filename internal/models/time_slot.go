package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time expressed as minutes after midnight.
type TimeOfDay int

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return TimeOfDay(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", raw)
}

// Add returns the time shifted by the given number of minutes.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// On places the time of day on the calendar date of day in its location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, int(t)/60, int(t)%60, 0, 0, day.Location())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value stores the time as a PostgreSQL TIME literal.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

// Scan reads TIME columns returned as text or time.Time.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = 0
		return nil
	case time.Time:
		*t = TimeOfDay(v.Hour()*60 + v.Minute())
		return nil
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

func (t *TimeOfDay) scanString(raw string) error {
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TimeSlotConfig describes the daily slot grid used by the generator.
type TimeSlotConfig struct {
	DayStart               TimeOfDay `json:"dayStart"`
	DayEnd                 TimeOfDay `json:"dayEnd"`
	SessionDurationMinutes int       `json:"sessionDurationMinutes"`
	Days                   []string  `json:"days"`
}

// TimeSlot is one session within a day. Indices start at 1.
type TimeSlot struct {
	Index int       `json:"index"`
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

var weekdayByLabel = map[string]time.Weekday{
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
	"SUNDAY":    time.Sunday,
}

// NormalizeDays upper-cases weekday labels and drops blanks and repeats, keeping order.
// The second return value lists labels that are not weekdays.
func NormalizeDays(days []string) ([]string, []string) {
	seen := make(map[string]bool, len(days))
	result := make([]string, 0, len(days))
	var invalid []string
	for _, day := range days {
		label := strings.ToUpper(strings.TrimSpace(day))
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		if _, ok := weekdayByLabel[label]; !ok {
			invalid = append(invalid, day)
			continue
		}
		result = append(result, label)
	}
	return result, invalid
}

// WeekdayOf maps a normalised day label to its weekday.
func WeekdayOf(label string) (time.Weekday, bool) {
	day, ok := weekdayByLabel[strings.ToUpper(strings.TrimSpace(label))]
	return day, ok
}
