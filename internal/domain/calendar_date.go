package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical dd.MM.yyyy rendering of a CalendarDate.
const DateLayout = "02.01.2006"

// readLayouts are tried in order; only DateLayout is ever written.
var readLayouts = []string{
	DateLayout,
	"2.1.2006",
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// CalendarDate is a day-precision date with no time-of-day or zone.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf discards the time component of t, keeping its calendar day in t's location.
func DateOf(t time.Time) CalendarDate {
	y, m, d := t.Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// ParseCalendarDate accepts dd.MM.yyyy and, for older records, ISO-8601 dates or timestamps.
func ParseCalendarDate(raw string) (CalendarDate, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range readLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return DateOf(t), nil
		}
	}
	return CalendarDate{}, fmt.Errorf("%w: date %q is not in dd.MM.yyyy format", ErrInvalidAnswerFormat, raw)
}

// Time returns midnight UTC of the date.
func (d CalendarDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Valid reports whether d names a real day in years 1..9999, the range dd.MM.yyyy
// can carry.
func (d CalendarDate) Valid() bool {
	if d.Year < 1 || d.Year > 9999 {
		return false
	}
	return DateOf(d.Time()) == d
}

func (d CalendarDate) IsZero() bool {
	return d == CalendarDate{}
}

func (d CalendarDate) Before(other CalendarDate) bool {
	return d.Time().Before(other.Time())
}

func (d CalendarDate) After(other CalendarDate) bool {
	return d.Time().After(other.Time())
}

func (d CalendarDate) String() string {
	return d.Time().Format(DateLayout)
}

func (d CalendarDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *CalendarDate) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: date must be a string", ErrInvalidAnswerFormat)
	}
	parsed, err := ParseCalendarDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
