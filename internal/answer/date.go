package answer

import (
	"encoding/json"

	"survey-flow-service/internal/domain"
)

// Date is a calendar-day answer; time of day never survives construction.
type Date struct {
	value   domain.CalendarDate
	minDate *domain.CalendarDate
	maxDate *domain.CalendarDate
}

// NewDate checks value against q's date range. A nil question skips the check.
func NewDate(value domain.CalendarDate, q *domain.Question) (Date, error) {
	if q == nil {
		return newDate(value, nil, nil)
	}
	if q.Type != domain.QuestionDate {
		return Date{}, wrongType(domain.QuestionDate, *q)
	}
	return newDate(value, q.Config.MinDate, q.Config.MaxDate)
}

// ParseDate reads dd.MM.yyyy, or ISO-8601 for older clients.
func ParseDate(raw string, q *domain.Question) (Date, error) {
	value, err := domain.ParseCalendarDate(raw)
	if err != nil {
		return Date{}, err
	}
	return NewDate(value, q)
}

func newDate(value domain.CalendarDate, minDate, maxDate *domain.CalendarDate) (Date, error) {
	if err := checkDate(value, minDate, maxDate); err != nil {
		return Date{}, err
	}
	return Date{value: value, minDate: copyDate(minDate), maxDate: copyDate(maxDate)}, nil
}

func checkDate(value domain.CalendarDate, minDate, maxDate *domain.CalendarDate) error {
	if value.IsZero() {
		return invalidf("date answer cannot be empty")
	}
	if !value.Valid() {
		return invalidf("%04d-%02d-%02d is not a calendar date", value.Year, int(value.Month), value.Day)
	}
	if minDate != nil && maxDate != nil && minDate.After(*maxDate) {
		return invalidf("minimum date %s is after maximum date %s", minDate, maxDate)
	}
	if minDate != nil && value.Before(*minDate) {
		return invalidf("date %s is before minimum %s", value, minDate)
	}
	if maxDate != nil && value.After(*maxDate) {
		return invalidf("date %s is after maximum %s", value, maxDate)
	}
	return nil
}

func (d Date) Value() domain.CalendarDate { return d.value }

func (d Date) MinDate() *domain.CalendarDate { return copyDate(d.minDate) }

func (d Date) MaxDate() *domain.CalendarDate { return copyDate(d.maxDate) }

func (Date) Type() domain.QuestionType { return domain.QuestionDate }

func (d Date) DisplayValue() string { return d.value.String() }

func (d Date) IsValidFor(q domain.Question) bool {
	return q.Type == domain.QuestionDate && checkDate(d.value, q.Config.MinDate, q.Config.MaxDate) == nil
}

func (d Date) Equal(other Value) bool {
	o, ok := other.(Date)
	return ok && d.value == o.value && equalDate(d.minDate, o.minDate) && equalDate(d.maxDate, o.maxDate)
}

func (Date) sealed() {}

type dateJSON struct {
	Type    domain.QuestionType  `json:"$type"`
	Date    *domain.CalendarDate `json:"date"`
	MinDate *domain.CalendarDate `json:"minDate,omitempty"`
	MaxDate *domain.CalendarDate `json:"maxDate,omitempty"`
}

func (d Date) MarshalJSON() ([]byte, error) {
	v := d.value
	return json.Marshal(dateJSON{Type: domain.QuestionDate, Date: &v, MinDate: d.minDate, MaxDate: d.maxDate})
}

func decodeDate(data []byte) (Value, error) {
	var in dateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, invalidf("date answer: %v", err)
	}
	if in.Date == nil {
		return nil, invalidf("date answer has no date")
	}
	return newDate(*in.Date, in.MinDate, in.MaxDate)
}

func copyDate(d *domain.CalendarDate) *domain.CalendarDate {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func equalDate(a, b *domain.CalendarDate) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
