package civil

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidDate = errors.New("invalid calendar date")

// Layout is the wire format for dates: ISO calendar date, no time component.
const Layout = "2006-01-02"

// Date is a calendar date without time-of-day or timezone. The zero value
// is not a valid date and is used to mean "absent".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Parse reads a date in YYYY-MM-DD form. Out-of-range components
// (e.g. 2024-02-30) are rejected, not normalized.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}

	return FromTime(t), nil
}

// FromTime truncates a time.Time to its calendar date in the time's location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the current calendar date in UTC.
func Today() Date {
	return FromTime(time.Now().UTC())
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// IsValid reports whether d names a real calendar day.
func (d Date) IsValid() bool {
	return !d.IsZero() && FromTime(d.toTime()) == d
}

func (d Date) toTime() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) Before(other Date) bool {
	return d.toTime().Before(other.toTime())
}

func (d Date) After(other Date) bool {
	return d.toTime().After(other.toTime())
}

// Compare returns -1, 0 or 1 ordering d against other.
func (d Date) Compare(other Date) int {
	return d.toTime().Compare(other.toTime())
}

func (d Date) AddDays(n int) Date {
	return FromTime(d.toTime().AddDate(0, 0, n))
}

// DaysUntil returns the signed number of whole days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.toTime().Sub(d.toTime()) / (24 * time.Hour))
}

// AddMonths advances the date by n calendar months, preserving the
// day-of-month. When the target month is shorter, the day clamps to the
// month's last day (Jan 31 + 1 month is Feb 28, or Feb 29 in a leap year).
func (d Date) AddMonths(n int) Date {
	first := time.Date(d.Year, d.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return Date{
		Year:  first.Year(),
		Month: first.Month(),
		Day:   min(d.Day, lastDayOfMonth(first.Year(), first.Month())),
	}
}

// AddYears advances the date by n calendar years, clamping Feb 29 to
// Feb 28 in non-leap target years.
func (d Date) AddYears(n int) Date {
	return Date{
		Year:  d.Year + n,
		Month: d.Month,
		Day:   min(d.Day, lastDayOfMonth(d.Year+n, d.Month)),
	}
}

// lastDayOfMonth uses day zero of the following month, which time.Date
// normalizes to the last day of the month asked about.
func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.IsValid() {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidDate, d)
	}

	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("%w: %s", ErrInvalidDate, data)
	}

	parsed, err := Parse(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}

	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}

	if !d.IsValid() {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidDate, d)
	}

	return d.toTime(), nil
}

func (d *Date) Scan(src any) error {
	if src == nil {
		*d = Date{}
		return nil
	}

	switch v := src.(type) {
	case time.Time:
		*d = FromTime(v)
		return nil
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("%w: unexpected type %T", ErrInvalidDate, src)
	}
}
