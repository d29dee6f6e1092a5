// Package calendar implements day arithmetic and temporal window selection
// for the model calendars defined by the CF conventions. Climate model output
// is commonly produced on simplified calendars (fixed 365-day or 360-day
// years, or all-leap years), so date handling cannot rely on time.Time alone.
package calendar

import (
	"fmt"
	"time"
)

// Calendar identifies a CF-convention model calendar.
type Calendar string

const (
	Standard           Calendar = "standard"
	Gregorian          Calendar = "gregorian"
	ProlepticGregorian Calendar = "proleptic_gregorian"
	AllLeap            Calendar = "all_leap"
	Day366             Calendar = "366_day"
	NoLeap             Calendar = "no_leap"
	Day365             Calendar = "365_day"
	Day360             Calendar = "360_day"
)

// ErrUnsupported is returned when a calendar name is not recognized.
// Callers must treat it as an invalid-configuration error.
type ErrUnsupported struct {
	Name string
}

func (e *ErrUnsupported) Error() string {
	return fmt.Sprintf("calendar %q not supported", e.Name)
}

// Parse validates a calendar name. Unknown names fail fast.
func Parse(name string) (Calendar, error) {
	c := Calendar(name)
	switch c {
	case Standard, Gregorian, ProlepticGregorian, AllLeap, Day366, NoLeap, Day365, Day360:
		return c, nil
	}
	return "", &ErrUnsupported{Name: name}
}

// DaysInYear returns the fixed year length of c. For the real-world calendars
// (standard, gregorian, proleptic_gregorian) this is 366, matching the
// convention that day-of-year indices must be able to address a leap day.
func (c Calendar) DaysInYear() int {
	switch c {
	case NoLeap, Day365:
		return 365
	case Day360:
		return 360
	default:
		return 366
	}
}

// referenceYear returns a representative year used to map a day-of-year
// offset to a (month, day) pair: a leap year for 366-day-class calendars and
// a non-leap year for 365-day calendars. The 360-day calendar has no
// representative year; its mapping is direct arithmetic.
func (c Calendar) referenceYear() int {
	switch c {
	case NoLeap, Day365:
		return 1999
	default:
		return 2000
	}
}

// Date is a calendar-aware date. Month and Day are 1-based.
type Date struct {
	Year  int
	Month int
	Day   int
}

// MonthDay is a (month, day) pair that ignores the year, used for window
// bounds that repeat annually.
type MonthDay struct {
	Month int
	Day   int
}

// Before reports whether m falls earlier in the year than o.
func (m MonthDay) Before(o MonthDay) bool {
	if m.Month != o.Month {
		return m.Month < o.Month
	}
	return m.Day < o.Day
}

// After reports whether m falls later in the year than o.
func (m MonthDay) After(o MonthDay) bool {
	return o.Before(m)
}

func between(d MonthDay, lo, hi MonthDay) bool {
	return !d.Before(lo) && !d.After(hi)
}

// Predicate selects dates from a time axis.
type Predicate func(Date) bool

// yearDay returns the 0-based index of (month, day) within a year of c.
func (c Calendar) yearDay(month, day int) int {
	if c == Day360 {
		return (month-1)*30 + day - 1
	}
	t := time.Date(c.referenceYear(), time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.YearDay() - 1
}

// monthDayAt maps a 0-based day-of-year index to its (month, day) pair.
// Indices outside [0, DaysInYear) resolve into adjacent years, which is what
// window bounds around the year boundary need.
func (c Calendar) monthDayAt(yearDay int) MonthDay {
	if c == Day360 {
		yd := yearDay
		for yd < 0 {
			yd += 360
		}
		yd %= 360
		return MonthDay{Month: yd/30 + 1, Day: yd%30 + 1}
	}
	base := time.Date(c.referenceYear(), 1, 1, 0, 0, 0, 0, time.UTC)
	t := base.AddDate(0, 0, yearDay)
	return MonthDay{Month: int(t.Month()), Day: t.Day()}
}

// DaysBetween returns the number of days from a to b under c.
func (c Calendar) DaysBetween(a, b Date) int {
	switch c {
	case Standard, Gregorian, ProlepticGregorian:
		ta := time.Date(a.Year, time.Month(a.Month), a.Day, 0, 0, 0, 0, time.UTC)
		tb := time.Date(b.Year, time.Month(b.Month), b.Day, 0, 0, 0, 0, time.UTC)
		return int(tb.Sub(ta).Hours() / 24)
	}
	diy := c.DaysInYear()
	return (b.Year*diy + c.yearDay(b.Month, b.Day)) - (a.Year*diy + c.yearDay(a.Month, a.Day))
}

// AddDays returns d advanced by n days under c. n may be negative.
func (c Calendar) AddDays(d Date, n int) Date {
	switch c {
	case Standard, Gregorian, ProlepticGregorian:
		t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
		t = t.AddDate(0, 0, n)
		return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
	}
	diy := c.DaysInYear()
	abs := d.Year*diy + c.yearDay(d.Month, d.Day) + n
	year := abs / diy
	yd := abs % diy
	if yd < 0 {
		year--
		yd += diy
	}
	md := c.monthDayAt(yd)
	return Date{Year: year, Month: md.Month, Day: md.Day}
}
