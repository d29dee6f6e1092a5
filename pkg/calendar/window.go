package calendar

import "fmt"

// DayWindow builds the two time predicates used to assemble per-day
// correction samples:
//
//  1. an exact predicate matching the single (month, day) pair that dayOfYear
//     maps to, repeated in every year, and
//  2. a window predicate matching all days within dayOfYear ± window.
//
// dayOfYear is the 0-based offset from 1 January, so 59 is the 29th of
// February on leap-year-class calendars. When the window straddles the year
// boundary the predicate becomes the union of the two wrap sub-intervals
// [year start, end] and [begin, year end]; negative or overflowing
// dayOfYear ± window values resolve through that path without any explicit
// modulo arithmetic.
func DayWindow(dayOfYear, window int, cal Calendar) (exact, windowed Predicate, err error) {
	if _, err = Parse(string(cal)); err != nil {
		return nil, nil, err
	}

	var mid, begin, end, yearEnd MonthDay
	yearStart := MonthDay{Month: 1, Day: 1}

	if cal == Day360 {
		month, day := dayOfYear/30+1, dayOfYear%30+1
		mid = MonthDay{Month: month, Day: day}
		yearEnd = MonthDay{Month: 12, Day: 30}
		begin = cal.monthDayAt(dayOfYear - window)
		end = cal.monthDayAt(dayOfYear + window)
	} else {
		mid = cal.monthDayAt(dayOfYear)
		yearEnd = MonthDay{Month: 12, Day: 31}
		begin = cal.monthDayAt(dayOfYear - window)
		end = cal.monthDayAt(dayOfYear + window)
	}

	exact = func(d Date) bool {
		return d.Month == mid.Month && d.Day == mid.Day
	}
	if begin.Month <= end.Month {
		windowed = func(d Date) bool {
			return between(MonthDay{Month: d.Month, Day: d.Day}, begin, end)
		}
	} else {
		windowed = func(d Date) bool {
			md := MonthDay{Month: d.Month, Day: d.Day}
			return between(md, yearStart, end) || between(md, begin, yearEnd)
		}
	}
	return exact, windowed, nil
}

// MonthWindow returns a predicate matching every day of the given month
// across all years. Monthly correction units use the same predicate for both
// the exact and the windowed selection.
func MonthWindow(month int) (Predicate, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("month %d out of range", month)
	}
	return func(d Date) bool {
		return d.Month == month
	}, nil
}
