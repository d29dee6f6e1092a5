package calendar

import (
	"testing"
)

func TestParse(t *testing.T) {
	valid := []string{
		"standard", "gregorian", "proleptic_gregorian",
		"all_leap", "366_day", "no_leap", "365_day", "360_day",
	}
	for _, name := range valid {
		if _, err := Parse(name); err != nil {
			t.Errorf("Parse(%q) returned error: %v", name, err)
		}
	}

	for _, name := range []string{"julian", "360_days", "", "noleap"} {
		if _, err := Parse(name); err == nil {
			t.Errorf("Parse(%q) should fail", name)
		}
	}
}

func TestDaysInYear(t *testing.T) {
	tests := []struct {
		cal  Calendar
		days int
	}{
		{Standard, 366},
		{AllLeap, 366},
		{Day366, 366},
		{NoLeap, 365},
		{Day365, 365},
		{Day360, 360},
	}
	for _, tt := range tests {
		if got := tt.cal.DaysInYear(); got != tt.days {
			t.Errorf("%s.DaysInYear() = %d, expected %d", tt.cal, got, tt.days)
		}
	}
}

func TestAddDays(t *testing.T) {
	tests := []struct {
		name     string
		cal      Calendar
		start    Date
		n        int
		expected Date
	}{
		{"gregorian leap day", Standard, Date{2000, 2, 28}, 1, Date{2000, 2, 29}},
		{"gregorian over year end", Standard, Date{1999, 12, 30}, 3, Date{2000, 1, 2}},
		{"no_leap skips feb 29", NoLeap, Date{2000, 2, 28}, 1, Date{2000, 3, 1}},
		{"no_leap year boundary", NoLeap, Date{1999, 12, 31}, 1, Date{2000, 1, 1}},
		{"all_leap keeps feb 29", AllLeap, Date{2001, 2, 28}, 1, Date{2001, 2, 29}},
		{"360_day month length", Day360, Date{2000, 1, 30}, 1, Date{2000, 2, 1}},
		{"360_day year boundary", Day360, Date{2000, 12, 30}, 1, Date{2001, 1, 1}},
		{"negative step", Standard, Date{2000, 3, 1}, -1, Date{2000, 2, 29}},
		{"negative over year start", Day360, Date{2000, 1, 1}, -1, Date{1999, 12, 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cal.AddDays(tt.start, tt.n); got != tt.expected {
				t.Errorf("AddDays(%v, %d) = %v, expected %v", tt.start, tt.n, got, tt.expected)
			}
		})
	}
}

// dailyDates generates n consecutive dates starting at start.
func dailyDates(cal Calendar, start Date, n int) []Date {
	dates := make([]Date, n)
	for i := range dates {
		dates[i] = cal.AddDays(start, i)
	}
	return dates
}

func countMatches(pred Predicate, dates []Date) int {
	n := 0
	for _, d := range dates {
		if pred(d) {
			n++
		}
	}
	return n
}

// A century of daily data starting 1951-01-01 contains the 29th of February
// 25 times. Day-of-year 59 is the leap day; with a one-day window the exact
// predicate must select it in leap years only.
func TestDayWindowLeapDay(t *testing.T) {
	exact, windowed, err := DayWindow(59, 1, Standard)
	if err != nil {
		t.Fatalf("DayWindow returned error: %v", err)
	}

	dates := dailyDates(Standard, Date{1951, 1, 1}, 36525)
	if got := countMatches(exact, dates); got != 25 {
		t.Errorf("exact-day matches = %d, expected 25", got)
	}

	// The window covers Feb 28 through Mar 1 every year plus Feb 29 in the
	// 25 leap years.
	if got := countMatches(windowed, dates); got != 100*2+25 {
		t.Errorf("windowed matches = %d, expected %d", got, 100*2+25)
	}
}

func TestDayWindowWraparound(t *testing.T) {
	tests := []struct {
		name      string
		dayOfYear int
		window    int
		cal       Calendar
		year      int
		wantExact int
		wantWin   int
	}{
		// doy 0 with window 2 selects Dec 30 - Jan 3.
		{"year start standard", 0, 2, Standard, 1999, 1, 5},
		{"year start 360_day", 0, 2, Day360, 2000, 1, 5},
		{"year start no_leap", 0, 2, NoLeap, 1999, 1, 5},
		// doy near the end of the year wraps into January.
		{"year end standard", 364, 3, Standard, 1999, 1, 7},
		{"year end 360_day", 359, 2, Day360, 2000, 1, 5},
		// doy equal to days-in-year resolves through the union path.
		{"overflow standard", 366, 1, Standard, 1999, 1, 3},
		// no wrap at all
		{"mid year", 180, 5, Standard, 1999, 1, 11},
		{"zero window", 180, 0, Standard, 1999, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exact, windowed, err := DayWindow(tt.dayOfYear, tt.window, tt.cal)
			if err != nil {
				t.Fatalf("DayWindow returned error: %v", err)
			}
			dates := dailyDates(tt.cal, Date{tt.year, 1, 1}, tt.cal.DaysInYear())
			if tt.cal == Standard {
				// use a real year length, not the 366-day class maximum
				dates = dailyDates(tt.cal, Date{tt.year, 1, 1}, 365)
			}
			if got := countMatches(exact, dates); got != tt.wantExact {
				t.Errorf("exact matches = %d, expected %d", got, tt.wantExact)
			}
			got := countMatches(windowed, dates)
			if got != tt.wantWin {
				t.Errorf("windowed matches = %d, expected %d", got, tt.wantWin)
			}
			if got > 2*tt.window+1 {
				t.Errorf("window selected %d days in one year, limit is %d", got, 2*tt.window+1)
			}
		})
	}
}

func TestDayWindowUnsupportedCalendar(t *testing.T) {
	if _, _, err := DayWindow(10, 2, Calendar("lunar")); err == nil {
		t.Error("expected error for unsupported calendar")
	}
}

func TestDayWindow360DayMapping(t *testing.T) {
	// day-of-year arithmetic on the 360-day calendar is 0-based while month
	// and day are 1-based
	exact, _, err := DayWindow(0, 0, Day360)
	if err != nil {
		t.Fatalf("DayWindow returned error: %v", err)
	}
	if !exact(Date{2010, 1, 1}) {
		t.Error("day 0 must map to January 1st")
	}
	exact, _, err = DayWindow(359, 0, Day360)
	if err != nil {
		t.Fatalf("DayWindow returned error: %v", err)
	}
	if !exact(Date{2010, 12, 30}) {
		t.Error("day 359 must map to December 30th")
	}
}

func TestMonthWindow(t *testing.T) {
	pred, err := MonthWindow(2)
	if err != nil {
		t.Fatalf("MonthWindow returned error: %v", err)
	}
	dates := dailyDates(Standard, Date{2000, 1, 1}, 366)
	if got := countMatches(pred, dates); got != 29 {
		t.Errorf("february 2000 matches = %d, expected 29", got)
	}

	for _, m := range []int{0, 13, -1} {
		if _, err := MonthWindow(m); err == nil {
			t.Errorf("MonthWindow(%d) should fail", m)
		}
	}
}
