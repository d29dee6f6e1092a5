package grid

import (
	"math"
	"testing"

	"github.com/climatools/biascorrect/pkg/calendar"
)

func testSeries(t *testing.T, cal calendar.Calendar, start calendar.Date, nt int) *TimeSeries {
	t.Helper()
	ts := New(NewDailyAxis(cal, start, nt), []float64{10, 20}, []float64{100, 110, 120})
	ts.VarName = "tas"
	ts.Quantity = "air_temperature"
	ts.Units = "K"
	for i := 0; i < nt; i++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 3; x++ {
				ts.Data.Set(float64(i*100+y*10+x), i, y, x)
			}
		}
	}
	return ts
}

func TestNewDailyAxis(t *testing.T) {
	axis := NewDailyAxis(calendar.Standard, calendar.Date{Year: 2000, Month: 2, Day: 27}, 4)
	expected := []calendar.Date{
		{Year: 2000, Month: 2, Day: 27},
		{Year: 2000, Month: 2, Day: 28},
		{Year: 2000, Month: 2, Day: 29},
		{Year: 2000, Month: 3, Day: 1},
	}
	if axis.Len() != len(expected) {
		t.Fatalf("Len = %d", axis.Len())
	}
	for i, want := range expected {
		if axis.Dates[i] != want {
			t.Errorf("Dates[%d] = %v, expected %v", i, axis.Dates[i], want)
		}
	}
}

func TestCellRoundtrip(t *testing.T) {
	ts := testSeries(t, calendar.Standard, calendar.Date{Year: 2000, Month: 1, Day: 1}, 5)
	vals := ts.Cell(1, 2)
	if len(vals) != 5 {
		t.Fatalf("len = %d", len(vals))
	}
	for i, v := range vals {
		if v != float64(i*100+12) {
			t.Fatalf("vals[%d] = %v", i, v)
		}
		vals[i] = v + 0.5
	}
	ts.SetCell(1, 2, vals)
	if got := ts.Data.Get(3, 1, 2); got != 312.5 {
		t.Errorf("written cell value = %v", got)
	}
	// other cells untouched
	if got := ts.Data.Get(3, 0, 2); got != 302 {
		t.Errorf("neighbor cell value = %v", got)
	}
}

func TestWindow(t *testing.T) {
	ts := testSeries(t, calendar.Standard, calendar.Date{Year: 2000, Month: 1, Day: 30}, 10)
	feb := ts.Window(func(d calendar.Date) bool { return d.Month == 2 })
	if feb.NT() != 8 {
		t.Fatalf("windowed steps = %d, expected 8", feb.NT())
	}
	if feb.Time.Dates[0] != (calendar.Date{Year: 2000, Month: 2, Day: 1}) {
		t.Errorf("first windowed date = %v", feb.Time.Dates[0])
	}
	// payload follows the selected steps
	if got := feb.Cell(0, 0)[0]; got != 200 {
		t.Errorf("first windowed value = %v, expected 200", got)
	}
	if feb.VarName != "tas" || feb.Units != "K" {
		t.Error("identity must carry over to the windowed series")
	}
}

func TestPeriod(t *testing.T) {
	ts := testSeries(t, calendar.Standard, calendar.Date{Year: 2000, Month: 1, Day: 1}, 10)
	sub := ts.Period(calendar.Date{Year: 2000, Month: 1, Day: 3}, calendar.Date{Year: 2000, Month: 1, Day: 6})
	if sub.NT() != 3 {
		t.Fatalf("period steps = %d, expected 3", sub.NT())
	}
	if sub.Time.Dates[0].Day != 3 || sub.Time.Dates[2].Day != 5 {
		t.Errorf("period bounds = %v .. %v", sub.Time.Dates[0], sub.Time.Dates[2])
	}
}

func TestStartEndYear(t *testing.T) {
	ts := testSeries(t, calendar.NoLeap, calendar.Date{Year: 1999, Month: 12, Day: 30}, 4)
	if ts.StartYear() != 1999 || ts.EndYear() != 2000 {
		t.Errorf("years = %d-%d", ts.StartYear(), ts.EndYear())
	}
}

func TestValidate(t *testing.T) {
	ts := testSeries(t, calendar.Standard, calendar.Date{Year: 2000, Month: 1, Day: 1}, 5)
	if err := ts.Validate(); err != nil {
		t.Fatalf("valid series rejected: %v", err)
	}
	ts.YCoords = []float64{10}
	if err := ts.Validate(); err == nil {
		t.Error("coordinate mismatch must be rejected")
	}
}

func TestMask(t *testing.T) {
	var nilMask *Mask
	if nilMask.Masked(0, 0) {
		t.Error("nil mask must mask nothing")
	}
	if nilMask.Clone() != nil {
		t.Error("cloning a nil mask must return nil")
	}

	m := NewMask(2, 3)
	m.Set(1, 2)
	if !m.Masked(1, 2) || m.Masked(0, 2) || m.Masked(1, 1) {
		t.Error("wrong cells masked")
	}
	c := m.Clone()
	c.Set(0, 0)
	if m.Masked(0, 0) {
		t.Error("clone must not share storage")
	}
}

func TestSubsetExtent(t *testing.T) {
	ts := testSeries(t, calendar.Standard, calendar.Date{Year: 2000, Month: 1, Day: 1}, 2)
	ts.Mask = NewMask(2, 3)
	ts.Mask.Set(1, 2)

	sub := ts.SubsetExtent(15, 25, 105, 125)
	if sub.NY() != 1 || sub.NX() != 2 {
		t.Fatalf("subset shape = (%d,%d), expected (1,2)", sub.NY(), sub.NX())
	}
	if sub.YCoords[0] != 20 || sub.XCoords[0] != 110 || sub.XCoords[1] != 120 {
		t.Errorf("subset coords = %v %v", sub.YCoords, sub.XCoords)
	}
	// cell (1, 1) of the source becomes (0, 0) of the subset
	if got := sub.Data.Get(1, 0, 0); got != 111 {
		t.Errorf("subset value = %v, expected 111", got)
	}
	if !sub.Mask.Masked(0, 1) || sub.Mask.Masked(0, 0) {
		t.Error("mask did not follow the subset")
	}
	if err := sub.Validate(); err != nil {
		t.Errorf("subset invalid: %v", err)
	}

	// the source extent subsets to itself
	full := ts.SubsetExtent(10, 20, 100, 120)
	if full.NY() != 2 || full.NX() != 3 {
		t.Errorf("full subset shape = (%d,%d)", full.NY(), full.NX())
	}
}

func TestRegridIdentity(t *testing.T) {
	ts := testSeries(t, calendar.Standard, calendar.Date{Year: 2000, Month: 1, Day: 1}, 3)
	r, err := NewRegridder(ts.YCoords, ts.XCoords, ts.YCoords, ts.XCoords)
	if err != nil {
		t.Fatalf("NewRegridder returned error: %v", err)
	}
	out := r.Apply(ts)
	for i := 0; i < ts.NT(); i++ {
		for y := 0; y < ts.NY(); y++ {
			for x := 0; x < ts.NX(); x++ {
				if out.Data.Get(i, y, x) != ts.Data.Get(i, y, x) {
					t.Fatalf("identity regrid changed (%d,%d,%d)", i, y, x)
				}
			}
		}
	}
}

func TestRegridMidpointAndClamp(t *testing.T) {
	ts := New(NewDailyAxis(calendar.Standard, calendar.Date{Year: 2000, Month: 1, Day: 1}, 1),
		[]float64{0, 10}, []float64{0, 10})
	ts.Data.Set(0, 0, 0, 0)
	ts.Data.Set(10, 0, 0, 1)
	ts.Data.Set(20, 0, 1, 0)
	ts.Data.Set(30, 0, 1, 1)

	r, err := NewRegridder(ts.YCoords, ts.XCoords, []float64{-5, 5}, []float64{5, 15})
	if err != nil {
		t.Fatalf("NewRegridder returned error: %v", err)
	}
	out := r.Apply(ts)
	tests := []struct {
		y, x     int
		expected float64
	}{
		{1, 0, 15}, // center of the four source cells
		{0, 0, 5},  // y clamped below, x midpoint
		{1, 1, 20}, // x clamped above, y midpoint
		{0, 1, 10}, // both edges
	}
	for _, tt := range tests {
		if got := out.Data.Get(0, tt.y, tt.x); math.Abs(got-tt.expected) > 1e-12 {
			t.Errorf("out(%d,%d) = %v, expected %v", tt.y, tt.x, got, tt.expected)
		}
	}
}

func TestRegridderRejectsUnsortedAxis(t *testing.T) {
	if _, err := NewRegridder([]float64{1, 1}, []float64{0, 1}, []float64{0}, []float64{0}); err == nil {
		t.Error("non-increasing y axis must be rejected")
	}
	if _, err := NewRegridder([]float64{0, 1}, []float64{2, 1}, []float64{0}, []float64{0}); err == nil {
		t.Error("decreasing x axis must be rejected")
	}
}

func TestRegridderCache(t *testing.T) {
	c := NewRegridderCache()
	y := []float64{0, 10}
	x := []float64{0, 10, 20}
	first, err := c.Get(y, x, y, x)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	second, err := c.Get(y, x, y, x)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if first != second {
		t.Error("cache must return the same operator for the same grids")
	}

	// equal shapes with different coordinates must not share an operator
	other, err := c.Get([]float64{5, 15}, x, y, x)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if other == first {
		t.Error("cache must distinguish grids by coordinates, not shape")
	}
}
