// Package grid holds the gridded time-series data model shared by the
// correction engine: a 3-dimensional (time, y, x) payload with an explicit
// calendar-aware time axis, coordinate vectors and an optional missing-data
// mask.
package grid

import (
	"fmt"

	"github.com/ctessum/sparse"

	"github.com/climatools/biascorrect/pkg/calendar"
)

// TimeAxis is the list of dates attached to the leading dimension of a
// series. Windowed extraction produces non-contiguous axes, so the dates are
// stored explicitly rather than derived from an epoch and a step.
type TimeAxis struct {
	Calendar calendar.Calendar
	Dates    []calendar.Date
}

// NewDailyAxis builds a contiguous daily axis of n steps starting at start.
func NewDailyAxis(cal calendar.Calendar, start calendar.Date, n int) *TimeAxis {
	dates := make([]calendar.Date, n)
	for i := range dates {
		dates[i] = cal.AddDays(start, i)
	}
	return &TimeAxis{Calendar: cal, Dates: dates}
}

// Len returns the number of time steps.
func (t *TimeAxis) Len() int { return len(t.Dates) }

// Select returns the indices of all dates matched by pred, in order.
func (t *TimeAxis) Select(pred calendar.Predicate) []int {
	var idx []int
	for i, d := range t.Dates {
		if pred(d) {
			idx = append(idx, i)
		}
	}
	return idx
}

// PeriodIndices returns the indices inside the half-open interval
// [start, end).
func (t *TimeAxis) PeriodIndices(start, end calendar.Date) []int {
	var idx []int
	for i, d := range t.Dates {
		if !dateBefore(d, start) && dateBefore(d, end) {
			idx = append(idx, i)
		}
	}
	return idx
}

func dateBefore(a, b calendar.Date) bool {
	if a.Year != b.Year {
		return a.Year < b.Year
	}
	if a.Month != b.Month {
		return a.Month < b.Month
	}
	return a.Day < b.Day
}

// subset returns a new axis holding the given time steps.
func (t *TimeAxis) subset(idx []int) *TimeAxis {
	dates := make([]calendar.Date, len(idx))
	for i, j := range idx {
		dates[i] = t.Dates[j]
	}
	return &TimeAxis{Calendar: t.Calendar, Dates: dates}
}

// Mask flags grid cells without valid observational data. Absence of a mask
// is a first-class state: a nil *Mask masks nothing. The mask is per (y, x)
// and constant over time for a given series.
type Mask struct {
	ny, nx int
	masked []bool
}

// NewMask returns an all-clear mask for an ny-by-nx grid.
func NewMask(ny, nx int) *Mask {
	return &Mask{ny: ny, nx: nx, masked: make([]bool, ny*nx)}
}

// Set marks cell (y, x) as missing.
func (m *Mask) Set(y, x int) { m.masked[y*m.nx+x] = true }

// Masked reports whether cell (y, x) is missing. A nil mask masks nothing.
func (m *Mask) Masked(y, x int) bool {
	if m == nil {
		return false
	}
	return m.masked[y*m.nx+x]
}

// Clone returns a copy of the mask. Cloning a nil mask returns nil.
func (m *Mask) Clone() *Mask {
	if m == nil {
		return nil
	}
	c := &Mask{ny: m.ny, nx: m.nx, masked: make([]bool, len(m.masked))}
	copy(c.masked, m.masked)
	return c
}

// subset returns the mask restricted to the given cell indices.
func (m *Mask) subset(yIdx, xIdx []int) *Mask {
	if m == nil {
		return nil
	}
	s := NewMask(len(yIdx), len(xIdx))
	for i, y := range yIdx {
		for j, x := range xIdx {
			if m.Masked(y, x) {
				s.Set(i, j)
			}
		}
	}
	return s
}

// TimeSeries is a gridded time series: a (time, y, x) payload together with
// its physical-quantity identity, units, coordinates and optional mask. The
// numeric payload is owned by the holder of the struct; the correction engine
// only reads and writes Data.
type TimeSeries struct {
	// VarName is the short variable name (e.g. "tas", "pr") used in output
	// artifact names; Quantity is the CF standard name (e.g.
	// "air_temperature") driving method dispatch.
	VarName  string
	Quantity string
	Units    string

	Time    *TimeAxis
	XCoords []float64
	YCoords []float64
	Data    *sparse.DenseArray // shaped (time, y, x)
	Mask    *Mask
}

// New allocates a zero-valued series over the given axis and coordinates.
func New(axis *TimeAxis, ycoords, xcoords []float64) *TimeSeries {
	return &TimeSeries{
		Time:    axis,
		XCoords: xcoords,
		YCoords: ycoords,
		Data:    sparse.ZerosDense(axis.Len(), len(ycoords), len(xcoords)),
	}
}

// NT, NY and NX return the payload dimensions.
func (ts *TimeSeries) NT() int { return ts.Data.Shape[0] }
func (ts *TimeSeries) NY() int { return ts.Data.Shape[1] }
func (ts *TimeSeries) NX() int { return ts.Data.Shape[2] }

// Cell extracts a copy of the time series of one grid cell.
func (ts *TimeSeries) Cell(y, x int) []float64 {
	nt := ts.NT()
	vals := make([]float64, nt)
	for t := 0; t < nt; t++ {
		vals[t] = ts.Data.Get(t, y, x)
	}
	return vals
}

// SetCell writes a cell series back into the payload.
func (ts *TimeSeries) SetCell(y, x int, vals []float64) {
	for t, v := range vals {
		ts.Data.Set(v, t, y, x)
	}
}

// Window returns a new series holding only the time steps matched by pred.
// Coordinates and the mask are shared; the payload is copied.
func (ts *TimeSeries) Window(pred calendar.Predicate) *TimeSeries {
	return ts.at(ts.Time.Select(pred))
}

// Period returns a new series restricted to the half-open interval
// [start, end).
func (ts *TimeSeries) Period(start, end calendar.Date) *TimeSeries {
	return ts.at(ts.Time.PeriodIndices(start, end))
}

func (ts *TimeSeries) at(idx []int) *TimeSeries {
	ny, nx := ts.NY(), ts.NX()
	out := &TimeSeries{
		VarName:  ts.VarName,
		Quantity: ts.Quantity,
		Units:    ts.Units,
		Time:     ts.Time.subset(idx),
		XCoords:  ts.XCoords,
		YCoords:  ts.YCoords,
		Data:     sparse.ZerosDense(len(idx), ny, nx),
		Mask:     ts.Mask,
	}
	for i, j := range idx {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				out.Data.Set(ts.Data.Get(j, y, x), i, y, x)
			}
		}
	}
	return out
}

// SubsetExtent returns a new series restricted to cells whose coordinates lie
// inside the closed bounding box. Model and scenario grids are clipped to the
// observation extent this way before regridding, so the interpolation never
// works far outside the target domain.
func (ts *TimeSeries) SubsetExtent(minY, maxY, minX, maxX float64) *TimeSeries {
	yIdx := coordsWithin(ts.YCoords, minY, maxY)
	xIdx := coordsWithin(ts.XCoords, minX, maxX)

	nt := ts.NT()
	out := &TimeSeries{
		VarName:  ts.VarName,
		Quantity: ts.Quantity,
		Units:    ts.Units,
		Time:     ts.Time,
		XCoords:  coordsAt(ts.XCoords, xIdx),
		YCoords:  coordsAt(ts.YCoords, yIdx),
		Data:     sparse.ZerosDense(nt, len(yIdx), len(xIdx)),
		Mask:     ts.Mask.subset(yIdx, xIdx),
	}
	for t := 0; t < nt; t++ {
		for i, y := range yIdx {
			for j, x := range xIdx {
				out.Data.Set(ts.Data.Get(t, y, x), t, i, j)
			}
		}
	}
	return out
}

func coordsWithin(coords []float64, lo, hi float64) []int {
	var idx []int
	for i, c := range coords {
		if c >= lo && c <= hi {
			idx = append(idx, i)
		}
	}
	return idx
}

func coordsAt(coords []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = coords[j]
	}
	return out
}

// StartYear and EndYear return the covered years, used for artifact naming.
func (ts *TimeSeries) StartYear() int { return ts.Time.Dates[0].Year }
func (ts *TimeSeries) EndYear() int   { return ts.Time.Dates[len(ts.Time.Dates)-1].Year }

// Validate checks internal consistency of the series dimensions.
func (ts *TimeSeries) Validate() error {
	if len(ts.Data.Shape) != 3 {
		return fmt.Errorf("series %q: payload must be 3-dimensional, got shape %v", ts.VarName, ts.Data.Shape)
	}
	if ts.Data.Shape[0] != ts.Time.Len() {
		return fmt.Errorf("series %q: %d time steps but %d dates", ts.VarName, ts.Data.Shape[0], ts.Time.Len())
	}
	if ts.Data.Shape[1] != len(ts.YCoords) || ts.Data.Shape[2] != len(ts.XCoords) {
		return fmt.Errorf("series %q: payload shape %v does not match coordinates (%d, %d)",
			ts.VarName, ts.Data.Shape, len(ts.YCoords), len(ts.XCoords))
	}
	return nil
}
