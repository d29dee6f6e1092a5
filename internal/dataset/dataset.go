// Package dataset loads gridded climate variables from NetCDF classic files
// into the engine's time-series model. It is the data-access collaborator of
// the correction core: reading, period subsetting and extent handling live
// here, the statistics do not.
package dataset

import (
	"fmt"
	"os"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/climatools/biascorrect/internal/grid"
	"github.com/climatools/biascorrect/internal/log"
	"github.com/climatools/biascorrect/pkg/calendar"
)

// CF default fill value for float payloads.
const defaultFillValue = 9.96921e36

var yCoordNames = []string{"y", "lat", "latitude", "rlat"}
var xCoordNames = []string{"x", "lon", "longitude", "rlon"}

// Dataset is one gridded variable read from disk, optionally restricted to a
// period and spatial extent.
type Dataset struct {
	path   string
	series *grid.TimeSeries
}

// Open reads the named variable from a NetCDF classic file. The file must
// carry a "time" coordinate with CF "days since ..." units; the calendar
// attribute defaults to standard. Cells equal to the variable's fill value
// in the first time step become part of the missing-data mask.
func Open(path, varName string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}

	dims := ff.Header.Lengths(varName)
	if len(dims) != 3 {
		return nil, fmt.Errorf("dataset %s: variable %q must have 3 dimensions, got %v", path, varName, dims)
	}
	nt, ny, nx := dims[0], dims[1], dims[2]

	axis, err := readTimeAxis(ff, nt)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}

	ycoords, err := readCoord(ff, yCoordNames, ny)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	xcoords, err := readCoord(ff, xCoordNames, nx)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}

	payload, err := readFloats(ff, varName, nt*ny*nx)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	data := sparse.ZerosDense(nt, ny, nx)
	copy(data.Elements, payload)

	ts := &grid.TimeSeries{
		VarName:  varName,
		Quantity: stringAttribute(ff, varName, "standard_name"),
		Units:    stringAttribute(ff, varName, "units"),
		Time:     axis,
		XCoords:  xcoords,
		YCoords:  ycoords,
		Data:     data,
		Mask:     buildMask(ff, varName, data),
	}
	log.Debugw("loaded dataset",
		"path", path, "variable", varName, "shape", dims, "calendar", axis.Calendar)
	return &Dataset{path: path, series: ts}, nil
}

// Series returns the loaded series. The caller owns the payload.
func (d *Dataset) Series() *grid.TimeSeries { return d.series }

// SetPeriod restricts the dataset to the half-open interval [start, end).
func (d *Dataset) SetPeriod(start, end calendar.Date) {
	d.series = d.series.Period(start, end)
}

// SetExtent restricts the dataset to the closed bounding box, typically the
// extent of the observation dataset.
func (d *Dataset) SetExtent(minY, maxY, minX, maxX float64) {
	d.series = d.series.SubsetExtent(minY, maxY, minX, maxX)
}

// Extent returns the bounding box (minY, maxY, minX, maxX) of the grid.
func (d *Dataset) Extent() (minY, maxY, minX, maxX float64) {
	ys, xs := d.series.YCoords, d.series.XCoords
	return ys[0], ys[len(ys)-1], xs[0], xs[len(xs)-1]
}

// readTimeAxis decodes the time coordinate into explicit calendar dates.
func readTimeAxis(ff *cdf.File, nt int) (*grid.TimeAxis, error) {
	units := stringAttribute(ff, "time", "units")
	epoch, err := parseEpoch(units)
	if err != nil {
		return nil, err
	}

	calName := stringAttribute(ff, "time", "calendar")
	if calName == "" {
		calName = string(calendar.Standard)
	}
	cal, err := calendar.Parse(calName)
	if err != nil {
		return nil, err
	}

	offsets, err := readFloats(ff, "time", nt)
	if err != nil {
		return nil, err
	}
	dates := make([]calendar.Date, nt)
	for i, off := range offsets {
		dates[i] = cal.AddDays(epoch, int(off))
	}
	return &grid.TimeAxis{Calendar: cal, Dates: dates}, nil
}

// parseEpoch extracts the reference date from a CF time unit such as
// "days since 1951-01-01" or "days since 1951-01-01 00:00:00".
func parseEpoch(units string) (calendar.Date, error) {
	fields := strings.Fields(units)
	if len(fields) < 3 || fields[0] != "days" || fields[1] != "since" {
		return calendar.Date{}, fmt.Errorf("unsupported time units %q", units)
	}
	var d calendar.Date
	if _, err := fmt.Sscanf(fields[2], "%d-%d-%d", &d.Year, &d.Month, &d.Day); err != nil {
		return calendar.Date{}, fmt.Errorf("bad epoch in time units %q: %w", units, err)
	}
	return d, nil
}

func readCoord(ff *cdf.File, names []string, n int) ([]float64, error) {
	for _, name := range names {
		if lens := ff.Header.Lengths(name); len(lens) == 1 && lens[0] == n {
			return readFloats(ff, name, n)
		}
	}
	return nil, fmt.Errorf("no coordinate variable of length %d among %v", n, names)
}

// readFloats reads a whole variable into float64 regardless of its stored
// element type.
func readFloats(ff *cdf.File, name string, n int) ([]float64, error) {
	r := ff.Reader(name, nil, nil)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("read variable %q: %w", name, err)
	}
	out := make([]float64, n)
	switch vals := buf.(type) {
	case []float64:
		copy(out, vals)
	case []float32:
		for i, v := range vals {
			out[i] = float64(v)
		}
	case []int32:
		for i, v := range vals {
			out[i] = float64(v)
		}
	case []int16:
		for i, v := range vals {
			out[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("variable %q has unsupported element type %T", name, buf)
	}
	return out, nil
}

// buildMask derives the missing-data mask from the variable's fill value in
// the first time step. The mask is constant over time for a given series.
func buildMask(ff *cdf.File, varName string, data *sparse.DenseArray) *grid.Mask {
	fill := defaultFillValue
	if v, ok := numberAttribute(ff, varName, "_FillValue"); ok {
		fill = v
	} else if v, ok := numberAttribute(ff, varName, "missing_value"); ok {
		fill = v
	}

	ny, nx := data.Shape[1], data.Shape[2]
	mask := grid.NewMask(ny, nx)
	any := false
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			v := data.Get(0, y, x)
			if float32(v) == float32(fill) {
				mask.Set(y, x)
				any = true
			}
		}
	}
	if !any {
		return nil
	}
	return mask
}

func stringAttribute(ff *cdf.File, varName, attr string) string {
	if v, ok := ff.Header.GetAttribute(varName, attr).(string); ok {
		return v
	}
	return ""
}

// numberAttribute reads a numeric attribute. The second return value reports
// presence, so a legitimate zero fill value is not confused with an absent
// attribute.
func numberAttribute(ff *cdf.File, varName, attr string) (float64, bool) {
	switch v := ff.Header.GetAttribute(varName, attr).(type) {
	case []float64:
		if len(v) > 0 {
			return v[0], true
		}
	case []float32:
		if len(v) > 0 {
			return float64(v[0]), true
		}
	}
	return 0, false
}
