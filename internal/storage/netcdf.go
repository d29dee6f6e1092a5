// Package storage persists correction artifacts: NetCDF files carrying the
// corrected series under their deterministic names, and an optional SQLite
// catalog recording what was written by which run.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctessum/cdf"

	"github.com/climatools/biascorrect/internal/corrector"
	"github.com/climatools/biascorrect/internal/grid"
)

// fillValue is the CF default fill for float payloads, written into masked
// cells.
const fillValue float32 = 9.96921e36

// NetCDFStore writes artifacts as NetCDF classic files into a working
// directory. Saving an existing name truncates and rewrites the file, so
// re-running a unit with identical inputs is idempotent.
type NetCDFStore struct {
	dir string
}

// NewNetCDFStore creates the working directory if needed.
func NewNetCDFStore(dir string) (*NetCDFStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	return &NetCDFStore{dir: dir}, nil
}

// Save writes one artifact.
func (s *NetCDFStore) Save(a corrector.Artifact) error {
	path := filepath.Join(s.dir, a.Name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create artifact %s: %w", a.Name, err)
	}
	defer f.Close()

	if err := writeSeries(f, a.Series); err != nil {
		return fmt.Errorf("write artifact %s: %w", a.Name, err)
	}
	return nil
}

func writeSeries(f *os.File, ts *grid.TimeSeries) error {
	nt, ny, nx := ts.NT(), ts.NY(), ts.NX()

	h := cdf.NewHeader([]string{"time", "y", "x"}, []int{nt, ny, nx})
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", fmt.Sprintf("days since %04d-%02d-%02d",
		ts.Time.Dates[0].Year, ts.Time.Dates[0].Month, ts.Time.Dates[0].Day))
	h.AddAttribute("time", "calendar", string(ts.Time.Calendar))
	h.AddVariable("y", []string{"y"}, []float64{0})
	h.AddVariable("x", []string{"x"}, []float64{0})
	h.AddVariable(ts.VarName, []string{"time", "y", "x"}, []float32{0})
	if ts.Quantity != "" {
		h.AddAttribute(ts.VarName, "standard_name", ts.Quantity)
	}
	if ts.Units != "" {
		h.AddAttribute(ts.VarName, "units", ts.Units)
	}
	h.AddAttribute(ts.VarName, "_FillValue", []float32{fillValue})
	h.Define()

	ff, err := cdf.Create(f, h)
	if err != nil {
		return err
	}

	times := make([]float64, nt)
	epoch := ts.Time.Dates[0]
	for i, d := range ts.Time.Dates {
		times[i] = float64(ts.Time.Calendar.DaysBetween(epoch, d))
	}
	if err := writeVar(ff, "time", times); err != nil {
		return err
	}
	if err := writeVar(ff, "y", ts.YCoords); err != nil {
		return err
	}
	if err := writeVar(ff, "x", ts.XCoords); err != nil {
		return err
	}

	payload := make([]float32, nt*ny*nx)
	i := 0
	for t := 0; t < nt; t++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				if ts.Mask.Masked(y, x) {
					payload[i] = fillValue
				} else {
					payload[i] = float32(ts.Data.Get(t, y, x))
				}
				i++
			}
		}
	}
	if err := writeVar(ff, ts.VarName, payload); err != nil {
		return err
	}

	return cdf.UpdateNumRecs(f)
}

func writeVar(ff *cdf.File, name string, data interface{}) error {
	end := ff.Header.Lengths(name)
	start := make([]int, len(end))
	w := ff.Writer(name, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write variable %q: %w", name, err)
	}
	return nil
}
