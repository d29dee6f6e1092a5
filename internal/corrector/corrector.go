// Package corrector drives bias correction over a full gridded dataset: it
// iterates correction units (days of year or months), assembles the temporal
// windows feeding each unit, regrids model and scenario data onto the
// observation grid, applies the per-cell correction method across all
// non-masked cells and persists one artifact per scenario and unit.
package corrector

import (
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/climatools/biascorrect/internal/correction"
	"github.com/climatools/biascorrect/internal/grid"
	"github.com/climatools/biascorrect/internal/log"
	"github.com/climatools/biascorrect/pkg/calendar"
)

// Time units a corrector can iterate over.
const (
	UnitDay   = "day"
	UnitMonth = "month"
)

const defaultQuantileMappingWindow = 15

// Artifact is one persisted output: the series of a single scenario and
// correction unit, together with the metadata encoded in its name.
type Artifact struct {
	// Name is the deterministic file name:
	// {method}_{variable}_scenario-{i}_{startyear}-{endyear}_{unit_type}-{unit}.nc
	// with the unit index zero-padded to 3 digits for days and 2 for months.
	Name     string
	Method   string
	Variable string
	Scenario int
	UnitType string
	Unit     int
	Series   *grid.TimeSeries
}

// Store persists artifacts. Saving the same name twice must overwrite.
type Store interface {
	Save(a Artifact) error
}

// Period is a half-open time interval [Start, End).
type Period struct {
	Start calendar.Date
	End   calendar.Date
}

func (p Period) isZero() bool { return p.Start.Year == 0 && p.End.Year == 0 }

// Config carries the correction setup shared by all units.
type Config struct {
	// ReferencePeriod restricts observation and model data for fitting;
	// CorrectionPeriod restricts the scenario data to be corrected. A zero
	// period keeps the full extent of the input series.
	ReferencePeriod  Period
	CorrectionPeriod Period

	// Window is the half-width in days of the temporal window feeding
	// day-based corrections.
	Window int

	// Workers bounds the worker pool correcting grid cells. Values below 2
	// run cells sequentially. Results are identical either way; cells read
	// and write disjoint slices.
	Workers int

	// SaveRegridded additionally persists the regridded scenario data
	// before correction.
	SaveRegridded bool

	Options correction.Options
}

// Corrector applies one correction method to a set of scenario series.
type Corrector struct {
	obs   *grid.TimeSeries
	mod   *grid.TimeSeries
	sce   []*grid.TimeSeries
	store Store
	cfg   Config

	method   correction.Method
	label    string
	timeUnit string

	regrids *grid.RegridderCache
}

// NewQuantileMapping builds a day-based corrector applying empirical
// quantile mapping. The window defaults to 15 days.
func NewQuantileMapping(obs, mod *grid.TimeSeries, sce []*grid.TimeSeries, store Store, cfg Config) (*Corrector, error) {
	if cfg.Window == 0 {
		cfg.Window = defaultQuantileMappingWindow
	}
	return newCorrector(obs, mod, sce, store, cfg, correction.NewQuantileMapping(), "quantile_mapping", UnitDay)
}

// NewScaledDistributionMapping builds a month-based corrector applying the
// scaled-distribution-mapping variant selected by the observation's physical
// quantity.
func NewScaledDistributionMapping(obs, mod *grid.TimeSeries, sce []*grid.TimeSeries, store Store, cfg Config) (*Corrector, error) {
	method, err := correction.Dispatch(obs.Quantity, cfg.Options)
	if err != nil {
		return nil, err
	}
	return newCorrector(obs, mod, sce, store, cfg, method, "scaled_distribution_mapping", UnitMonth)
}

func newCorrector(obs, mod *grid.TimeSeries, sce []*grid.TimeSeries, store Store, cfg Config,
	method correction.Method, label, timeUnit string) (*Corrector, error) {

	for _, ts := range append([]*grid.TimeSeries{obs, mod}, sce...) {
		if err := ts.Validate(); err != nil {
			return nil, err
		}
		if _, err := calendar.Parse(string(ts.Time.Calendar)); err != nil {
			return nil, err
		}
	}

	c := &Corrector{
		obs:      obs,
		mod:      mod,
		sce:      sce,
		store:    store,
		cfg:      cfg,
		method:   method,
		label:    label,
		timeUnit: timeUnit,
		regrids:  grid.NewRegridderCache(),
	}
	if !cfg.ReferencePeriod.isZero() {
		c.obs = c.obs.Period(cfg.ReferencePeriod.Start, cfg.ReferencePeriod.End)
		c.mod = c.mod.Period(cfg.ReferencePeriod.Start, cfg.ReferencePeriod.End)
	}
	if !cfg.CorrectionPeriod.isZero() {
		for i, s := range c.sce {
			c.sce[i] = s.Period(cfg.CorrectionPeriod.Start, cfg.CorrectionPeriod.End)
		}
	}
	return c, nil
}

// Run corrects the given units. A nil unit list means all days of the model
// year (0-based) or all twelve months, depending on the corrector's time
// unit. Re-running a unit with identical inputs overwrites its artifacts
// deterministically.
func (c *Corrector) Run(units []int) error {
	if units == nil {
		if c.timeUnit == UnitDay {
			for u := 0; u < c.mod.Time.Calendar.DaysInYear(); u++ {
				units = append(units, u)
			}
		} else {
			for u := 1; u <= 12; u++ {
				units = append(units, u)
			}
		}
	}
	for _, unit := range units {
		if err := c.runUnit(unit); err != nil {
			return fmt.Errorf("%s %d: %w", c.timeUnit, unit, err)
		}
	}
	return nil
}

func (c *Corrector) runUnit(unit int) error {
	exact, windowed, obsWindowed, err := c.unitPredicates(unit)
	if err != nil {
		return err
	}

	obs := c.obs.Window(obsWindowed)
	mod := c.mod.Window(windowed)
	if obs.Time.Len() == 0 || mod.Time.Len() == 0 {
		return fmt.Errorf("no samples selected")
	}

	regridder, err := c.regrids.Get(mod.YCoords, mod.XCoords, obs.YCoords, obs.XCoords)
	if err != nil {
		return err
	}
	mod = regridder.Apply(mod)

	sce := make([]*grid.TimeSeries, len(c.sce))
	for i, s := range c.sce {
		win := s.Window(exact)
		if win.Time.Len() == 0 {
			return fmt.Errorf("scenario %d: no samples selected", i)
		}
		sceRegridder, err := c.regrids.Get(s.YCoords, s.XCoords, obs.YCoords, obs.XCoords)
		if err != nil {
			return err
		}
		sce[i] = sceRegridder.Apply(win)
		sce[i].Mask = obs.Mask.Clone()
		if c.cfg.SaveRegridded {
			if err := c.store.Save(c.artifact("regridded", sce[i], i, unit)); err != nil {
				return err
			}
		}
	}

	if err := c.correctCells(obs, mod, sce); err != nil {
		return err
	}

	for i, s := range sce {
		a := c.artifact(c.label, s, i, unit)
		if err := c.store.Save(a); err != nil {
			return err
		}
		log.Debugw("saved artifact", "name", a.Name)
	}
	return nil
}

// unitPredicates builds the exact and windowed time predicates of one unit.
// For monthly units both predicates coincide. When observation and model run
// on calendars with different year lengths, the observation day index is
// rescaled by the ratio of the year lengths.
func (c *Corrector) unitPredicates(unit int) (exact, windowed, obsWindowed calendar.Predicate, err error) {
	if c.timeUnit == UnitMonth {
		pred, err := calendar.MonthWindow(unit)
		if err != nil {
			return nil, nil, nil, err
		}
		return pred, pred, pred, nil
	}

	modCal := c.mod.Time.Calendar
	obsCal := c.obs.Time.Calendar
	exact, windowed, err = calendar.DayWindow(unit, c.cfg.Window, modCal)
	if err != nil {
		return nil, nil, nil, err
	}
	obsWindowed = windowed
	if obsCal.DaysInYear() != modCal.DaysInYear() {
		obsUnit := obsCal.DaysInYear() * unit / modCal.DaysInYear()
		_, obsWindowed, err = calendar.DayWindow(obsUnit, c.cfg.Window, obsCal)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return exact, windowed, obsWindowed, nil
}

// correctCells applies the method to every non-masked grid cell. Cells are
// independent: each reads and writes disjoint slices, so they can run on a
// worker pool without affecting the numerical result.
func (c *Corrector) correctCells(obs, mod *grid.TimeSeries, sce []*grid.TimeSeries) error {
	ny, nx := obs.NY(), obs.NX()

	correctCell := func(y, x int) error {
		obsCell := obs.Cell(y, x)
		modCell := mod.Cell(y, x)
		sceCells := make([][]float64, len(sce))
		for i, s := range sce {
			sceCells[i] = s.Cell(y, x)
		}
		if err := c.method.Correct(obsCell, modCell, sceCells); err != nil {
			return fmt.Errorf("cell (%d, %d): %w", y, x, err)
		}
		for i, s := range sce {
			s.SetCell(y, x, sceCells[i])
		}
		return nil
	}

	if c.cfg.Workers < 2 {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				if obs.Mask.Masked(y, x) {
					continue
				}
				if err := correctCell(y, x); err != nil {
					return err
				}
			}
		}
		return nil
	}

	pool, err := ants.NewPool(c.cfg.Workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			if obs.Mask.Masked(y, x) {
				continue
			}
			y, x := y, x
			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()
				if err := correctCell(y, x); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			})
			if submitErr != nil {
				wg.Done()
				mu.Lock()
				if firstErr == nil {
					firstErr = submitErr
				}
				mu.Unlock()
			}
		}
	}
	wg.Wait()
	return firstErr
}

// artifact encodes method, variable, scenario index, covered years and the
// zero-padded unit index into a deterministic artifact.
func (c *Corrector) artifact(label string, ts *grid.TimeSeries, scenario, unit int) Artifact {
	padding := 3
	if c.timeUnit == UnitMonth {
		padding = 2
	}
	return Artifact{
		Name: fmt.Sprintf("%s_%s_scenario-%d_%d-%d_%s-%0*d.nc",
			label, ts.VarName, scenario, ts.StartYear(), ts.EndYear(), c.timeUnit, padding, unit),
		Method:   label,
		Variable: ts.VarName,
		Scenario: scenario,
		UnitType: c.timeUnit,
		Unit:     unit,
		Series:   ts,
	}
}
