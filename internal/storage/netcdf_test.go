package storage

import (
	"path/filepath"
	"testing"

	"github.com/climatools/biascorrect/internal/corrector"
	"github.com/climatools/biascorrect/internal/dataset"
	"github.com/climatools/biascorrect/internal/grid"
	"github.com/climatools/biascorrect/pkg/calendar"
)

func sampleArtifact(t *testing.T) corrector.Artifact {
	t.Helper()
	axis := grid.NewDailyAxis(calendar.Standard, calendar.Date{Year: 2021, Month: 1, Day: 2}, 3)
	ts := grid.New(axis, []float64{48, 49}, []float64{11, 12})
	ts.VarName = "tas"
	ts.Quantity = "air_temperature"
	ts.Units = "K"
	for i := 0; i < 3; i++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				// exactly representable in float32
				ts.Data.Set(float64(i*100+y*10+x)+0.5, i, y, x)
			}
		}
	}
	ts.Mask = grid.NewMask(2, 2)
	ts.Mask.Set(1, 0)

	return corrector.Artifact{
		Name:     "quantile_mapping_tas_scenario-0_2021-2021_day-001.nc",
		Method:   "quantile_mapping",
		Variable: "tas",
		Scenario: 0,
		UnitType: corrector.UnitDay,
		Unit:     1,
		Series:   ts,
	}
}

func TestNetCDFRoundtrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewNetCDFStore(dir)
	if err != nil {
		t.Fatalf("NewNetCDFStore returned error: %v", err)
	}

	a := sampleArtifact(t)
	if err := store.Save(a); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	ds, err := dataset.Open(filepath.Join(dir, a.Name), "tas")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	ts := ds.Series()

	if ts.Quantity != "air_temperature" || ts.Units != "K" {
		t.Errorf("identity = %q %q", ts.Quantity, ts.Units)
	}
	if ts.NT() != 3 || ts.NY() != 2 || ts.NX() != 2 {
		t.Fatalf("shape = (%d,%d,%d)", ts.NT(), ts.NY(), ts.NX())
	}
	if ts.Time.Calendar != calendar.Standard {
		t.Errorf("calendar = %v", ts.Time.Calendar)
	}
	if ts.Time.Dates[0] != (calendar.Date{Year: 2021, Month: 1, Day: 2}) {
		t.Errorf("first date = %v", ts.Time.Dates[0])
	}
	if ts.Time.Dates[2] != (calendar.Date{Year: 2021, Month: 1, Day: 4}) {
		t.Errorf("last date = %v", ts.Time.Dates[2])
	}
	if ts.YCoords[1] != 49 || ts.XCoords[0] != 11 {
		t.Errorf("coords = %v %v", ts.YCoords, ts.XCoords)
	}

	for i := 0; i < 3; i++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				if y == 1 && x == 0 {
					continue
				}
				want := float64(i*100+y*10+x) + 0.5
				if got := ts.Data.Get(i, y, x); got != want {
					t.Fatalf("value(%d,%d,%d) = %v, expected %v", i, y, x, got, want)
				}
			}
		}
	}

	// the masked cell comes back as part of the mask
	if ts.Mask == nil || !ts.Mask.Masked(1, 0) {
		t.Error("masked cell lost in roundtrip")
	}
	if ts.Mask.Masked(0, 0) || ts.Mask.Masked(1, 1) {
		t.Error("mask gained cells in roundtrip")
	}
}

func TestNetCDFSaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	store, err := NewNetCDFStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	a := sampleArtifact(t)
	if err := store.Save(a); err != nil {
		t.Fatal(err)
	}
	a.Series.Data.Set(999.5, 0, 0, 0)
	if err := store.Save(a); err != nil {
		t.Fatal(err)
	}

	ds, err := dataset.Open(filepath.Join(dir, a.Name), "tas")
	if err != nil {
		t.Fatal(err)
	}
	if got := ds.Series().Data.Get(0, 0, 0); got != 999.5 {
		t.Errorf("overwritten value = %v, expected 999.5", got)
	}
}
