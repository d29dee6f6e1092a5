// Command biascorrect corrects systematic bias in gridded climate model
// output against observations, using quantile mapping or scaled distribution
// mapping, and writes one NetCDF artifact per scenario and correction unit.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/climatools/biascorrect/internal/correction"
	"github.com/climatools/biascorrect/internal/corrector"
	"github.com/climatools/biascorrect/internal/dataset"
	"github.com/climatools/biascorrect/internal/grid"
	"github.com/climatools/biascorrect/internal/log"
	"github.com/climatools/biascorrect/internal/storage"
	"github.com/climatools/biascorrect/pkg/config"
)

func main() {
	var (
		configFile = flag.String("config", "biascorrect.yaml", "Configuration file")
		unitSpec   = flag.String("units", "", "Comma-separated correction units (default: all)")
		debug      = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(*debug || cfg.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	units, err := parseUnits(*unitSpec)
	if err != nil {
		log.Fatalf("bad -units value: %v", err)
	}

	if err := run(cfg, units); err != nil {
		log.Fatalf("correction failed: %v", err)
	}
}

func run(cfg *config.Config, units []int) error {
	obsDS, err := dataset.Open(cfg.Observation.Path, cfg.Observation.Variable)
	if err != nil {
		return err
	}
	modDS, err := dataset.Open(cfg.Model.Path, cfg.Model.Variable)
	if err != nil {
		return err
	}
	sceDS := make([]*dataset.Dataset, len(cfg.Scenarios))
	for i, spec := range cfg.Scenarios {
		if sceDS[i], err = dataset.Open(spec.Path, spec.Variable); err != nil {
			return err
		}
	}

	// clip model and scenario grids to the observation extent before
	// regridding
	minY, maxY, minX, maxX := obsDS.Extent()
	modDS.SetExtent(minY, maxY, minX, maxX)
	for _, ds := range sceDS {
		ds.SetExtent(minY, maxY, minX, maxX)
	}

	obs := obsDS.Series()
	mod := modDS.Series()
	sce := make([]*grid.TimeSeries, len(sceDS))
	for i, ds := range sceDS {
		sce[i] = ds.Series()
	}

	ccfg := corrector.Config{
		Window:        cfg.Window,
		Workers:       cfg.Workers,
		SaveRegridded: cfg.SaveRegridded,
		Options: correction.Options{
			LowerLimit:    cfg.LowerLimit,
			CDFThreshold:  cfg.CDFThreshold,
			MinSampleSize: cfg.MinSampleSize,
			Strict:        cfg.Strict,
		},
	}
	if !cfg.ReferencePeriod.IsZero() {
		start, end, err := cfg.ReferencePeriod.Dates()
		if err != nil {
			return err
		}
		ccfg.ReferencePeriod = corrector.Period{Start: start, End: end}
	}
	if !cfg.CorrectionPeriod.IsZero() {
		start, end, err := cfg.CorrectionPeriod.Dates()
		if err != nil {
			return err
		}
		ccfg.CorrectionPeriod = corrector.Period{Start: start, End: end}
	}

	store, err := buildStore(cfg, ccfg.Options)
	if err != nil {
		return err
	}

	var c *corrector.Corrector
	switch cfg.Method {
	case "quantile_mapping":
		c, err = corrector.NewQuantileMapping(obs, mod, sce, store, ccfg)
	case "scaled_distribution_mapping":
		c, err = corrector.NewScaledDistributionMapping(obs, mod, sce, store, ccfg)
	default:
		return fmt.Errorf("unknown method %q", cfg.Method)
	}
	if err != nil {
		return err
	}

	log.Infow("starting correction",
		"method", cfg.Method, "scenarios", len(sce), "workers", cfg.Workers)
	return c.Run(units)
}

func buildStore(cfg *config.Config, opts correction.Options) (corrector.Store, error) {
	files, err := storage.NewNetCDFStore(cfg.WorkDir)
	if err != nil {
		return nil, err
	}
	if cfg.Catalog == "" {
		return files, nil
	}
	cat, err := storage.OpenCatalog(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	log.Infow("recording artifacts", "catalog", cfg.Catalog, "run", cat.RunID())
	return &storage.CatalogedStore{Files: files, Catalog: cat, Params: opts}, nil
}

func parseUnits(spec string) ([]int, error) {
	if spec == "" {
		return nil, nil
	}
	parts := strings.Split(spec, ",")
	units := make([]int, len(parts))
	for i, p := range parts {
		u, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		units[i] = u
	}
	return units, nil
}
