// Package correction implements the per-cell bias-correction methods:
// quantile mapping and the absolute (normal) and relative (gamma) variants
// of scaled distribution mapping.
//
// A method operates on the time series of a single grid cell: an immutable
// observation series and model series from the shared reference period, and
// any number of owned scenario buffers that are corrected in place. Methods
// are pure over their inputs, so cells may be processed in any order or in
// parallel with identical results.
package correction

import (
	"errors"
	"fmt"

	"github.com/climatools/biascorrect/internal/log"
)

// CF standard names with an implemented scaled-distribution-mapping variant.
const (
	QuantityAirTemperature = "air_temperature"
	QuantityPrecipitation  = "precipitation_amount"
	QuantityShortwaveFlux  = "surface_downwelling_shortwave_flux_in_air"
)

// ErrUnknownQuantity is returned by Dispatch in strict mode when no variant
// exists for a physical quantity.
var ErrUnknownQuantity = errors.New("scaled distribution mapping not implemented for quantity")

// Method corrects the scenario series of one grid cell against the
// observation and model reference series. obs and mod must not be modified;
// each sce element is mutated in place.
type Method interface {
	Name() string
	Correct(obs, mod []float64, sce [][]float64) error
}

// Options carries the tunable parameters of the correction methods. Zero
// values select the method defaults.
type Options struct {
	// LowerLimit is the wet-day threshold of the relative variant
	// (default 0.1).
	LowerLimit float64
	// CDFThreshold clips fitted CDF values away from 0 and 1
	// (default 0.99999 absolute, 0.99999999 relative).
	CDFThreshold float64
	// MinSampleSize is the minimal number of wet samples required for a
	// gamma fit (default 10).
	MinSampleSize int
	// Strict turns an unknown physical quantity into a configuration error
	// instead of a logged pass-through.
	Strict bool
}

// Dispatch selects the scaled-distribution-mapping variant for a physical
// quantity at configuration time. Temperature-like quantities use the
// absolute (normal) variant, precipitation- and shortwave-flux-like
// quantities the relative (gamma) variant.
//
// An unknown quantity is an error in strict mode; otherwise it is logged and
// a pass-through method is returned, leaving scenario data untouched.
func Dispatch(quantity string, opts Options) (Method, error) {
	switch quantity {
	case QuantityAirTemperature:
		return NewAbsoluteSDM(opts), nil
	case QuantityPrecipitation, QuantityShortwaveFlux:
		return NewRelativeSDM(opts), nil
	}
	if opts.Strict {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuantity, quantity)
	}
	log.Errorf("scaled distribution mapping not implemented for %s, data passes through uncorrected", quantity)
	return Passthrough{}, nil
}

// Passthrough leaves scenario data unmodified. It backs the permissive
// dispatch fallback for unsupported quantities.
type Passthrough struct{}

func (Passthrough) Name() string { return "passthrough" }

func (Passthrough) Correct(obs, mod []float64, sce [][]float64) error { return nil }
