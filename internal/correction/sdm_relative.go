package correction

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	defaultLowerLimit           = 0.1
	defaultRelativeCDFThreshold = 0.99999999
	defaultMinSampleSize        = 10
)

// RelativeSDM is scaled distribution mapping for zero-lower-bounded
// quantities such as precipitation or shortwave flux. It fits gamma
// distributions to the wet samples (values at or above LowerLimit) and
// additionally rebalances the wet-day frequency of the corrected output
// toward what the observation/model bias implies.
//
// Cells whose observation or model series hold fewer than MinSampleSize wet
// samples are left uncorrected; this is a robustness policy, not an error.
type RelativeSDM struct {
	LowerLimit    float64
	CDFThreshold  float64
	MinSampleSize int
}

// NewRelativeSDM builds the relative variant from opts, falling back to the
// method defaults for zero values.
func NewRelativeSDM(opts Options) RelativeSDM {
	m := RelativeSDM{
		LowerLimit:    opts.LowerLimit,
		CDFThreshold:  opts.CDFThreshold,
		MinSampleSize: opts.MinSampleSize,
	}
	if m.LowerLimit == 0 {
		m.LowerLimit = defaultLowerLimit
	}
	if m.CDFThreshold == 0 {
		m.CDFThreshold = defaultRelativeCDFThreshold
	}
	if m.MinSampleSize == 0 {
		m.MinSampleSize = defaultMinSampleSize
	}
	return m
}

func (RelativeSDM) Name() string { return "relative_sdm" }

func (m RelativeSDM) Correct(obs, mod []float64, sce [][]float64) error {
	obsWet := m.wetSamples(obs)
	modWet := m.wetSamples(mod)
	if len(obsWet) < m.MinSampleSize || len(modWet) < m.MinSampleSize {
		return nil
	}

	obsFreq := float64(len(obsWet)) / float64(len(obs))
	modFreq := float64(len(modWet)) / float64(len(mod))

	obsGamma, err := fitGamma(obsWet)
	if err != nil {
		return fmt.Errorf("observation series: %w", err)
	}
	modGamma, err := fitGamma(modWet)
	if err != nil {
		return fmt.Errorf("model series: %w", err)
	}

	obsCDF := sortedGammaCDF(obsWet, obsGamma)
	modCDF := sortedGammaCDF(modWet, modGamma)
	capCDF(obsCDF, m.CDFThreshold)
	capCDF(modCDF, m.CDFThreshold)

	for _, s := range sce {
		sceWet := m.wetSamples(s)
		if len(sceWet) < m.MinSampleSize {
			continue
		}

		n := len(s)
		sceFreq := float64(len(sceWet)) / float64(n)
		_, order := argsort(s)

		sceGamma, err := fitGamma(sceWet)
		if err != nil {
			return fmt.Errorf("scenario series: %w", err)
		}

		expectedWet := int(math.Round(float64(n) * obsFreq * sceFreq / modFreq))
		if expectedWet > n {
			expectedWet = n
		}

		sceCDF := sortedGammaCDF(sceWet, sceGamma)
		capCDF(sceCDF, m.CDFThreshold)

		obsCDFIntpol := interpRanks(obsCDF, len(sceWet))
		modCDFIntpol := interpRanks(modCDF, len(sceWet))

		// One-sided inverse-spread adaptation; gamma has a fixed lower
		// bound so no sign split is needed.
		adapted := make([]float64, len(sceWet))
		for i := range adapted {
			obsInv := 1 / (1 - obsCDFIntpol[i])
			modInv := 1 / (1 - modCDFIntpol[i])
			sceInv := 1 / (1 - sceCDF[i])
			a := 1 - 1/(obsInv*sceInv/modInv)
			if a < 0 {
				a = 0
			}
			adapted[i] = a
		}
		sort.Float64s(adapted)

		xvals := make([]float64, len(sceWet))
		for i := range xvals {
			xvals[i] = obsGamma.Quantile(adapted[i]) *
				sceGamma.Quantile(sceCDF[i]) / modGamma.Quantile(sceCDF[i])
		}

		// Resize to the expected number of wet days: rank-interpolate down,
		// left-pad with zeros (newly dry days) up.
		if len(sceWet) > expectedWet {
			xvals = interpRanks(xvals, expectedWet)
		} else if len(sceWet) < expectedWet {
			xvals = append(make([]float64, expectedWet-len(sceWet)), xvals...)
		}

		// The wettest original days receive the adjusted wet values, all
		// remaining days become dry.
		corrected := make([]float64, n)
		for i, pos := range order[n-expectedWet:] {
			corrected[pos] = xvals[i]
		}
		copy(s, corrected)
	}
	return nil
}

func (m RelativeSDM) wetSamples(vals []float64) []float64 {
	var wet []float64
	for _, v := range vals {
		if v >= m.LowerLimit {
			wet = append(wet, v)
		}
	}
	return wet
}

// sortedGammaCDF evaluates the fitted gamma CDF over the sorted wet samples.
func sortedGammaCDF(vals []float64, dist distuv.Gamma) []float64 {
	sorted := sortedCopy(vals)
	cdf := make([]float64, len(sorted))
	for i, v := range sorted {
		cdf[i] = dist.CDF(v)
	}
	return cdf
}
