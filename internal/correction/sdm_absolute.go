package correction

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

const defaultAbsoluteCDFThreshold = 0.99999

// AbsoluteSDM is scaled distribution mapping for unbounded quantities such
// as temperature. It assumes a normal distribution after removal of a linear
// trend; the corrected output keeps the scenario's own trend and rank order
// while its mean and variance are brought into correspondence with the
// observation/model bias.
type AbsoluteSDM struct {
	CDFThreshold float64
}

// NewAbsoluteSDM builds the absolute variant from opts, falling back to the
// method defaults for zero values.
func NewAbsoluteSDM(opts Options) AbsoluteSDM {
	m := AbsoluteSDM{CDFThreshold: opts.CDFThreshold}
	if m.CDFThreshold == 0 {
		m.CDFThreshold = defaultAbsoluteCDFThreshold
	}
	return m
}

func (AbsoluteSDM) Name() string { return "absolute_sdm" }

func (m AbsoluteSDM) Correct(obs, mod []float64, sce [][]float64) error {
	threshold := m.CDFThreshold
	obsMean := mean(obs)
	modMean := mean(mod)

	obsDetrended, _ := detrend(obs)
	modDetrended, _ := detrend(mod)

	obsNorm, err := fitNormal(obsDetrended)
	if err != nil {
		return fmt.Errorf("observation series: %w", err)
	}
	modNorm, err := fitNormal(modDetrended)
	if err != nil {
		return fmt.Errorf("model series: %w", err)
	}

	obsCDF := sortedNormCDF(obsDetrended, obsNorm)
	modCDF := sortedNormCDF(modDetrended, modNorm)
	clampCDF(obsCDF, threshold)
	clampCDF(modCDF, threshold)

	sigmaRatio := obsNorm.Sigma / modNorm.Sigma

	for _, s := range sce {
		n := len(s)
		sceMean := mean(s)
		sceDetrended, sceTrend := detrend(s)

		sortedDetrended, order := argsort(sceDetrended)
		sceNorm, err := fitNormal(sceDetrended)
		if err != nil {
			return fmt.Errorf("scenario series: %w", err)
		}
		sceCDF := make([]float64, n)
		for i, v := range sortedDetrended {
			sceCDF[i] = sceNorm.CDF(v)
		}
		clampCDF(sceCDF, threshold)

		obsCDFIntpol := interpRanks(obsCDF, n)
		modCDFIntpol := interpRanks(modCDF, n)

		// Shift the CDFs around their center and combine them through the
		// inverse-spread transform 1/(0.5 - |x|); the sign split keeps both
		// tails symmetric around the median.
		adapted := make([]float64, n)
		for i := 0; i < n; i++ {
			obsShift := obsCDFIntpol[i] - 0.5
			modShift := modCDFIntpol[i] - 0.5
			sceShift := sceCDF[i] - 0.5
			obsInv := 1 / (0.5 - abs(obsShift))
			modInv := 1 / (0.5 - abs(modShift))
			sceInv := 1 / (0.5 - abs(sceShift))
			a := sign(obsShift) * (1 - 1/(obsInv*sceInv/modInv))
			if a < 0 {
				a++
			}
			adapted[i] = a
		}
		clampCDF(adapted, threshold)
		sort.Float64s(adapted)

		xvals := make([]float64, n)
		for i := 0; i < n; i++ {
			xvals[i] = obsNorm.Quantile(adapted[i]) +
				sigmaRatio*(sceNorm.Quantile(sceCDF[i])-modNorm.Quantile(sceCDF[i]))
		}
		shift := obsMean + sceMean - modMean - mean(xvals)
		for i := range xvals {
			xvals[i] += shift
		}

		// Scatter the corrected values back to the scenario's original rank
		// positions, then restore the removed trend. The trend component
		// carries the scenario mean, which was already accounted for above.
		corrected := make([]float64, n)
		for i, pos := range order {
			corrected[pos] = xvals[i]
		}
		for i := range s {
			s[i] = corrected[i] + sceTrend[i] - sceMean
		}
	}
	return nil
}

// sortedNormCDF evaluates the fitted normal CDF over the sorted samples.
func sortedNormCDF(vals []float64, dist distuv.Normal) []float64 {
	sorted := sortedCopy(vals)
	cdf := make([]float64, len(sorted))
	for i, v := range sorted {
		cdf[i] = dist.CDF(v)
	}
	return cdf
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
