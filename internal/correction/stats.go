package correction

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// errDegenerate marks sample sets no distribution can be fitted to (constant
// series, non-positive precipitation samples). Degenerate fits abort the
// correction of the current unit; there is no recovery path.
var errDegenerate = errors.New("degenerate sample distribution")

func sortedCopy(vals []float64) []float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	return s
}

// percentile computes the p-th linear-interpolated percentile (0-100 scale)
// of pre-sorted data.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p / 100
	if h <= 0 {
		return sorted[0]
	}
	if h >= float64(n-1) {
		return sorted[n-1]
	}
	i := int(h)
	return sorted[i] + (h-float64(i))*(sorted[i+1]-sorted[i])
}

// ecdfRank evaluates the empirical CDF of pre-sorted samples at v: the
// fraction of samples less than or equal to v.
func ecdfRank(sorted []float64, v float64) float64 {
	n := sort.Search(len(sorted), func(i int) bool { return sorted[i] > v })
	return float64(n) / float64(len(sorted))
}

// interpRanks linearly interpolates vals, treated as samples at ranks
// 1..len(vals), onto m evenly spaced ranks over the same span.
func interpRanks(vals []float64, m int) []float64 {
	n := len(vals)
	out := make([]float64, m)
	if m == 1 {
		out[0] = vals[0]
		return out
	}
	for j := 0; j < m; j++ {
		pos := float64(n-1) * float64(j) / float64(m-1)
		i := int(pos)
		if i >= n-1 {
			out[j] = vals[n-1]
			continue
		}
		out[j] = vals[i] + (pos-float64(i))*(vals[i+1]-vals[i])
	}
	return out
}

// detrend removes the ordinary-least-squares linear trend from vals. It
// returns the residuals and the removed component, so the caller can restore
// the trend after correction.
func detrend(vals []float64) (detrended, removed []float64) {
	n := len(vals)
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(xs, vals, nil, false)
	detrended = make([]float64, n)
	removed = make([]float64, n)
	for i, v := range vals {
		removed[i] = alpha + beta*float64(i)
		detrended[i] = v - removed[i]
	}
	return detrended, removed
}

// argsort returns an ascending copy of vals together with the original index
// of each sorted element.
func argsort(vals []float64) (sorted []float64, idx []int) {
	sorted = append([]float64(nil), vals...)
	idx = make([]int, len(vals))
	floats.Argsort(sorted, idx)
	return sorted, idx
}

// fitNormal fits a normal distribution by maximum likelihood (population
// standard deviation).
func fitNormal(vals []float64) (distuv.Normal, error) {
	mu := stat.Mean(vals, nil)
	var ss float64
	for _, v := range vals {
		d := v - mu
		ss += d * d
	}
	sigma := math.Sqrt(ss / float64(len(vals)))
	if sigma == 0 || math.IsNaN(sigma) {
		return distuv.Normal{}, fmt.Errorf("normal fit: %w", errDegenerate)
	}
	return distuv.Normal{Mu: mu, Sigma: sigma}, nil
}

// fitGamma fits a gamma distribution with the location fixed at zero by
// maximum likelihood. The shape starts from the closed-form approximation of
// Minka and is refined by Newton steps on the log-likelihood gradient
// ln(a) - digamma(a) - s, with trigamma(a) = zeta(2, a).
func fitGamma(vals []float64) (distuv.Gamma, error) {
	n := float64(len(vals))
	var sum, sumLog float64
	for _, v := range vals {
		if v <= 0 {
			return distuv.Gamma{}, fmt.Errorf("gamma fit: non-positive sample %v: %w", v, errDegenerate)
		}
		sum += v
		sumLog += math.Log(v)
	}
	mean := sum / n
	s := math.Log(mean) - sumLog/n
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return distuv.Gamma{}, fmt.Errorf("gamma fit: %w", errDegenerate)
	}

	a := (3 - s + math.Sqrt((s-3)*(s-3)+24*s)) / (12 * s)
	for i := 0; i < 50; i++ {
		f := math.Log(a) - mathext.Digamma(a) - s
		fp := 1/a - mathext.Zeta(2, a)
		next := a - f/fp
		if next <= 0 || math.IsNaN(next) {
			next = a / 2
		}
		if math.Abs(next-a) <= 1e-10*a {
			a = next
			break
		}
		a = next
	}
	return distuv.Gamma{Alpha: a, Beta: a / mean}, nil
}

// clampCDF clips CDF values into [1-threshold, threshold] so the quantile
// function stays finite at both tails.
func clampCDF(cdf []float64, threshold float64) {
	lo := 1 - threshold
	for i, v := range cdf {
		if v > threshold {
			cdf[i] = threshold
		} else if v < lo {
			cdf[i] = lo
		}
	}
}

// capCDF clips CDF values at the upper threshold only; one-sided
// distributions keep their natural lower bound.
func capCDF(cdf []float64, threshold float64) {
	for i, v := range cdf {
		if v > threshold {
			cdf[i] = threshold
		}
	}
}

func mean(vals []float64) float64 {
	return stat.Mean(vals, nil)
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
