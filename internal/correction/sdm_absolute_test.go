package correction

import (
	"math"
	"testing"
)

// smooth deterministic series with the given mean, spread and linear trend
func syntheticSeries(n int, mean, spread, trend float64) []float64 {
	vals := make([]float64, n)
	for i := range vals {
		x := float64(i)
		vals[i] = mean + trend*x +
			spread*(math.Sin(0.7*x)+0.4*math.Sin(2.3*x+1.1)+0.2*math.Cos(5.1*x))
	}
	return vals
}

func TestAbsoluteSDMFirstMoment(t *testing.T) {
	obs := syntheticSeries(200, 10, 1.5, 0.01)
	mod := syntheticSeries(200, 12, 2.0, 0.015)
	sce := syntheticSeries(200, 14, 2.0, 0.02)

	obsMean := mean(obs)
	modMean := mean(mod)
	sceMean := mean(sce)

	m := NewAbsoluteSDM(Options{})
	if err := m.Correct(obs, mod, [][]float64{sce}); err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}

	expected := obsMean + sceMean - modMean
	if got := mean(sce); math.Abs(got-expected) > 1e-6 {
		t.Errorf("corrected mean = %v, expected %v", got, expected)
	}
}

func TestAbsoluteSDMIdentity(t *testing.T) {
	// identical observation and model series leave the scenario unchanged up
	// to floating-point noise; an affine scenario keeps the rank geometry of
	// all three CDFs aligned so the identity is exact
	obs := syntheticSeries(150, 8, 1.2, 0.005)
	mod := append([]float64(nil), obs...)
	sce := make([]float64, len(obs))
	for i, v := range obs {
		sce[i] = 1.1*v + 2
	}
	orig := append([]float64(nil), sce...)

	m := NewAbsoluteSDM(Options{})
	if err := m.Correct(obs, mod, [][]float64{sce}); err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}
	for i := range sce {
		if math.Abs(sce[i]-orig[i]) > 1e-6 {
			t.Fatalf("sce[%d] = %v, expected %v", i, sce[i], orig[i])
		}
	}
}

func TestAbsoluteSDMPreservesTrend(t *testing.T) {
	obs := syntheticSeries(200, 10, 1.5, 0)
	mod := syntheticSeries(200, 11, 1.5, 0)
	sce := syntheticSeries(200, 12, 1.5, 0.05)

	_, sceTrend := detrend(sce)

	m := NewAbsoluteSDM(Options{})
	if err := m.Correct(obs, mod, [][]float64{sce}); err != nil {
		t.Fatalf("Correct returned error: %v", err)
	}

	// the corrected series must carry the scenario's own trend
	_, corrTrend := detrend(sce)
	trendSlopeBefore := sceTrend[1] - sceTrend[0]
	trendSlopeAfter := corrTrend[1] - corrTrend[0]
	if math.Abs(trendSlopeAfter-trendSlopeBefore) > 0.02 {
		t.Errorf("trend slope changed from %v to %v", trendSlopeBefore, trendSlopeAfter)
	}
}

func TestAbsoluteSDMDegenerateInput(t *testing.T) {
	obs := make([]float64, 50) // constant
	mod := syntheticSeries(50, 10, 1, 0)
	sce := syntheticSeries(50, 10, 1, 0)

	m := NewAbsoluteSDM(Options{})
	if err := m.Correct(obs, mod, [][]float64{sce}); err == nil {
		t.Error("expected error for constant observation series")
	}
}
