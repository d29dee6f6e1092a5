package correction

// QuantileMapping corrects scenario values by the difference of
// linear-interpolated percentiles between the observation and model
// distributions, evaluated at each value's percentile rank under the model
// empirical CDF. No distributional assumption is made and no tail
// extrapolation is performed.
type QuantileMapping struct{}

// NewQuantileMapping returns the empirical quantile mapping method.
func NewQuantileMapping() QuantileMapping { return QuantileMapping{} }

func (QuantileMapping) Name() string { return "quantile_mapping" }

// Correct adds percentile(obs, p) - percentile(mod, p) to every scenario
// sample, where p is the sample's rank under the model ECDF. Identical
// observation and model series therefore yield a zero correction.
func (QuantileMapping) Correct(obs, mod []float64, sce [][]float64) error {
	obsSorted := sortedCopy(obs)
	modSorted := sortedCopy(mod)
	for _, s := range sce {
		for i, v := range s {
			p := ecdfRank(modSorted, v) * 100
			s[i] = v + percentile(obsSorted, p) - percentile(modSorted, p)
		}
	}
	return nil
}
