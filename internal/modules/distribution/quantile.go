// Package distribution provides quantile and density estimation over
// empirical return distributions.
package distribution

import (
	"math"
	"sort"

	"github.com/fundbuilder/saver/internal/domain"
)

// EmpiricalPercentile returns the p-th percentile (p on a 0-100 scale) of the
// distribution using linear interpolation between the two order statistics
// bracketing rank p/100*(n-1), the same convention as numpy's default
// "linear" method.
//
// The input is not mutated; sorting happens on a copy.
func EmpiricalPercentile(returns domain.ReturnDistribution, p float64) (float64, error) {
	if len(returns) == 0 {
		return 0, &domain.EmptyDistributionError{}
	}
	if math.IsNaN(p) || p < 0 || p > 100 {
		return 0, &domain.InvalidParameterError{Name: "percentile", Reason: "must be in [0, 100]"}
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0], nil
	}
	if p >= 100 {
		return sorted[len(sorted)-1], nil
	}

	rank := p / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1], nil
	}

	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight, nil
}
