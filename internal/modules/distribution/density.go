package distribution

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fundbuilder/saver/internal/domain"
)

// DefaultResolution is the grid size used when the caller does not specify
// one. Matches the 200-point grid the dashboard renders.
const DefaultResolution = 200

// EstimateDensity builds a Gaussian kernel density estimate of the return
// distribution on an evenly spaced grid of resolution points spanning
// [min(returns), max(returns)] inclusive.
//
// Bandwidth follows Silverman's rule of thumb,
// h = 0.9 * min(sd, IQR/1.34) * n^(-1/5), which is deterministic for a given
// input so results are reproducible. The density is renormalized so that its
// trapezoidal integral over the grid is exactly 1; the kernel mass falling
// outside [min, max] would otherwise leave the cumulative estimate short of 1
// at the upper edge. The CDF is the running trapezoidal integral of the
// normalized density, clamped so it is non-decreasing and bounded in [0, 1].
//
// Error split for unusable inputs: a zero-length distribution reports
// EmptyDistributionError (no data reached the statistic at all), while a
// non-empty distribution with fewer than 2 distinct values reports
// InsufficientDataError (data arrived but cannot support a bandwidth).
func EstimateDensity(returns domain.ReturnDistribution, resolution int) (domain.DensityEstimate, error) {
	if resolution < 2 {
		return domain.DensityEstimate{}, &domain.InvalidParameterError{Name: "resolution", Reason: "must be at least 2 grid points"}
	}
	if len(returns) == 0 {
		return domain.DensityEstimate{}, &domain.EmptyDistributionError{}
	}

	lo, hi := minMax(returns)
	if lo == hi {
		// All values identical: the kernel bandwidth is undefined.
		return domain.DensityEstimate{}, &domain.InsufficientDataError{Have: 1, Need: 2}
	}

	h := silvermanBandwidth(returns)

	grid := make([]float64, resolution)
	floats.Span(grid, lo, hi)

	n := float64(len(returns))
	density := make([]float64, resolution)
	for j, x := range grid {
		sum := 0.0
		for _, r := range returns {
			sum += distuv.UnitNormal.Prob((x - r) / h)
		}
		density[j] = sum / (n * h)
	}

	// Running trapezoidal integral, then renormalize to total mass 1.
	step := grid[1] - grid[0]
	cdf := make([]float64, resolution)
	for j := 1; j < resolution; j++ {
		cdf[j] = cdf[j-1] + step*(density[j-1]+density[j])/2
	}
	total := cdf[resolution-1]
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return domain.DensityEstimate{}, &domain.InsufficientDataError{Have: len(returns), Need: 2}
	}
	for j := range density {
		density[j] /= total
	}

	prev := 0.0
	for j := range cdf {
		v := cdf[j] / total
		if v < prev {
			v = prev
		}
		if v > 1 {
			v = 1
		}
		cdf[j] = v
		prev = v
	}

	return domain.DensityEstimate{X: grid, Density: density, CDF: cdf}, nil
}

// BoundaryAtPercentile returns the largest grid x whose cumulative estimate
// does not exceed p/100 - the right edge of the "worst p%" region on the
// rendered density chart.
//
// This is a grid-resolution-limited approximation of the true quantile and is
// intended for visualization only; it will generally disagree slightly with
// EmpiricalPercentile at finite resolution. Callers needing an exact quantile
// must use EmpiricalPercentile. When even the first grid point exceeds p/100
// the lower grid edge is returned.
func BoundaryAtPercentile(est domain.DensityEstimate, p float64) (float64, error) {
	if len(est.X) == 0 || len(est.CDF) != len(est.X) {
		return 0, &domain.EmptyDistributionError{}
	}
	if math.IsNaN(p) || p < 0 || p > 100 {
		return 0, &domain.InvalidParameterError{Name: "percentile", Reason: "must be in [0, 100]"}
	}

	target := p / 100.0
	boundary := est.X[0]
	for i, c := range est.CDF {
		if c > target {
			break
		}
		boundary = est.X[i]
	}
	return boundary, nil
}

// silvermanBandwidth computes Silverman's rule-of-thumb bandwidth. When the
// interquartile range collapses to zero (heavily tied data) the standard
// deviation alone is used so the bandwidth stays positive.
func silvermanBandwidth(returns domain.ReturnDistribution) float64 {
	n := float64(len(returns))
	sd := stat.StdDev(returns, nil)

	q25, _ := EmpiricalPercentile(returns, 25)
	q75, _ := EmpiricalPercentile(returns, 75)
	iqr := q75 - q25

	spread := sd
	if iqr > 0 && iqr/1.34 < spread {
		spread = iqr / 1.34
	}

	return 0.9 * spread * math.Pow(n, -0.2)
}

func minMax(values []float64) (lo, hi float64) {
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
