// Package allocation implements the safety-first two-asset allocation rule:
// size the risky exposure so that a chosen worst-case percentile of portfolio
// return stays within a stated loss tolerance.
package allocation

import (
	"math"

	"github.com/fundbuilder/saver/internal/domain"
	"github.com/fundbuilder/saver/internal/modules/distribution"
)

// ComputeOptimalAllocation solves for the market/risk-free split whose return
// at the given percentile equals lossTolerance, under linear mixing of the
// two assets' returns over the horizon:
//
//	w = (lossTolerance - riskFree) / (marketQ - riskFree)
//
// where marketQ is the empirical percentile of the rolling-return
// distribution and riskFree is the annual rate compounded over horizonMonths.
//
// When the denominator is exactly zero the market offers no distinction from
// the risk-free asset at this percentile and the weight is 0 (fully
// risk-free). That is a defined business rule, not an error.
//
// The weight is clamped to [0, 1] - no leverage, no shorting. When the
// unclamped solution falls outside that band the requested tolerance cannot
// be met exactly; ExpectedReturnAtPercentile always reflects the clamped
// weight so callers can detect the divergence.
func ComputeOptimalAllocation(
	returns domain.ReturnDistribution,
	horizonMonths int,
	lossTolerance float64,
	percentile float64,
	riskFreeAnnualRate float64,
) (domain.MarketAllocation, error) {
	if horizonMonths <= 0 {
		return domain.MarketAllocation{}, &domain.InvalidParameterError{Name: "horizon_months", Reason: "must be a positive number of months"}
	}
	if math.IsNaN(percentile) || percentile <= 0 || percentile >= 100 {
		return domain.MarketAllocation{}, &domain.InvalidParameterError{Name: "percentile", Reason: "must be in the open interval (0, 100)"}
	}

	marketQ, err := distribution.EmpiricalPercentile(returns, percentile)
	if err != nil {
		return domain.MarketAllocation{}, err
	}

	riskFree := math.Pow(1+riskFreeAnnualRate, float64(horizonMonths)/12.0) - 1

	var w float64
	if denom := marketQ - riskFree; denom != 0 {
		w = (lossTolerance - riskFree) / denom
	}

	w = math.Max(0, math.Min(1, w))

	return domain.MarketAllocation{
		Percentile:                 percentile,
		MarketWeight:               w,
		RiskFreeWeight:             1 - w,
		MarketQuantile:             marketQ,
		RiskFreeReturn:             riskFree,
		ExpectedReturnAtPercentile: w*marketQ + (1-w)*riskFree,
	}, nil
}
