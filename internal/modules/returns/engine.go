// Package returns derives empirical return distributions from price history.
package returns

import (
	"math"

	"github.com/fundbuilder/saver/internal/domain"
)

// Compute calculates the overlapping windowDays-day rolling returns of a
// price series: for every valid start index i it emits
// prices[i+windowDays]/prices[i] - 1, yielding exactly N - windowDays values.
//
// Consecutive windows share most of their days, so the samples are
// autocorrelated rather than independent draws. Downstream statistics treat
// them as i.i.d., a known approximation that inflates apparent sample size.
func Compute(prices domain.PriceSeries, windowDays int) (domain.ReturnDistribution, error) {
	if windowDays <= 0 {
		return nil, &domain.InvalidParameterError{Name: "window_days", Reason: "must be a positive number of trading days"}
	}

	n := len(prices)
	if n <= windowDays {
		return nil, &domain.InsufficientDataError{Have: n, Need: windowDays + 1}
	}

	// Fail fast on the first corrupt price rather than skipping it silently:
	// a single bad point would contaminate every window that spans it.
	for i, p := range prices {
		if p.Close <= 0 || math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			return nil, &domain.InvalidPriceDataError{Index: i, Price: p.Close}
		}
	}

	dist := make(domain.ReturnDistribution, 0, n-windowDays)
	for i := 0; i < n-windowDays; i++ {
		dist = append(dist, prices[i+windowDays].Close/prices[i].Close-1)
	}

	return dist, nil
}
