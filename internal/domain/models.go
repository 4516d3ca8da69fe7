// Package domain contains the pure data types shared across the application.
// The domain layer has no infrastructure dependencies - types here are plain
// values, and every derived entity is recomputed on each call rather than
// cached, so there is no staleness to manage.
package domain

import (
	"math"
	"time"
)

const (
	// TradingDaysPerMonth converts the user-facing horizon (months) into the
	// trading-day window lengths the return engine operates on.
	TradingDaysPerMonth = 21

	// DefaultRiskFreeRate is the annualized risk-free rate assumed when the
	// caller does not supply one.
	DefaultRiskFreeRate = 0.03
)

// PricePoint is a single daily closing price.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries is an ordered sequence of daily prices.
// Invariants: strictly increasing dates, strictly positive finite closes,
// at least one element. Validate reports the first violation.
type PriceSeries []PricePoint

// Validate checks the series invariants and returns the first violation found.
func (s PriceSeries) Validate() error {
	if len(s) == 0 {
		return &InsufficientDataError{Have: 0, Need: 1}
	}
	for i, p := range s {
		if p.Close <= 0 || math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			return &InvalidPriceDataError{Index: i, Price: p.Close}
		}
		if i > 0 && !s[i-1].Date.Before(p.Date) {
			return &InvalidPriceDataError{Index: i, Price: p.Close, Reason: "dates not strictly increasing"}
		}
	}
	return nil
}

// Closes returns the closing prices as a plain float64 slice.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, p := range s {
		closes[i] = p.Close
	}
	return closes
}

// Between returns the sub-series with dates in [from, to] inclusive.
// Zero-valued bounds are treated as unbounded.
func (s PriceSeries) Between(from, to time.Time) PriceSeries {
	out := make(PriceSeries, 0, len(s))
	for _, p := range s {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ReturnDistribution is a sequence of fractional returns (0.01 = 1%) derived
// from overlapping k-day windows over a price series. Emission order is
// chronological by window start, but consumers treat it as an unordered
// multiset for statistics.
type ReturnDistribution []float64

// MarketAllocation is the result of the safety-first allocation rule: a
// two-asset split between the risky market asset and a risk-free asset.
// RiskFreeWeight is always exactly 1 - MarketWeight.
type MarketAllocation struct {
	Percentile                 float64 `json:"percentile"`
	MarketWeight               float64 `json:"market_weight"`
	RiskFreeWeight             float64 `json:"risk_free_weight"`
	MarketQuantile             float64 `json:"market_quantile"`
	RiskFreeReturn             float64 `json:"risk_free_return"`
	ExpectedReturnAtPercentile float64 `json:"expected_return_at_percentile"`
}

// DensityEstimate is a kernel density estimate over a return distribution,
// evaluated on an evenly spaced ascending grid. CDF[i] is the cumulative
// probability up to X[i], non-decreasing and bounded in [0,1].
type DensityEstimate struct {
	X       []float64 `json:"x"`
	Density []float64 `json:"density"`
	CDF     []float64 `json:"cdf"`
}
