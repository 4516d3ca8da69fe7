// Package analysis orchestrates the full pipeline for a single dashboard
// request: price history -> rolling-return distribution -> density estimate
// and safety-first allocation.
package analysis

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/fundbuilder/saver/internal/domain"
	"github.com/fundbuilder/saver/internal/modules/allocation"
	"github.com/fundbuilder/saver/internal/modules/distribution"
	"github.com/fundbuilder/saver/internal/modules/returns"
)

// PriceSource supplies the price history for a date range. Implemented by
// the prices repository; tests substitute an in-memory source.
type PriceSource interface {
	Series(from, to time.Time) (domain.PriceSeries, error)
}

// Request carries the user-facing parameters of one analysis run. The
// horizon is expressed in months; the engine window is derived via the fixed
// 21-trading-days-per-month convention.
type Request struct {
	From               time.Time `json:"from"`
	To                 time.Time `json:"to"`
	HorizonMonths      int       `json:"horizon_months"`
	LossTolerance      float64   `json:"loss_tolerance"`
	Percentile         float64   `json:"percentile"`
	RiskFreeAnnualRate float64   `json:"risk_free_annual_rate"`
	Resolution         int       `json:"resolution,omitempty"`
}

// ReturnsSummary describes the derived return distribution.
type ReturnsSummary struct {
	WindowDays    int     `json:"window_days"`
	Count         int     `json:"count"`
	Mean          float64 `json:"mean"`
	StdDev        float64 `json:"std_dev"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	AnnualizedVol float64 `json:"annualized_volatility"`
}

// Result bundles everything the dashboard renders for one run. DangerBoundary
// is the right edge of the worst-percentile region on the density chart, a
// grid-limited approximation distinct from the optimizer's exact quantile.
type Result struct {
	Returns        ReturnsSummary            `json:"returns"`
	Distribution   domain.ReturnDistribution `json:"distribution"`
	Density        domain.DensityEstimate    `json:"density"`
	Allocation     domain.MarketAllocation   `json:"allocation"`
	DangerBoundary float64                   `json:"danger_boundary"`
}

// Service runs analysis requests against a price source.
type Service struct {
	source PriceSource
	log    zerolog.Logger
}

// NewService creates a new analysis service
func NewService(source PriceSource, log zerolog.Logger) *Service {
	return &Service{
		source: source,
		log:    log.With().Str("service", "analysis").Logger(),
	}
}

// ComputeReturns derives the rolling-return distribution for the request's
// date range and horizon.
func (s *Service) ComputeReturns(req Request) (domain.ReturnDistribution, int, error) {
	if req.HorizonMonths <= 0 {
		return nil, 0, &domain.InvalidParameterError{Name: "horizon_months", Reason: "must be a positive number of months"}
	}
	windowDays := req.HorizonMonths * domain.TradingDaysPerMonth

	series, err := s.source.Series(req.From, req.To)
	if err != nil {
		return nil, 0, err
	}

	dist, err := returns.Compute(series, windowDays)
	if err != nil {
		return nil, 0, err
	}

	s.log.Debug().
		Int("window_days", windowDays).
		Int("prices", len(series)).
		Int("returns", len(dist)).
		Msg("Computed rolling returns")
	return dist, windowDays, nil
}

// Run executes the full pipeline. The density and allocation legs are
// independent consumers of the same distribution, so they run concurrently;
// both are pure CPU-bound functions, and ctx bounds the whole call for
// callers that want a timeout.
func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	dist, windowDays, err := s.ComputeReturns(req)
	if err != nil {
		return Result{}, err
	}

	resolution := req.Resolution
	if resolution == 0 {
		resolution = distribution.DefaultResolution
	}

	var (
		density domain.DensityEstimate
		alloc   domain.MarketAllocation
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		density, err = distribution.EstimateDensity(dist, resolution)
		return err
	})
	g.Go(func() error {
		var err error
		alloc, err = allocation.ComputeOptimalAllocation(
			dist, req.HorizonMonths, req.LossTolerance, req.Percentile, req.RiskFreeAnnualRate)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	boundary, err := distribution.BoundaryAtPercentile(density, req.Percentile)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Returns:        summarize(dist, windowDays),
		Distribution:   dist,
		Density:        density,
		Allocation:     alloc,
		DangerBoundary: boundary,
	}

	s.log.Info().
		Int("horizon_months", req.HorizonMonths).
		Float64("percentile", req.Percentile).
		Float64("market_weight", alloc.MarketWeight).
		Msg("Analysis complete")
	return result, nil
}

func summarize(dist domain.ReturnDistribution, windowDays int) ReturnsSummary {
	min, max := dist[0], dist[0]
	for _, r := range dist[1:] {
		if r < min {
			min = r
		}
		if r > max {
			max = r
		}
	}

	sd := stat.StdDev(dist, nil)
	return ReturnsSummary{
		WindowDays:    windowDays,
		Count:         len(dist),
		Mean:          stat.Mean(dist, nil),
		StdDev:        sd,
		Min:           min,
		Max:           max,
		AnnualizedVol: annualizedVolatility(sd, windowDays),
	}
}

// annualizedVolatility scales the k-day return volatility to a yearly
// horizon under the i.i.d. approximation (252 trading days per year).
func annualizedVolatility(sd float64, windowDays int) float64 {
	if windowDays <= 0 {
		return 0
	}
	periodsPerYear := 252.0 / float64(windowDays)
	if periodsPerYear < 1 {
		periodsPerYear = 1
	}
	return sd * math.Sqrt(periodsPerYear)
}
