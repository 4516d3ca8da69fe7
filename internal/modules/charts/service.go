// Package charts renders server-side PNG charts for the dashboard.
package charts

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	charts "github.com/vicanso/go-charts/v2"

	"github.com/fundbuilder/saver/internal/domain"
)

// Service renders charts from pipeline outputs
type Service struct {
	log zerolog.Logger
}

// NewService creates a new charts service
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("service", "charts").Logger(),
	}
}

// RenderDensity renders the return density curve as a PNG. Returns are shown
// on a percentage x-axis. The worst-percentile danger zone is drawn as a
// second series tracing the density up to the boundary and dropping to zero
// there, so the boundary shows as a vertical edge on the plot; the title
// carries the exact numbers.
func (s *Service) RenderDensity(est domain.DensityEstimate, horizonMonths int, percentile, boundary float64) ([]byte, error) {
	if len(est.X) == 0 || len(est.X) != len(est.Density) {
		return nil, &domain.EmptyDistributionError{}
	}

	labels := make([]string, len(est.X))
	danger := make([]float64, len(est.X))
	for i, x := range est.X {
		labels[i] = strconv.FormatFloat(x*100, 'f', 1, 64) + "%"
		if x <= boundary {
			danger[i] = est.Density[i]
		}
	}

	title := fmt.Sprintf("%d-Month Rolling Return Density (worst %.0f%% below %.2f%%)",
		horizonMonths, percentile, boundary*100)

	painter, err := charts.LineRender([][]float64{est.Density, danger},
		charts.TitleTextOptionFunc(title),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			BoundaryGap: charts.FalseFlag(),
			SplitNumber: 10,
		}),
		charts.LegendLabelsOptionFunc([]string{"Density", fmt.Sprintf("Worst %.0f%%", percentile)}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render density chart: %w", err)
	}

	buf, err := painter.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode density chart: %w", err)
	}

	s.log.Debug().Int("points", len(est.X)).Msg("Rendered density chart")
	return buf, nil
}

// RenderPrices renders the price history line chart as a PNG.
func (s *Service) RenderPrices(series domain.PriceSeries) ([]byte, error) {
	if len(series) < 2 {
		return nil, &domain.InsufficientDataError{Have: len(series), Need: 2}
	}

	labels := make([]string, len(series))
	closes := make([]float64, len(series))
	var yMin, yMax float64
	for i, p := range series {
		labels[i] = p.Date.Format("2006-01-02")
		closes[i] = p.Close
		if i == 0 {
			yMin, yMax = p.Close, p.Close
			continue
		}
		if p.Close < yMin {
			yMin = p.Close
		}
		if p.Close > yMax {
			yMax = p.Close
		}
	}

	// Pad the y-range so the line does not hug the plot edges.
	pad := (yMax - yMin) * 0.05
	if pad < yMax*0.002 {
		pad = yMax * 0.002
	}
	yMin -= pad
	if yMin < 0 {
		yMin = 0
	}
	yMax += pad

	painter, err := charts.LineRender([][]float64{closes},
		charts.TitleTextOptionFunc("Price History"),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			BoundaryGap: charts.FalseFlag(),
			SplitNumber: 12,
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &yMin, Max: &yMax, DivideCount: 5}),
		charts.LegendLabelsOptionFunc([]string{"Close"}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render price chart: %w", err)
	}

	buf, err := painter.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode price chart: %w", err)
	}

	s.log.Debug().Int("points", len(series)).Msg("Rendered price chart")
	return buf, nil
}
