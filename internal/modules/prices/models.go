package prices

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/fundbuilder/saver/internal/domain"
)

// Summary describes a price series for the dashboard's summary line.
type Summary struct {
	Count    int       `json:"count"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	MinClose float64   `json:"min_close"`
	MaxClose float64   `json:"max_close"`
	AvgClose float64   `json:"avg_close"`
}

// Summarize computes summary statistics for a price series. An empty series
// yields a zero-valued summary.
func Summarize(series domain.PriceSeries) Summary {
	if len(series) == 0 {
		return Summary{}
	}

	closes := series.Closes()
	min, max := closes[0], closes[0]
	for _, c := range closes[1:] {
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
	}

	return Summary{
		Count:    len(series),
		From:     series[0].Date,
		To:       series[len(series)-1].Date,
		MinClose: min,
		MaxClose: max,
		AvgClose: stat.Mean(closes, nil),
	}
}
