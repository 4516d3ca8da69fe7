package returns

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundbuilder/saver/internal/domain"
)

func seriesFromCloses(closes ...float64) domain.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(domain.PriceSeries, len(closes))
	for i, c := range closes {
		s[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), Close: c}
	}
	return s
}

func TestCompute_WindowOfOne(t *testing.T) {
	dist, err := Compute(seriesFromCloses(100, 110, 99), 1)
	require.NoError(t, err)
	require.Len(t, dist, 2)
	assert.InDelta(t, 0.10, dist[0], 1e-12)
	assert.InDelta(t, 99.0/110.0-1, dist[1], 1e-12)
}

func TestCompute_ExactValues(t *testing.T) {
	// Reference scenario: 8 prices, 3-day window -> 5 overlapping returns.
	prices := seriesFromCloses(100, 101, 99, 105, 110, 108, 115, 120)

	dist, err := Compute(prices, 3)
	require.NoError(t, err)
	require.Len(t, dist, 5)

	expected := []float64{
		105.0/100.0 - 1,
		110.0/101.0 - 1,
		108.0/99.0 - 1,
		115.0/105.0 - 1,
		120.0/110.0 - 1,
	}
	for i, want := range expected {
		assert.InDelta(t, want, dist[i], 1e-12, "return %d", i)
	}
}

func TestCompute_LengthInvariant(t *testing.T) {
	prices := seriesFromCloses(100, 101, 102, 103, 104, 105, 106, 107, 108, 109)
	for k := 1; k < len(prices); k++ {
		dist, err := Compute(prices, k)
		require.NoError(t, err, "window %d", k)
		assert.Len(t, dist, len(prices)-k, "window %d", k)
	}
}

func TestCompute_WindowTooLong(t *testing.T) {
	for n := 1; n <= 5; n++ {
		prices := seriesFromCloses(make([]float64, n)...)
		for i := range prices {
			prices[i].Close = 100
		}
		_, err := Compute(prices, n)
		var insufficientErr *domain.InsufficientDataError
		require.ErrorAs(t, err, &insufficientErr, "n=%d", n)
		assert.Equal(t, n, insufficientErr.Have)
	}
}

func TestCompute_InvalidWindow(t *testing.T) {
	prices := seriesFromCloses(100, 101)
	var paramErr *domain.InvalidParameterError

	_, err := Compute(prices, 0)
	require.ErrorAs(t, err, &paramErr)

	_, err = Compute(prices, -3)
	require.ErrorAs(t, err, &paramErr)
}

func TestCompute_CorruptPrice(t *testing.T) {
	cases := map[string]float64{
		"zero":     0,
		"negative": -5,
		"nan":      math.NaN(),
		"inf":      math.Inf(1),
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			prices := seriesFromCloses(100, 101, bad, 103, 104)
			_, err := Compute(prices, 2)
			var priceErr *domain.InvalidPriceDataError
			require.ErrorAs(t, err, &priceErr)
			assert.Equal(t, 2, priceErr.Index)
		})
	}
}

func TestCompute_Idempotent(t *testing.T) {
	prices := seriesFromCloses(100, 101, 99, 105, 110)
	a, err := Compute(prices, 2)
	require.NoError(t, err)
	b, err := Compute(prices, 2)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
