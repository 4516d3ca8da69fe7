package prices

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fundbuilder/saver/internal/domain"
)

func TestSummarize(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := domain.PriceSeries{
		{Date: start, Close: 100},
		{Date: start.AddDate(0, 0, 1), Close: 110},
		{Date: start.AddDate(0, 0, 2), Close: 90},
	}

	sum := Summarize(series)
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, start, sum.From)
	assert.Equal(t, start.AddDate(0, 0, 2), sum.To)
	assert.Equal(t, 90.0, sum.MinClose)
	assert.Equal(t, 110.0, sum.MaxClose)
	assert.Equal(t, 100.0, sum.AvgClose)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}
