package prices

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundbuilder/saver/internal/database"
	"github.com/fundbuilder/saver/internal/domain"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := database.New(database.Config{
		Path: "file::memory:?cache=shared&mode=memory",
		Name: "history-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db.Conn(), zerolog.Nop())
}

func testSeries(n int) domain.PriceSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(domain.PriceSeries, n)
	for i := range s {
		s[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), Close: 100 + float64(i)}
	}
	return s
}

func TestRepository_SaveAndSeries(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.Save(testSeries(5)))

	series, err := repo.Series(time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, series, 5)
	assert.Equal(t, 100.0, series[0].Close)
	assert.Equal(t, 104.0, series[4].Close)
	for i := 1; i < len(series); i++ {
		assert.True(t, series[i-1].Date.Before(series[i].Date))
	}
}

func TestRepository_SaveIsUpsert(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.Save(testSeries(3)))

	updated := testSeries(3)
	updated[1].Close = 250
	require.NoError(t, repo.Save(updated))

	series, err := repo.Series(time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, 250.0, series[1].Close)
}

func TestRepository_SeriesDateRange(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.Save(testSeries(10)))

	from := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)

	series, err := repo.Series(from, to)
	require.NoError(t, err)
	require.Len(t, series, 4)
	assert.Equal(t, from, series[0].Date)
	assert.Equal(t, to, series[3].Date)

	// Open-ended lower bound.
	series, err = repo.Series(time.Time{}, from)
	require.NoError(t, err)
	assert.Len(t, series, 3)
}

func TestRepository_RejectsInvalidSeries(t *testing.T) {
	repo := newTestRepo(t)
	bad := testSeries(2)
	bad[1].Close = -1
	require.Error(t, repo.Save(bad))
}

func TestRepository_RangeAndCount(t *testing.T) {
	repo := newTestRepo(t)

	_, _, ok, err := repo.Range()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Save(testSeries(4)))

	first, last, ok, err := repo.Range()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), first)
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), last)

	n, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
