// Package prices owns ingestion and storage of the daily price history that
// feeds the return pipeline. The pipeline itself never touches storage; it
// receives a fully-loaded, validated PriceSeries from here.
package prices

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fundbuilder/saver/internal/domain"
)

// Repository provides access to the daily price history
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new price history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "price_repository").Logger(),
	}
}

// Save upserts a price series into daily_prices. Existing dates are
// overwritten, which makes re-imports of a refreshed CSV idempotent.
func (r *Repository) Save(series domain.PriceSeries) error {
	if err := series.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid series: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_prices (date, close) VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET close = excluded.close
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range series {
		if _, err := stmt.Exec(p.Date.UTC().Unix(), p.Close); err != nil {
			return fmt.Errorf("failed to upsert price for %s: %w", p.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit price batch: %w", err)
	}

	r.log.Info().Int("points", len(series)).Msg("Saved price series")
	return nil
}

// Series fetches the price series with dates in [from, to] inclusive,
// ordered by date ascending. Zero-valued bounds are treated as unbounded.
func (r *Repository) Series(from, to time.Time) (domain.PriceSeries, error) {
	query := `SELECT date, close FROM daily_prices`
	args := make([]interface{}, 0, 2)
	switch {
	case !from.IsZero() && !to.IsZero():
		query += ` WHERE date >= ? AND date <= ?`
		args = append(args, from.UTC().Unix(), to.UTC().Unix())
	case !from.IsZero():
		query += ` WHERE date >= ?`
		args = append(args, from.UTC().Unix())
	case !to.IsZero():
		query += ` WHERE date <= ?`
		args = append(args, to.UTC().Unix())
	}
	query += ` ORDER BY date ASC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var series domain.PriceSeries
	for rows.Next() {
		var dateUnix int64
		var close float64
		if err := rows.Scan(&dateUnix, &close); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		series = append(series, domain.PricePoint{
			Date:  time.Unix(dateUnix, 0).UTC(),
			Close: close,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return series, nil
}

// Range returns the first and last dates present in the history, or ok=false
// when the history is empty.
func (r *Repository) Range() (first, last time.Time, ok bool, err error) {
	var lo, hi sql.NullInt64
	row := r.db.QueryRow(`SELECT MIN(date), MAX(date) FROM daily_prices`)
	if err := row.Scan(&lo, &hi); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("failed to query date range: %w", err)
	}
	if !lo.Valid || !hi.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	return time.Unix(lo.Int64, 0).UTC(), time.Unix(hi.Int64, 0).UTC(), true, nil
}

// Count returns the number of stored price points.
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM daily_prices`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count daily prices: %w", err)
	}
	return n, nil
}
