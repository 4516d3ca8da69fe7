package prices

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/fundbuilder/saver/internal/domain"
)

// metadataRows is the number of leading non-data rows in the Yahoo Finance
// historical export (title row, ticker row, blank "Date" row).
const metadataRows = 3

// Importer loads a daily price series from the S&P 500 historical CSV export.
// Column layout: Date, Close, High, Low, Open, Volume - only Date and Close
// are used.
type Importer struct {
	log zerolog.Logger
}

// NewImporter creates a new CSV importer
func NewImporter(log zerolog.Logger) *Importer {
	return &Importer{
		log: log.With().Str("component", "price_importer").Logger(),
	}
}

// ImportFile reads and parses the CSV file at path.
func (im *Importer) ImportFile(path string) (domain.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price CSV: %w", err)
	}
	defer f.Close()

	series, err := im.Import(f)
	if err != nil {
		return nil, fmt.Errorf("failed to import %s: %w", path, err)
	}

	im.log.Info().
		Str("path", path).
		Int("points", len(series)).
		Msg("Imported price history")
	return series, nil
}

// Import parses CSV data from r. Rows are sorted by date before validation
// so exports in either chronological direction are accepted; duplicate dates
// or non-positive closes fail the import.
func (im *Importer) Import(r io.Reader) (domain.PriceSeries, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // metadata rows have a different shape

	var series domain.PriceSeries
	for row := 0; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", row+1, err)
		}
		if row < metadataRows {
			continue
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("row %d: expected at least 2 columns, got %d", row+1, len(record))
		}

		date, err := time.ParseInLocation("2006-01-02", record[0], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid date %q: %w", row+1, record[0], err)
		}

		close, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid close %q: %w", row+1, record[1], err)
		}

		series = append(series, domain.PricePoint{Date: date, Close: close})
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})

	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("imported series failed validation: %w", err)
	}

	return series, nil
}
