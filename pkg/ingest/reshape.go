// CLAUDE:SUMMARY Wide-to-long melt of a cleaned time-series table, parsing M/D/YY date headers.
package ingest

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/covid-pipeline/pkg/table"
)

// observationDateLayout is the JHU header format, e.g. 1/22/20.
const observationDateLayout = "1/2/06"

// ParseObservationDate parses a JHU date header.
func ParseObservationDate(s string) (time.Time, error) {
	if strings.Count(s, "/") != 2 {
		return time.Time{}, fmt.Errorf("date %q: want M/D/YY", s)
	}
	d, err := time.Parse(observationDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", s, err)
	}
	return d, nil
}

// Reshape melts t into one row per identifier combination and date column.
// Every non-identifier header must be an M/D/YY date; any header or cell that
// does not parse fails the whole metric with ErrTransform. Rows come out in
// input row order, then date column order.
func Reshape(t *table.RawTable, metric string, logger *slog.Logger) (*table.LongTable, error) {
	logger.Info("transforming data from wide to long format", "metric", metric)

	lt, err := reshape(t, metric)
	if err != nil {
		err = &MetricError{Metric: metric, Kind: ErrTransform, Err: err}
		logger.Error("transform failed", "metric", metric, "error", err)
		return nil, err
	}

	logger.Info("transform complete", "metric", metric, "rows", len(lt.Rows))
	return lt, nil
}

func reshape(t *table.RawTable, metric string) (*table.LongTable, error) {
	ids := make([]int, len(table.IdentifierColumns))
	for k, col := range table.IdentifierColumns {
		if ids[k] = t.ColumnIndex(col); ids[k] < 0 {
			return nil, fmt.Errorf("missing identifier column %q", col)
		}
	}

	cols := t.ValueColumns()
	dates := make([]time.Time, len(cols))
	seen := make(map[time.Time]string, len(cols))
	for k, i := range cols {
		d, err := ParseObservationDate(t.Header[i])
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[d]; dup {
			return nil, fmt.Errorf("columns %q and %q are the same date", prev, t.Header[i])
		}
		seen[d] = t.Header[i]
		dates[k] = d
	}

	lt := &table.LongTable{
		Metric: metric,
		Rows:   make([]table.LongRow, 0, len(t.Rows)*len(cols)),
	}
	for n, row := range t.Rows {
		lat, ok := parseNumber(row[ids[2]])
		if !ok {
			return nil, fmt.Errorf("row %d: Lat %q is not numeric", n+1, row[ids[2]])
		}
		long, ok := parseNumber(row[ids[3]])
		if !ok {
			return nil, fmt.Errorf("row %d: Long %q is not numeric", n+1, row[ids[3]])
		}
		for k, i := range cols {
			v, ok := parseNumber(row[i])
			if !ok {
				return nil, fmt.Errorf("row %d: column %q value %q is not numeric", n+1, t.Header[i], row[i])
			}
			lt.Rows = append(lt.Rows, table.LongRow{
				ProvinceState: row[ids[0]],
				CountryRegion: row[ids[1]],
				Lat:           lat,
				Long:          long,
				Date:          dates[k],
				Value:         v,
			})
		}
	}
	return lt, nil
}
