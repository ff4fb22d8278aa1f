// CLAUDE:SUMMARY Normalizes a validated raw table: missing cells to zero, negative numbers clamped, region names trimmed.
package ingest

import (
	"log/slog"
	"strings"

	"github.com/hazyhaar/covid-pipeline/pkg/table"
	"golang.org/x/text/unicode/norm"
)

// Clean returns a copy of t with:
//   - missing numeric cells (Lat, Long and every date column) set to "0"
//   - negative numeric values set to "0", counted and logged per column
//   - Country/Region trimmed and NFC-normalized
//
// Lat and Long are clamped like the observation counts, so a southern or
// western coordinate becomes 0. Province/State is text: a missing cell becomes
// "" instead of "0", which is the one place missing cells are not zero-filled.
// Clean never fails, and Clean(Clean(t)) equals Clean(t).
func Clean(t *table.RawTable, logger *slog.Logger) *table.RawTable {
	logger.Info("starting data cleaning")
	out := t.Clone()

	numeric := out.ValueColumns()
	for _, col := range []string{table.ColLat, table.ColLong} {
		if i := out.ColumnIndex(col); i >= 0 {
			numeric = append(numeric, i)
		}
	}

	filled := 0
	for _, i := range numeric {
		negative := 0
		for _, row := range out.Rows {
			cell := strings.TrimSpace(row[i])
			if isMissing(cell) {
				row[i] = "0"
				filled++
				continue
			}
			if v, ok := parseNumber(cell); ok && v < 0 {
				row[i] = "0"
				negative++
				continue
			}
			row[i] = cell
		}
		if negative > 0 {
			logger.Warn("negative values replaced with 0", "column", out.Header[i], "count", negative)
		}
	}
	if filled > 0 {
		logger.Info("replaced missing values with 0", "count", filled)
	}

	if province := out.ColumnIndex(table.ColProvinceState); province >= 0 {
		for _, row := range out.Rows {
			if isMissing(row[province]) {
				row[province] = ""
			}
		}
	}

	if country := out.ColumnIndex(table.ColCountryRegion); country >= 0 {
		for _, row := range out.Rows {
			row[country] = norm.NFC.String(strings.TrimSpace(row[country]))
		}
		logger.Info("standardized country/region names")
	}

	logger.Info("data cleaning completed")
	return out
}
