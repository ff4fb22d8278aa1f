// CLAUDE:SUMMARY Structural checks on a raw wide table: identifier columns present, observation columns numeric.
package ingest

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/hazyhaar/covid-pipeline/pkg/table"
)

// missingTokens are cell texts read as "no value", alongside the empty cell.
var missingTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"NaN":  true,
	"nan":  true,
	"null": true,
}

func isMissing(cell string) bool {
	return missingTokens[strings.TrimSpace(cell)]
}

// parseNumber parses a finite number from cell text.
func parseNumber(cell string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Validate checks t before any cleaning. It returns a *SchemaError when an
// identifier column is absent or when a non-identifier column holds a value
// that is neither missing nor numeric. t is not modified.
func Validate(t *table.RawTable, metric string, logger *slog.Logger) error {
	logger.Info("validating data", "metric", metric)

	var missing []string
	for _, col := range table.IdentifierColumns {
		if t.ColumnIndex(col) < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		err := &SchemaError{Metric: metric, Missing: missing}
		logger.Error("validation failed", "metric", metric, "error", err)
		return err
	}

	var nonNumeric []string
	for _, i := range t.ValueColumns() {
		for _, row := range t.Rows {
			if isMissing(row[i]) {
				continue
			}
			if _, ok := parseNumber(row[i]); !ok {
				nonNumeric = append(nonNumeric, t.Header[i])
				break
			}
		}
	}
	if len(nonNumeric) > 0 {
		err := &SchemaError{Metric: metric, NonNumeric: nonNumeric}
		logger.Error("validation failed", "metric", metric, "error", err)
		return err
	}

	logger.Info("validation successful", "metric", metric)
	return nil
}
