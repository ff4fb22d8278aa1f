// CLAUDE:SUMMARY Wide (raw CSV text) and long (one row per location and date) table types for the time-series pipeline.
package table

import (
	"time"
)

// Identifier columns carried by every JHU time-series file.
const (
	ColProvinceState = "Province/State"
	ColCountryRegion = "Country/Region"
	ColLat           = "Lat"
	ColLong          = "Long"
	ColDate          = "date"
)

// IdentifierColumns lists the fixed location columns in file order.
var IdentifierColumns = []string{ColProvinceState, ColCountryRegion, ColLat, ColLong}

// IsIdentifier reports whether name is one of the fixed location columns.
func IsIdentifier(name string) bool {
	for _, c := range IdentifierColumns {
		if c == name {
			return true
		}
	}
	return false
}

// RawTable is a wide table exactly as read from a staged CSV: one header and
// rows of cell text. An empty cell is a missing value.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// ColumnIndex returns the position of name in the header, or -1.
func (t *RawTable) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// ValueColumns returns the indexes of all non-identifier columns in header order.
func (t *RawTable) ValueColumns() []int {
	var idx []int
	for i, h := range t.Header {
		if !IsIdentifier(h) {
			idx = append(idx, i)
		}
	}
	return idx
}

// Clone returns a deep copy that shares no slices with t.
func (t *RawTable) Clone() *RawTable {
	c := &RawTable{
		Header: append([]string(nil), t.Header...),
		Rows:   make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		c.Rows[i] = append([]string(nil), row...)
	}
	return c
}

// LongRow is one observation of a metric for a location on a date.
type LongRow struct {
	ProvinceState string
	CountryRegion string
	Lat           float64
	Long          float64
	Date          time.Time
	Value         float64
}

// LongTable is the reshaped form persisted to the destination store.
type LongTable struct {
	Metric string
	Rows   []LongRow
}

// Columns returns the destination column names in order.
func (t *LongTable) Columns() []string {
	cols := append([]string(nil), IdentifierColumns...)
	return append(cols, ColDate, t.Metric)
}
