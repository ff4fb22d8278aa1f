package ingest

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hazyhaar/covid-pipeline/pkg/table"
)

func TestReshape(t *testing.T) {
	lt, err := Reshape(rawTable(t, twoByTwo), "confirmed", testLogger())
	if err != nil {
		t.Fatalf("Reshape: %v", err)
	}

	jan := func(d int) time.Time { return time.Date(2020, 1, d, 0, 0, 0, 0, time.UTC) }
	want := &table.LongTable{
		Metric: "confirmed",
		Rows: []table.LongRow{
			{CountryRegion: "Afghanistan", Lat: 33.93911, Long: 67.709953, Date: jan(22), Value: 0},
			{CountryRegion: "Afghanistan", Lat: 33.93911, Long: 67.709953, Date: jan(23), Value: 1},
			{ProvinceState: "Alberta", CountryRegion: "Canada", Lat: 53.9333, Long: -116.5765, Date: jan(22), Value: 2},
			{ProvinceState: "Alberta", CountryRegion: "Canada", Lat: 53.9333, Long: -116.5765, Date: jan(23), Value: 3},
		},
	}
	if diff := cmp.Diff(want, lt); diff != "" {
		t.Errorf("Reshape mismatch (-want +got):\n%s", diff)
	}
}

// randomWide builds a clean wide table with rows locations and dates
// consecutive date columns starting 1/22/20.
func randomWide(r *rand.Rand, rows, dates int) *table.RawTable {
	rt := &table.RawTable{Header: append([]string(nil), table.IdentifierColumns...)}
	start := time.Date(2020, 1, 22, 0, 0, 0, 0, time.UTC)
	for d := 0; d < dates; d++ {
		rt.Header = append(rt.Header, start.AddDate(0, 0, d).Format("1/2/06"))
	}
	for i := 0; i < rows; i++ {
		row := []string{fmt.Sprintf("p%d", i), fmt.Sprintf("c%d", i%3), "1.5", "-2.5"}
		for d := 0; d < dates; d++ {
			row = append(row, fmt.Sprint(r.Intn(1000)))
		}
		rt.Rows = append(rt.Rows, row)
	}
	return rt
}

func TestReshape_RowCountAndCoverage(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, tc := range []struct{ rows, dates int }{{0, 3}, {1, 1}, {3, 0}, {5, 40}, {17, 400}} {
		rt := randomWide(r, tc.rows, tc.dates)
		lt, err := Reshape(rt, "deaths", testLogger())
		if err != nil {
			t.Fatalf("%dx%d: Reshape: %v", tc.rows, tc.dates, err)
		}
		if got, want := len(lt.Rows), len(rt.Rows)*(len(rt.Header)-4); got != want {
			t.Errorf("%dx%d: rows = %d, want %d", tc.rows, tc.dates, got, want)
		}

		seen := make(map[string]map[time.Time]int)
		for _, row := range lt.Rows {
			if seen[row.ProvinceState] == nil {
				seen[row.ProvinceState] = make(map[time.Time]int)
			}
			seen[row.ProvinceState][row.Date]++
		}
		for loc, dates := range seen {
			if len(dates) != tc.dates {
				t.Errorf("%s: %d distinct dates, want %d", loc, len(dates), tc.dates)
			}
			for d, n := range dates {
				if n != 1 {
					t.Errorf("%s %s appears %d times", loc, d.Format(time.DateOnly), n)
				}
			}
		}
	}
}

func TestReshape_BadDateHeader(t *testing.T) {
	for _, header := range []string{"2020-01-22", "1/22/2020", "13/1/20", "1/32/20", "Admin2"} {
		rt := rawTable(t, "Province/State,Country/Region,Lat,Long,1/22/20,"+header+"\n,Chad,1,1,0,0\n")
		_, err := Reshape(rt, "recovered", testLogger())
		if !errors.Is(err, ErrTransform) {
			t.Errorf("%s: err = %v, want ErrTransform", header, err)
			continue
		}
		var me *MetricError
		if !errors.As(err, &me) || me.Metric != "recovered" {
			t.Errorf("%s: error does not name the metric: %v", header, err)
		}
	}
}

func TestReshape_DuplicateDate(t *testing.T) {
	rt := rawTable(t, "Province/State,Country/Region,Lat,Long,1/22/20,01/22/20\n,Chad,1,1,0,0\n")
	if _, err := Reshape(rt, "confirmed", testLogger()); !errors.Is(err, ErrTransform) {
		t.Fatalf("err = %v, want ErrTransform", err)
	}
}

func TestReshape_NonNumericCell(t *testing.T) {
	rt := rawTable(t, "Province/State,Country/Region,Lat,Long,1/22/20\n,Chad,1,1,\n")
	_, err := Reshape(rt, "confirmed", testLogger())
	if !errors.Is(err, ErrTransform) || !strings.Contains(err.Error(), "1/22/20") {
		t.Fatalf("err = %v, want ErrTransform naming the column", err)
	}
}

func TestParseObservationDate(t *testing.T) {
	d, err := ParseObservationDate("3/9/23")
	if err != nil {
		t.Fatalf("ParseObservationDate: %v", err)
	}
	if !d.Equal(time.Date(2023, 3, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", d)
	}
}
