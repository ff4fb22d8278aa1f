package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/covid-pipeline/pkg/config"
	"github.com/hazyhaar/covid-pipeline/pkg/table"
	"github.com/spf13/afero"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedNow(y int, m time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
}

// rawTable builds a table from CSV text.
func rawTable(t *testing.T, csvText string) *table.RawTable {
	t.Helper()
	rt, err := table.ReadCSV(strings.NewReader(csvText))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	return rt
}

const twoByTwo = "Province/State,Country/Region,Lat,Long,1/22/20,1/23/20\n" +
	",Afghanistan,33.93911,67.709953,0,1\n" +
	"Alberta,Canada,53.9333,-116.5765,2,3\n"

func testConfig(metrics ...string) config.Ingestion {
	dt := make(map[string]string, len(metrics))
	for _, m := range metrics {
		dt[m] = "time_series_covid19_" + m + "_global.csv"
	}
	return config.Ingestion{
		BaseURL:       "http://unused.invalid",
		DataTypes:     dt,
		RawDataPath:   "/data/raw",
		DBPath:        "/data/processed/covid.duckdb",
		RetentionDays: 7,
	}
}

func stage(t *testing.T, fs afero.Fs, dir, name, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, dir+"/"+name, []byte(content), 0o644); err != nil {
		t.Fatalf("stage %s: %v", name, err)
	}
}

// fakeStore records registrations and replaced tables in memory.
type fakeStore struct {
	registered map[string]*table.LongTable
	tables     map[string]*table.LongTable
	execs      []string
	failExec   bool
	// failReplace fails only CREATE OR REPLACE statements.
	failReplace bool
	closed      bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		registered: make(map[string]*table.LongTable),
		tables:     make(map[string]*table.LongTable),
	}
}

func (s *fakeStore) Register(_ context.Context, name string, t *table.LongTable) error {
	s.registered[name] = t
	return nil
}

func (s *fakeStore) Exec(_ context.Context, query string) error {
	s.execs = append(s.execs, query)
	if s.failExec {
		return fmt.Errorf("disk full")
	}
	f := strings.Fields(query)
	isReplace := len(f) == 9 && strings.Join(f[:4], " ") == "CREATE OR REPLACE TABLE"
	if isReplace && s.failReplace {
		return fmt.Errorf("out of memory")
	}
	if isReplace {
		s.tables[strings.Trim(f[4], `"`)] = s.registered[f[8]]
	}
	return nil
}

func (s *fakeStore) Close() error {
	s.closed = true
	return nil
}
