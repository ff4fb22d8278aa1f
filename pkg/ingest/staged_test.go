package ingest

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestLatestStaged(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, name := range []string{
		"confirmed_20230101.csv",
		"confirmed_20230115.csv",
		"confirmed_bad.csv",
		"confirmed_us_20230301.csv",
		"deaths_20230120.csv",
	} {
		stage(t, fs, "/raw", name, "x")
	}

	got, err := LatestStaged(fs, "/raw", "confirmed")
	if err != nil {
		t.Fatalf("LatestStaged: %v", err)
	}
	if got.Path != "/raw/confirmed_20230115.csv" {
		t.Errorf("path = %s, want /raw/confirmed_20230115.csv", got.Path)
	}
	if !got.Date.Equal(time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", got.Date)
	}
}

func TestLatestStaged_None(t *testing.T) {
	fs := afero.NewMemMapFs()
	stage(t, fs, "/raw", "deaths_20230120.csv", "x")

	_, err := LatestStaged(fs, "/raw", "confirmed")
	if !errors.Is(err, ErrNoStagedFile) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNoStagedFile and os.ErrNotExist", err)
	}

	_, err = LatestStaged(fs, "/missing-dir", "confirmed")
	if !errors.Is(err, ErrNoStagedFile) {
		t.Fatalf("missing dir: err = %v, want ErrNoStagedFile", err)
	}
}

func TestStagedName(t *testing.T) {
	got := StagedName("deaths", time.Date(2024, 3, 5, 18, 0, 0, 0, time.UTC))
	if got != "deaths_20240305.csv" {
		t.Errorf("StagedName = %s", got)
	}
}

func TestParseStagedName(t *testing.T) {
	cases := []struct {
		name   string
		metric string
		ok     bool
	}{
		{"confirmed_20230101.csv", "confirmed", true},
		{"/a/b/x_20230109.csv", "x", true},
		{"covid_deaths_20230109.csv", "covid_deaths", true},
		{"x_bad.csv", "", false},
		{"x.csv", "", false},
		{"_20230101.csv", "", false},
		{"x_2023011.csv", "", false},
		{"x_20230101.txt", "", false},
	}
	for _, tc := range cases {
		m, _, err := parseStagedName(tc.name, time.UTC)
		if (err == nil) != tc.ok {
			t.Errorf("%s: err = %v, want ok=%v", tc.name, err, tc.ok)
			continue
		}
		if m != tc.metric {
			t.Errorf("%s: metric = %q, want %q", tc.name, m, tc.metric)
		}
	}
}
