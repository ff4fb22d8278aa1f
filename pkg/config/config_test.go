package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), discard)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
	if cfg.Ingestion.RetentionDays != 7 {
		t.Errorf("RetentionDays = %d, want 7", cfg.Ingestion.RetentionDays)
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `addr: ":9000"
check_interval: 30m
ingestion:
  base_url: http://mirror.local/ts
  data_types:
    deaths: deaths.csv
  raw_data_path: /tmp/raw
  retention_days: 14
  http_timeout: 10s
dbt:
  project_dir: /srv/dbt
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, discard)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Addr != ":9000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.CheckInterval != 30*time.Minute {
		t.Errorf("CheckInterval = %v", cfg.CheckInterval)
	}
	if diff := cmp.Diff(map[string]string{"deaths": "deaths.csv"}, cfg.Ingestion.DataTypes); diff != "" {
		t.Errorf("data_types should replace defaults (-want +got):\n%s", diff)
	}
	if cfg.Ingestion.RetentionDays != 14 || cfg.Ingestion.HTTPTimeout != 10*time.Second {
		t.Errorf("ingestion = %+v", cfg.Ingestion)
	}
	// Untouched keys keep their defaults.
	if cfg.Ingestion.DBPath != "data/processed/covid_analysis_dev.duckdb" {
		t.Errorf("DBPath = %q", cfg.Ingestion.DBPath)
	}
	if cfg.DBT.Binary != "dbt" || cfg.DBT.ProjectDir != "/srv/dbt" {
		t.Errorf("dbt = %+v", cfg.DBT)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "ingestion:\n  base_url: \"\"\n  retention_days: -1\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path, discard)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"base_url", "retention_days"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("ingestion: [unclosed"), 0o644)
	if _, err := Load(path, discard); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestMetricsSorted(t *testing.T) {
	c := DefaultIngestion()
	if diff := cmp.Diff([]string{"confirmed", "deaths", "recovered"}, c.Metrics()); diff != "" {
		t.Errorf("Metrics mismatch (-want +got):\n%s", diff)
	}
	if got := c.SourceURL("deaths"); got != DefaultBaseURL+"/time_series_covid19_deaths_global.csv" {
		t.Errorf("SourceURL = %q", got)
	}
	if c.Retention() != 7*24*time.Hour {
		t.Errorf("Retention = %v", c.Retention())
	}
}

func TestLoad_ShippedConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.yaml"), discard)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config.yaml drifted from defaults (-want +got):\n%s", diff)
	}
}
