// CLAUDE:SUMMARY YAML configuration for the COVID pipeline: JHU source, staging and DuckDB paths, retention, dbt project, server.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the JHU CSSE global time-series directory.
const DefaultBaseURL = "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series"

// Ingestion holds everything the ingestion core needs for one run.
// It is built once and not mutated afterwards.
type Ingestion struct {
	BaseURL       string            `yaml:"base_url"`
	DataTypes     map[string]string `yaml:"data_types"`
	RawDataPath   string            `yaml:"raw_data_path"`
	DBPath        string            `yaml:"db_path"`
	RetentionDays int               `yaml:"retention_days"`
	HTTPTimeout   time.Duration     `yaml:"http_timeout"`
}

// Metrics returns the configured metric names sorted, so every pass visits
// them in the same order.
func (c *Ingestion) Metrics() []string {
	names := make([]string, 0, len(c.DataTypes))
	for m := range c.DataTypes {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

// Retention returns RetentionDays as a duration.
func (c *Ingestion) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// SourceURL returns the remote location of a metric's file.
func (c *Ingestion) SourceURL(metric string) string {
	return c.BaseURL + "/" + c.DataTypes[metric]
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Ingestion) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url is empty"))
	}
	if len(c.DataTypes) == 0 {
		errs = append(errs, errors.New("data_types is empty"))
	}
	for m, f := range c.DataTypes {
		if m == "" || f == "" {
			errs = append(errs, fmt.Errorf("data_types: empty metric or file name (%q: %q)", m, f))
		}
	}
	if c.RawDataPath == "" {
		errs = append(errs, errors.New("raw_data_path is empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is empty"))
	}
	if c.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("retention_days must be >= 0, got %d", c.RetentionDays))
	}
	return errors.Join(errs...)
}

// DBT locates the external SQL transform project.
type DBT struct {
	Binary     string `yaml:"binary"`
	ProjectDir string `yaml:"project_dir"`
}

// Config is the process configuration read from config.yaml.
type Config struct {
	Addr          string        `yaml:"addr"`
	LogFile       string        `yaml:"log_file"`
	RunsDB        string        `yaml:"runs_db"`
	CheckInterval time.Duration `yaml:"check_interval"`
	Ingestion     Ingestion     `yaml:"ingestion"`
	DBT           DBT           `yaml:"dbt"`
}

// DefaultIngestion mirrors the published JHU layout.
func DefaultIngestion() Ingestion {
	return Ingestion{
		BaseURL: DefaultBaseURL,
		DataTypes: map[string]string{
			"confirmed": "time_series_covid19_confirmed_global.csv",
			"deaths":    "time_series_covid19_deaths_global.csv",
			"recovered": "time_series_covid19_recovered_global.csv",
		},
		RawDataPath:   "data/raw",
		DBPath:        "data/processed/covid_analysis_dev.duckdb",
		RetentionDays: 7,
		HTTPTimeout:   5 * time.Minute,
	}
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Addr:          ":8430",
		LogFile:       "data/logs/ingestion.log",
		RunsDB:        "data/processed/runs.db",
		CheckInterval: 6 * time.Hour,
		Ingestion:     DefaultIngestion(),
		DBT: DBT{
			Binary:     "dbt",
			ProjectDir: "src/dbt",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
// data_types from the file replace the default map instead of merging into it.
func Load(path string, logger *slog.Logger) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no config file, using defaults", "path", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var probe struct {
		Ingestion struct {
			DataTypes map[string]string `yaml:"data_types"`
		} `yaml:"ingestion"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if probe.Ingestion.DataTypes != nil {
		cfg.Ingestion.DataTypes = nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Ingestion.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
