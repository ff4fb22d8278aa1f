// CLAUDE:SUMMARY Loads the latest staged file per metric through validate, clean, reshape, then replaces raw_{metric} in the store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/covid-pipeline/pkg/config"
	"github.com/hazyhaar/covid-pipeline/pkg/table"
	"github.com/spf13/afero"
)

// Store is the destination table store as seen by the loader.
type Store interface {
	// Register makes t queryable under name for the rest of the session.
	Register(ctx context.Context, name string, t *table.LongTable) error
	// Exec runs a single SQL statement.
	Exec(ctx context.Context, query string) error
}

// stagingView is the session-scoped name a long table is registered under
// before it replaces its destination table.
const stagingView = "transformed_data_view"

// TableName returns the destination table for metric.
func TableName(metric string) string { return "raw_" + metric }

// LoadResult describes one replaced destination table.
type LoadResult struct {
	Metric string `json:"metric"`
	File   string `json:"file"`
	Table  string `json:"table"`
	Rows   int    `json:"rows"`
}

// Loader moves staged files into the destination store.
type Loader struct {
	fs     afero.Fs
	logger *slog.Logger
}

func NewLoader(fs afero.Fs, logger *slog.Logger) *Loader {
	return &Loader{fs: fs, logger: logger}
}

// Load processes metrics in sorted order. The first failing metric stops the
// pass; tables already replaced stay replaced and the failing metric's table
// keeps its previous contents.
func (l *Loader) Load(ctx context.Context, cfg *config.Ingestion, store Store) ([]LoadResult, error) {
	var results []LoadResult
	for _, metric := range cfg.Metrics() {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := l.loadMetric(ctx, cfg.RawDataPath, metric, store)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (l *Loader) loadMetric(ctx context.Context, dir, metric string, store Store) (LoadResult, error) {
	fail := func(kind, err error) (LoadResult, error) {
		return LoadResult{}, &MetricError{Metric: metric, Kind: kind, Err: err}
	}

	latest, err := LatestStaged(l.fs, dir, metric)
	if err != nil {
		return fail(ErrNoStagedFile, err)
	}
	l.logger.Info("processing", "metric", metric, "file", latest.Path)

	raw, err := table.ReadFile(l.fs, latest.Path)
	if err != nil {
		return fail(ErrSchemaValidation, err)
	}

	// Validation must see the raw text, before cleaning hides anomalies.
	if err := Validate(raw, metric, l.logger); err != nil {
		return fail(ErrSchemaValidation, err)
	}
	cleaned := Clean(raw, l.logger)
	long, err := Reshape(cleaned, metric, l.logger)
	if err != nil {
		return LoadResult{}, err
	}

	name := TableName(metric)
	if err := store.Register(ctx, stagingView, long); err != nil {
		return fail(ErrLoad, fmt.Errorf("register %s: %w", stagingView, err))
	}
	replace := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM %s", quoteIdent(name), stagingView)
	replaceErr := store.Exec(ctx, replace)
	// The staging table is dropped whether or not the replace succeeded.
	if err := store.Exec(ctx, "DROP TABLE IF EXISTS "+stagingView); err != nil {
		l.logger.Warn("could not drop staging view", "metric", metric, "error", err)
	}
	if replaceErr != nil {
		return fail(ErrLoad, fmt.Errorf("replace %s: %w", name, replaceErr))
	}

	l.logger.Info("loaded", "metric", metric, "table", name, "rows", len(long.Rows))
	return LoadResult{Metric: metric, File: latest.Path, Table: name, Rows: len(long.Rows)}, nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
