// CLAUDE:SUMMARY Pipeline units: ingest (download, load, cleanup), transform (dbt phases), and the three single ingestion operations.
package pipeline

import (
	"context"
	"log/slog"
	"sort"

	"github.com/hazyhaar/covid-pipeline/pkg/dbt"
	"github.com/hazyhaar/covid-pipeline/pkg/ingest"
)

// Unit names.
const (
	UnitIngest    = "ingest"
	UnitTransform = "transform"
	OpDownload    = "download"
	OpCleanup     = "cleanup"
	OpLoad        = "load"
)

// Unit is an independently invokable piece of the pipeline. Run returns
// metadata describing what it did, even on failure when available.
type Unit interface {
	Name() string
	Run(ctx context.Context) (map[string]any, error)
}

// Dependent is implemented by units that need another unit's latest run to
// have succeeded.
type Dependent interface {
	DependsOn() string
}

// IngestUnit downloads, loads, then sweeps the staging area.
type IngestUnit struct {
	ing    *ingest.Ingestion
	logger *slog.Logger
}

func NewIngestUnit(ing *ingest.Ingestion, logger *slog.Logger) *IngestUnit {
	return &IngestUnit{ing: ing, logger: logger}
}

func (u *IngestUnit) Name() string { return UnitIngest }

func (u *IngestUnit) Run(ctx context.Context) (map[string]any, error) {
	meta := map[string]any{"data_source_url": u.ing.Config().BaseURL}

	u.logger.Info("starting data download")
	staged, err := u.ing.Download(ctx)
	meta["staged_files"] = stagedPaths(staged)
	if err != nil {
		return meta, err
	}

	u.logger.Info("loading data to duckdb")
	loaded, err := u.ing.Load(ctx)
	meta["tables"] = loaded
	if err != nil {
		return meta, err
	}

	u.logger.Info("cleaning up old files")
	swept, err := u.ing.Cleanup(ctx)
	meta["cleanup"] = swept
	return meta, err
}

// TransformUnit runs the dbt phases. It depends on a successful ingest.
type TransformUnit struct {
	runner     dbt.Runner
	projectDir string
	logger     *slog.Logger
}

func NewTransformUnit(runner dbt.Runner, projectDir string, logger *slog.Logger) *TransformUnit {
	return &TransformUnit{runner: runner, projectDir: projectDir, logger: logger}
}

func (u *TransformUnit) Name() string      { return UnitTransform }
func (u *TransformUnit) DependsOn() string { return UnitIngest }

func (u *TransformUnit) Run(ctx context.Context) (map[string]any, error) {
	results, err := dbt.Transform(ctx, u.runner, u.logger)
	meta := map[string]any{"dbt_directory": u.projectDir}
	for _, r := range results {
		meta[r.Phase+"_output"] = r.Stdout
	}
	meta["tests_passed"] = err == nil
	meta["models_run"] = len(results) >= 3 && results[2].ExitCode == 0
	return meta, err
}

// opUnit adapts one ingestion operation to a Unit.
type opUnit struct {
	name string
	run  func(context.Context) (map[string]any, error)
}

func (u *opUnit) Name() string                                    { return u.name }
func (u *opUnit) Run(ctx context.Context) (map[string]any, error) { return u.run(ctx) }

// OpUnits exposes download, cleanup and load as separately runnable units.
func OpUnits(ing *ingest.Ingestion) map[string]Unit {
	return map[string]Unit{
		OpDownload: &opUnit{OpDownload, func(ctx context.Context) (map[string]any, error) {
			staged, err := ing.Download(ctx)
			return map[string]any{"staged_files": stagedPaths(staged)}, err
		}},
		OpCleanup: &opUnit{OpCleanup, func(ctx context.Context) (map[string]any, error) {
			res, err := ing.Cleanup(ctx)
			return map[string]any{"cleanup": res}, err
		}},
		OpLoad: &opUnit{OpLoad, func(ctx context.Context) (map[string]any, error) {
			res, err := ing.Load(ctx)
			return map[string]any{"tables": res}, err
		}},
	}
}

// OpNames returns the operation names sorted.
func OpNames(ops map[string]Unit) []string {
	names := make([]string, 0, len(ops))
	for n := range ops {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func stagedPaths(staged []ingest.StagedFile) []string {
	paths := make([]string, len(staged))
	for i, s := range staged {
		paths[i] = s.Path
	}
	return paths
}
