package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/pkg/kit"

	"github.com/hazyhaar/covid-pipeline/pkg/duckstore"
	"github.com/hazyhaar/covid-pipeline/pkg/pipeline"
)

// Shared request/response types used by both HTTP and MCP transports.

var errUnknownUnit = errors.New("unknown unit")

// TableLister reports the destination tables.
type TableLister interface {
	TableStats(ctx context.Context) ([]duckstore.TableStats, error)
}

// DuckDBTables lists raw_ tables of the DuckDB file at Path.
type DuckDBTables struct {
	Path string
}

func (d DuckDBTables) TableStats(ctx context.Context) ([]duckstore.TableStats, error) {
	return duckstore.Inventory(ctx, d.Path, "raw_")
}

// Deps are the collaborators behind the API.
type Deps struct {
	Runner *pipeline.Runner
	Runs   *pipeline.RunStore
	// Units holds every invokable unit by name: ingest, transform and the
	// single ingestion operations.
	Units  map[string]pipeline.Unit
	Tables TableLister
}

type runUnitReq struct {
	Unit string
}

type runResponse struct {
	Run pipeline.RunRecord `json:"run"`
}

type listRunsReq struct {
	Unit  string
	Limit int
}

type runsResponse struct {
	Runs []pipeline.RunRecord `json:"runs"`
}

type tablesResponse struct {
	Tables []duckstore.TableStats `json:"tables"`
}

// runUnitEndpoint runs the named unit. A failed run returns both the record
// and the unit's error.
func runUnitEndpoint(d Deps) kit.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req := request.(*runUnitReq)
		u, ok := d.Units[req.Unit]
		if !ok {
			return nil, fmt.Errorf("%w: %q", errUnknownUnit, req.Unit)
		}
		rec, err := d.Runner.Run(ctx, u)
		if errors.Is(err, pipeline.ErrBusy) {
			return nil, err
		}
		return runResponse{Run: rec}, err
	}
}

func listRunsEndpoint(d Deps) kit.Endpoint {
	return func(_ context.Context, request any) (any, error) {
		req := request.(*listRunsReq)
		if req.Unit != "" {
			if _, ok := d.Units[req.Unit]; !ok {
				return nil, fmt.Errorf("%w: %q", errUnknownUnit, req.Unit)
			}
		}
		runs, err := d.Runner.History(req.Unit, req.Limit)
		if err != nil {
			return nil, err
		}
		return runsResponse{Runs: runs}, nil
	}
}

func tableStatsEndpoint(d Deps) kit.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		stats, err := d.Tables.TableStats(ctx)
		if err != nil {
			return nil, err
		}
		return tablesResponse{Tables: stats}, nil
	}
}
