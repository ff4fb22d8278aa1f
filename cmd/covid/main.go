// CLAUDE:SUMMARY covid CLI: runs the ingestion operations, dbt transform and source checks, and serves the HTTP and MCP surfaces.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hazyhaar/covid-pipeline/pkg/config"
	"github.com/hazyhaar/covid-pipeline/pkg/dbt"
	"github.com/hazyhaar/covid-pipeline/pkg/ingest"
	"github.com/hazyhaar/covid-pipeline/pkg/logging"
	"github.com/hazyhaar/covid-pipeline/pkg/pipeline"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case pipeline.OpDownload, pipeline.OpCleanup, pipeline.OpLoad:
		err = cmdOp(ctx, cmd, args)
	case pipeline.UnitIngest:
		err = cmdIngest(ctx, args)
	case pipeline.UnitTransform:
		err = cmdTransform(ctx, args)
	case "run":
		err = cmdRunAll(ctx, args)
	case "check":
		err = cmdCheck(ctx, args)
	case "runs":
		err = cmdRuns(args, os.Stdout)
	case "serve":
		err = cmdServe(ctx, args)
	case "mcp":
		err = cmdMCP(ctx, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		stop()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: covid <command> [-config config.yaml] [-debug]

Commands:
  download   Fetch one CSV per metric into the staging directory
  cleanup    Remove staged files older than the retention window
  load       Validate, clean, reshape and load the latest staged files
  ingest     download, load, then cleanup
  transform  Run dbt deps, compile, run and test
  run        ingest then transform
  check      HEAD every source URL and record availability
  runs       Print the run history
  serve      Start the HTTP API with periodic source checks
  mcp        Serve MCP tools over stdio
`)
}

// app wires the components every subcommand shares.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	closeLog  io.Closer
	runs      *pipeline.RunStore
	registry  *prometheus.Registry
	metrics   *pipeline.Metrics
	runner    *pipeline.Runner
	ingestion *ingest.Ingestion
	units     map[string]pipeline.Unit
}

// commonFlags registers the flags every subcommand accepts.
func commonFlags(name string) (fs *flag.FlagSet, cfgPath *string, debug *bool) {
	fs = flag.NewFlagSet(name, flag.ExitOnError)
	cfgPath = fs.String("config", "config.yaml", "path to config file")
	debug = fs.Bool("debug", false, "log at debug level")
	return fs, cfgPath, debug
}

func newApp(cfgPath string, debug bool) (*app, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	boot := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(cfgPath, boot)
	if err != nil {
		boot.Error("load config", "error", err)
		return nil, err
	}

	logger, closeLog, err := logging.New(logging.Options{File: cfg.LogFile, Level: level})
	if err != nil {
		boot.Error("open log file", "path", cfg.LogFile, "error", err)
		return nil, err
	}

	runs, err := pipeline.OpenRunStore(cfg.RunsDB)
	if err != nil {
		logger.Error("open run store", "path", cfg.RunsDB, "error", err)
		closeLog.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(registry)
	ing := ingest.New(cfg.Ingestion, logger, ingest.Options{})

	units := pipeline.OpUnits(ing)
	units[pipeline.UnitIngest] = pipeline.NewIngestUnit(ing, logger)
	units[pipeline.UnitTransform] = pipeline.NewTransformUnit(
		&dbt.ExecRunner{Binary: cfg.DBT.Binary, Dir: cfg.DBT.ProjectDir},
		cfg.DBT.ProjectDir, logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		closeLog:  closeLog,
		runs:      runs,
		registry:  registry,
		metrics:   metrics,
		runner:    pipeline.NewRunner(runs, metrics, logger),
		ingestion: ing,
		units:     units,
	}, nil
}

func (a *app) Close() {
	if err := a.runs.Close(); err != nil {
		a.logger.Error("close run store", "error", err)
	}
	a.closeLog.Close()
}

// runUnit executes one named unit through the runner so it is recorded.
func (a *app) runUnit(ctx context.Context, name string) error {
	rec, err := a.runner.Run(ctx, a.units[name])
	if err != nil {
		return err
	}
	a.logger.Info("unit finished", "unit", name, "run_id", rec.ID, "elapsed", rec.Elapsed)
	return nil
}
