package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/hazyhaar/covid-pipeline/pkg/pipeline"
)

func cmdOp(ctx context.Context, op string, args []string) error {
	fs, cfgPath, debug := commonFlags(op)
	fs.Parse(args)
	return withApp(*cfgPath, *debug, func(a *app) error {
		return a.runUnit(ctx, op)
	})
}

func cmdIngest(ctx context.Context, args []string) error {
	fs, cfgPath, debug := commonFlags(pipeline.UnitIngest)
	fs.Parse(args)
	return withApp(*cfgPath, *debug, func(a *app) error {
		return a.runUnit(ctx, pipeline.UnitIngest)
	})
}

func cmdTransform(ctx context.Context, args []string) error {
	fs, cfgPath, debug := commonFlags(pipeline.UnitTransform)
	fs.Parse(args)
	return withApp(*cfgPath, *debug, func(a *app) error {
		return a.runUnit(ctx, pipeline.UnitTransform)
	})
}

func cmdRunAll(ctx context.Context, args []string) error {
	fs, cfgPath, debug := commonFlags("run")
	fs.Parse(args)
	return withApp(*cfgPath, *debug, func(a *app) error {
		recs, err := a.runner.RunAll(ctx, a.units[pipeline.UnitIngest], a.units[pipeline.UnitTransform])
		for _, r := range recs {
			a.logger.Info("unit finished", "unit", r.Unit, "status", r.Status, "run_id", r.ID, "elapsed", r.Elapsed)
		}
		return err
	})
}

func cmdCheck(ctx context.Context, args []string) error {
	fs, cfgPath, debug := commonFlags("check")
	fs.Parse(args)
	return withApp(*cfgPath, *debug, func(a *app) error {
		c := pipeline.NewChecker(&a.cfg.Ingestion, a.runs, a.metrics, a.logger, a.cfg.CheckInterval)
		if _, failed := c.CheckAll(ctx); failed > 0 {
			return fmt.Errorf("%d source(s) unavailable", failed)
		}
		return nil
	})
}

func cmdRuns(args []string, out io.Writer) error {
	fs, cfgPath, debug := commonFlags("runs")
	unit := fs.String("unit", "", "only runs of this unit")
	limit := fs.Int("limit", 20, "maximum number of runs")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	fs.Parse(args)

	return withApp(*cfgPath, *debug, func(a *app) error {
		runs, err := a.runner.History(*unit, *limit)
		if err != nil {
			a.logger.Error("list runs", "error", err)
			return err
		}
		return printRuns(out, runs, *asJSON)
	})
}

func printRuns(out io.Writer, runs []pipeline.RunRecord, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tUNIT\tSTATUS\tELAPSED\tID\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Unit, r.Status,
			r.Elapsed.Round(time.Millisecond), r.ID, r.Error)
	}
	return tw.Flush()
}

// withApp builds the shared components, runs fn and releases them.
func withApp(cfgPath string, debug bool, fn func(*app) error) error {
	a, err := newApp(cfgPath, debug)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
