// CLAUDE:SUMMARY Executes pipeline units one at a time, timing them and recording run metadata, status and metrics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrBusy is returned when another unit is already running.
	ErrBusy = errors.New("a pipeline run is already in progress")
	// ErrDependency is returned when a unit's prerequisite has not succeeded.
	ErrDependency = errors.New("dependency has not succeeded")
)

// Runner executes units and keeps their history. It runs one unit at a time.
type Runner struct {
	runs    *RunStore
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.Mutex
}

// NewRunner creates a Runner. metrics may be nil.
func NewRunner(runs *RunStore, metrics *Metrics, logger *slog.Logger) *Runner {
	return &Runner{runs: runs, metrics: metrics, logger: logger, now: time.Now}
}

// Run executes u and records the outcome. The returned error is the unit's
// own error, unchanged; a failure to record is logged, not returned.
func (r *Runner) Run(ctx context.Context, u Unit) (RunRecord, error) {
	if !r.mu.TryLock() {
		return RunRecord{}, ErrBusy
	}
	defer r.mu.Unlock()
	return r.run(ctx, u)
}

// RunAll runs ingest then transform. Transform is recorded as skipped when
// ingest fails. The first error is returned.
func (r *Runner) RunAll(ctx context.Context, ingestUnit, transformUnit Unit) ([]RunRecord, error) {
	if !r.mu.TryLock() {
		return nil, ErrBusy
	}
	defer r.mu.Unlock()

	first, err := r.run(ctx, ingestUnit)
	records := []RunRecord{first}
	if err != nil {
		records = append(records, r.skip(transformUnit, fmt.Errorf("%w: %s failed", ErrDependency, ingestUnit.Name())))
		return records, err
	}
	second, err := r.run(ctx, transformUnit)
	return append(records, second), err
}

func (r *Runner) run(ctx context.Context, u Unit) (RunRecord, error) {
	if d, ok := u.(Dependent); ok {
		if err := r.checkDependency(d.DependsOn()); err != nil {
			return r.skip(u, err), err
		}
	}

	rec := RunRecord{ID: uuid.NewString(), Unit: u.Name(), StartedAt: r.now()}
	log := r.logger.With("unit", rec.Unit, "run_id", rec.ID)
	log.Info("run started")

	meta, err := u.Run(ctx)

	rec.FinishedAt = r.now()
	rec.Elapsed = rec.FinishedAt.Sub(rec.StartedAt)
	rec.Metadata = meta
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}
	rec.Status = StatusSuccess
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
	}
	rec.Metadata["execution_time_minutes"] = rec.Elapsed.Minutes()
	rec.Metadata["completion_time"] = rec.FinishedAt.Format(time.RFC3339)
	rec.Metadata["status"] = rec.Status

	if err != nil {
		log.Error("run failed", "elapsed", rec.Elapsed, "error", err)
	} else {
		log.Info("run completed", "elapsed", rec.Elapsed)
	}
	r.finish(rec)
	return rec, err
}

func (r *Runner) checkDependency(unit string) error {
	last, err := r.runs.LatestRun(unit)
	if err != nil {
		return err
	}
	if last == nil {
		return fmt.Errorf("%w: %s has never run", ErrDependency, unit)
	}
	if last.Status != StatusSuccess {
		return fmt.Errorf("%w: last %s run %s is %s", ErrDependency, unit, last.ID, last.Status)
	}
	return nil
}

func (r *Runner) skip(u Unit, reason error) RunRecord {
	now := r.now()
	rec := RunRecord{
		ID:         uuid.NewString(),
		Unit:       u.Name(),
		Status:     StatusSkipped,
		StartedAt:  now,
		FinishedAt: now,
		Error:      reason.Error(),
	}
	r.logger.Warn("run skipped", "unit", rec.Unit, "reason", reason)
	r.finish(rec)
	return rec
}

func (r *Runner) finish(rec RunRecord) {
	if err := r.runs.Record(rec); err != nil {
		r.logger.Error("could not record run", "unit", rec.Unit, "run_id", rec.ID, "error", err)
	}
	r.metrics.observeRun(rec)
}

// History returns recorded runs, newest first.
func (r *Runner) History(unit string, limit int) ([]RunRecord, error) {
	return r.runs.ListRuns(unit, limit)
}
