// CLAUDE:SUMMARY Runs the external dbt project (deps, compile, run, test) behind a phase-runner interface, capturing output.
package dbt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Phases are run in this order; each must exit 0.
var Phases = []string{"deps", "compile", "run", "test"}

// PhaseResult is the outcome of one tool invocation.
type PhaseResult struct {
	Phase    string        `json:"phase"`
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Runner runs one phase of the transform tool. An error means the phase
// could not be started; a started phase reports failure via ExitCode.
type Runner interface {
	RunPhase(ctx context.Context, phase string) (PhaseResult, error)
}

// PhaseError reports a phase that exited non-zero.
type PhaseError struct {
	Result PhaseResult
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("dbt %s failed with exit code %d: %s", e.Result.Phase, e.Result.ExitCode, e.Result.Stderr)
}

// ExecRunner spawns `Binary phase` inside Dir.
type ExecRunner struct {
	Binary string
	Dir    string
}

func (r *ExecRunner) RunPhase(ctx context.Context, phase string) (PhaseResult, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Binary, phase)
	cmd.Dir = r.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := PhaseResult{
		Phase:    phase,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, fmt.Errorf("start dbt %s: %w", phase, err)
	}
	return res, nil
}

// Transform runs every phase in order and stops at the first failure.
// It returns the results of all phases that ran.
func Transform(ctx context.Context, r Runner, logger *slog.Logger) ([]PhaseResult, error) {
	var results []PhaseResult
	for _, phase := range Phases {
		logger.Info("running dbt phase", "phase", phase)
		res, err := r.RunPhase(ctx, phase)
		if err != nil {
			logger.Error("dbt phase could not run", "phase", phase, "error", err)
			return results, err
		}
		results = append(results, res)
		if res.ExitCode != 0 {
			err := &PhaseError{Result: res}
			logger.Error("dbt phase failed", "phase", phase, "exit_code", res.ExitCode, "stderr", res.Stderr)
			return results, err
		}
		logger.Info("dbt phase completed", "phase", phase, "duration", res.Duration)
	}
	return results, nil
}
