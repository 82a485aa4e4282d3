package usecase

import (
	"context"
	"fmt"

	"ragbench/internal/domain"
	"ragbench/internal/log"
	"ragbench/internal/port"
)

// SweepRun declares one run of a sweep.
type SweepRun struct {
	RunID  string
	Config domain.RunConfig
}

// SweepOutcome is the result of one attempted run. Runs never attempted
// after a failure have no outcome.
type SweepOutcome struct {
	RunID  string
	Result *domain.RunResult
	Err    error
}

// SweepOptions configure a sweep.
type SweepOptions struct {
	NResults  int
	OutputDir string
	// ContinueOnError keeps going after a failed run. By default the
	// sweep stops at the first failure.
	ContinueOnError bool
	Run             RunOptions
}

// SweepOrchestrator executes runs one after another against a shared
// dataset.
type SweepOrchestrator struct {
	factory port.ComponentFactory
	data    *Dataset
	opts    SweepOptions
}

func NewSweepOrchestrator(factory port.ComponentFactory, data *Dataset, opts SweepOptions) *SweepOrchestrator {
	if opts.NResults <= 0 {
		opts.NResults = 10
	}
	return &SweepOrchestrator{factory: factory, data: data, opts: opts}
}

// Run executes runs in order and returns the outcome of every attempted
// run. The error is non-nil if any run failed.
func (s *SweepOrchestrator) Run(ctx context.Context, runs []SweepRun) ([]SweepOutcome, error) {
	outcomes := make([]SweepOutcome, 0, len(runs))
	failed := 0
	for i, run := range runs {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		log.Infow("sweep run", "run_id", run.RunID, "index", i+1, "total", len(runs))

		result, err := s.runOne(ctx, run)
		outcomes = append(outcomes, SweepOutcome{RunID: run.RunID, Result: result, Err: err})
		if err == nil {
			continue
		}
		failed++
		if !s.opts.ContinueOnError {
			log.Errorw("sweep stopped", "run_id", run.RunID, "remaining", len(runs)-i-1, "error", err)
			return outcomes, fmt.Errorf("run %s: %w", run.RunID, err)
		}
		log.Errorw("run failed, continuing sweep", "run_id", run.RunID, "error", err)
	}
	if failed > 0 {
		return outcomes, fmt.Errorf("%d of %d runs failed", failed, len(runs))
	}
	return outcomes, nil
}

func (s *SweepOrchestrator) runOne(ctx context.Context, run SweepRun) (*domain.RunResult, error) {
	components, err := s.factory.Build(ctx, run.Config)
	if err != nil {
		return nil, err
	}
	if components.Close != nil {
		defer func() {
			if err := components.Close(); err != nil {
				log.Warnw("failed to release run components", "run_id", run.RunID, "error", err)
			}
		}()
	}
	orchestrator := NewRunOrchestrator(run.RunID, run.Config, s.data, components, s.opts.Run)
	return orchestrator.Run(ctx, s.opts.NResults, s.opts.OutputDir)
}
