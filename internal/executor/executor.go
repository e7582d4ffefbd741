// SPDX-License-Identifier: MIT

// Package executor runs the job instances of a plan. Instances execute
// concurrently on a worker pool and share no mutable state; the steps inside
// an instance execute strictly sequentially and fail fast. One instance
// failing never disturbs its siblings — the run's aggregate conclusion is
// simply the AND of every instance conclusion.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vk/matrixflow/internal/config"
	"github.com/vk/matrixflow/internal/ctxlog"
	"github.com/vk/matrixflow/internal/logstore"
	"github.com/vk/matrixflow/internal/plan"
	"github.com/vk/matrixflow/internal/registry"
)

// Executor orchestrates the end-to-end execution of one plan.
type Executor struct {
	plan      *plan.Plan
	workers   int
	registry  *registry.Registry
	converter config.Converter
	logs      *logstore.Store

	// runID is assigned once at the start of Run.
	runID string
}

// New creates an executor for the given plan.
func New(p *plan.Plan, workers int, reg *registry.Registry, conv config.Converter, logs *logstore.Store) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{
		plan:      p,
		workers:   workers,
		registry:  reg,
		converter: conv,
		logs:      logs,
	}
}

// Run executes every instance of the plan and returns the run report. The
// returned error joins the failures of all failed instances; it is nil only
// when every instance succeeded.
func (e *Executor) Run(ctx context.Context) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()

	e.runID = fmt.Sprintf("%s-%s", start.UTC().Format("20060102T150405"), e.plan.Event.Kind)
	report := &Report{
		RunID:     e.runID,
		Event:     string(e.plan.Event.Kind),
		Branch:    e.plan.Event.Branch,
		StartedAt: start,
		Instances: make([]*InstanceResult, len(e.plan.Instances)),
	}

	// Results are pre-allocated in plan order so the report is deterministic
	// regardless of which worker finishes first.
	for i, inst := range e.plan.Instances {
		report.Instances[i] = newInstanceResult(inst)
	}

	logger.Info("🚀 Starting matrix execution.", "run_id", report.RunID, "instances", len(e.plan.Instances), "workers", e.workers)

	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			e.worker(ctx, work, report.Instances, workerID)
		}(w)
	}
	for i := range e.plan.Instances {
		work <- i
	}
	close(work)
	wg.Wait()

	report.CompletedAt = time.Now()
	if report.Succeeded() {
		report.Conclusion = ConclusionSuccess
	} else {
		report.Conclusion = ConclusionFailure
	}

	if e.logs != nil {
		if path, err := e.logs.WriteReport(report.RunID, report); err != nil {
			logger.Error("Failed to write run report.", "error", err)
		} else {
			logger.Debug("Run report written.", "path", path)
		}
	}

	var errs []error
	for _, inst := range report.Instances {
		if inst.err != nil {
			errs = append(errs, fmt.Errorf("instance %q: %w", inst.ID, inst.err))
		}
	}

	logger.Info("🏁 Matrix execution finished.", "run_id", report.RunID, "conclusion", report.Conclusion)
	return report, errors.Join(errs...)
}

// worker is the processing loop for a single concurrent worker. Each item of
// work is one whole job instance; its result slot is written by this worker
// only.
func (e *Executor) worker(ctx context.Context, work <-chan int, results []*InstanceResult, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for idx := range work {
		inst := e.plan.Instances[idx]
		result := results[idx]

		if ctx.Err() != nil {
			cancelInstance(result, ctx.Err())
			continue
		}

		instLogger := logger.With("workerID", workerID, "instance", inst.ID)
		instLogger.Info("▶️ Starting job instance.")
		e.runInstance(ctxlog.WithLogger(ctx, instLogger), inst, result)

		if result.Conclusion == ConclusionSuccess {
			instLogger.Info("✅ Job instance succeeded.")
		} else {
			instLogger.Error("Job instance did not succeed.", "conclusion", result.Conclusion, "error", result.err)
		}
	}

	logger.Debug("Worker finished.", "workerID", workerID)
}

func newInstanceResult(inst *plan.Instance) *InstanceResult {
	result := &InstanceResult{
		ID:     inst.ID,
		Job:    inst.Job,
		Matrix: inst.Combo.Values,
		RunsOn: inst.RunsOn,
		Status: StatusPending,
		Steps:  make([]*StepResult, len(inst.Steps)),
	}
	for i, step := range inst.Steps {
		result.Steps[i] = &StepResult{
			Number: i + 1,
			Name:   step.Name,
			Status: StatusPending,
		}
	}
	return result
}

// cancelInstance marks an instance that never started as cancelled.
func cancelInstance(result *InstanceResult, cause error) {
	result.Status = StatusCompleted
	result.Conclusion = ConclusionCancelled
	result.err = cause
	for _, step := range result.Steps {
		step.Status = StatusCompleted
		step.Conclusion = ConclusionCancelled
	}
}
