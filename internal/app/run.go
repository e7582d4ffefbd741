package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/matrixflow/internal/ctxlog"
	"github.com/vk/matrixflow/internal/executor"
	"github.com/vk/matrixflow/internal/logstore"
	"github.com/vk/matrixflow/internal/plan"
	"github.com/vk/matrixflow/internal/trigger"
)

// Run executes the main application logic: a one-shot run for the configured
// event, or a blocking schedule loop in watch mode.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
		defer a.closeHealthcheckServer()
	}

	if a.config.Watch {
		return a.watch(ctx)
	}

	// EventKind was validated by NewConfig.
	kind, err := trigger.ParseKind(a.config.EventKind)
	if err != nil {
		return err
	}
	ev := trigger.Event{Kind: kind, Branch: a.config.Branch, Time: time.Now()}

	report, err := a.executeEvent(ctx, ev)
	if err != nil {
		return err
	}
	if report != nil && !report.Succeeded() {
		return fmt.Errorf("run %s concluded with %s", report.RunID, report.Conclusion)
	}
	return nil
}

// executeEvent plans and executes every workflow matching the event.
func (a *App) executeEvent(ctx context.Context, ev trigger.Event) (*executor.Report, error) {
	a.logger.Debug("Building execution plan from workflow model...", "event", ev.Kind, "branch", ev.Branch)
	p, err := plan.Build(ctx, a.model, ev, a.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to build execution plan: %w", err)
	}
	a.logger.Debug("Execution plan built.", "instance_count", len(p.Instances))

	if len(p.Instances) == 0 {
		a.logger.Warn("No job instances matched the event, execution not required.", "event", ev.Kind)
		return nil, nil
	}

	a.logger.Info("🚀 Starting concurrent execution...", "instances", len(p.Instances), "workers", a.config.WorkerCount)
	exec := executor.New(p, a.config.WorkerCount, a.registry, a.converter, logstore.New(a.config.LogsDir))
	report, err := exec.Run(ctx)
	if report != nil {
		a.printSummary(report)
	}
	if err != nil {
		return report, fmt.Errorf("execution failed: %w", err)
	}
	a.logger.Info("🏁 Execution finished.", "run_id", report.RunID, "conclusion", report.Conclusion)
	return report, nil
}

// printSummary writes a per-instance result table to the app's output writer.
func (a *App) printSummary(report *executor.Report) {
	fmt.Fprintf(a.outW, "\nRun %s: %s\n", report.RunID, report.Conclusion)
	for _, inst := range report.Instances {
		mark := "✅"
		switch inst.Conclusion {
		case executor.ConclusionFailure:
			mark = "❌"
		case executor.ConclusionCancelled:
			mark = "🚫"
		case executor.ConclusionSkipped:
			mark = "⏭️"
		}
		fmt.Fprintf(a.outW, "  %s %s\n", mark, inst.ID)
	}
}
