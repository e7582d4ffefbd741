package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/vk/matrixflow/internal/ctxlog"
	"github.com/vk/matrixflow/internal/plan"
	"github.com/vk/matrixflow/internal/registry"
)

// runStep executes a single step of an instance and records its result. The
// returned map carries environment exported by an action for later steps.
func (e *Executor) runStep(ctx context.Context, inst *plan.Instance, step *plan.RenderedStep, index int, workspace string, env []string, result *StepResult) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx).With("step", step.Name)
	logger.Info("▶️ Starting step.")

	started := time.Now()
	result.Status = StatusRunning
	result.StartedAt = &started

	timeout := step.Timeout
	if timeout == 0 {
		timeout = inst.Timeout
	}
	stepCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Step-level env entries are scoped to this step only.
	stepEnv := env
	if len(step.Env) > 0 {
		stepEnv = append([]string(nil), env...)
		for key, value := range step.Env {
			stepEnv = setEnv(stepEnv, key, value)
		}
	}

	var output bytes.Buffer
	var exported map[string]string
	var err error
	if step.IsAction() {
		exported, err = e.runAction(stepCtx, inst, step, workspace, stepEnv, &output)
	} else {
		err = runShell(stepCtx, step, workspace, stepEnv, &output)
	}

	if err != nil && stepCtx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("step timed out after %s: %w", timeout, err)
	}

	completed := time.Now()
	result.Status = StatusCompleted
	result.CompletedAt = &completed

	if e.logs != nil {
		if path, logErr := e.logs.SaveStepLog(e.runID, inst.ID, index, step.Name, output.String()); logErr != nil {
			logger.Warn("Failed to save step log.", "error", logErr)
		} else {
			result.LogPath = path
		}
	}

	if err != nil {
		result.Conclusion = ConclusionFailure
		result.Error = err.Error()
		logger.Error("Step failed.", "error", err)
		return nil, fmt.Errorf("step %q: %w", step.Name, err)
	}

	result.Conclusion = ConclusionSuccess
	logger.Info("✅ Step finished.", "duration", completed.Sub(started).Round(time.Millisecond))
	return exported, nil
}

// runAction dispatches a `uses` step to its registered handler with the
// step's decoded arguments.
func (e *Executor) runAction(ctx context.Context, inst *plan.Instance, step *plan.RenderedStep, workspace string, env []string, output *bytes.Buffer) (map[string]string, error) {
	action, ok := e.registry.Lookup(step.Uses)
	if !ok {
		// Plan validation already checked this; hitting it means the
		// registry changed under a running executor.
		return nil, fmt.Errorf("unknown action %q", step.Uses)
	}

	var input any
	if action.NewInput != nil {
		input = action.NewInput()
		evalCtx := plan.EvalContext(inst.Combo)
		if err := e.converter.DecodeArgs(ctx, input, step.With, evalCtx); err != nil {
			return nil, fmt.Errorf("action %q: %w", step.Uses, err)
		}
	} else if len(step.With) > 0 {
		return nil, fmt.Errorf("action %q accepts no arguments", step.Uses)
	}

	ac := &registry.ActionContext{
		Dir:    workspace,
		Env:    append([]string(nil), env...),
		Matrix: inst.Combo.Values,
		Output: output,
	}
	return action.Fn(ctx, ac, input)
}

// runShell executes an inline command through the step's shell in the
// instance workspace, capturing stdout and stderr together.
func runShell(ctx context.Context, step *plan.RenderedStep, workspace string, env []string, output *bytes.Buffer) error {
	shell := step.Shell
	if shell == "" {
		shell = "sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", step.Run)
	cmd.Dir = workspace
	cmd.Env = env
	cmd.Stdout = output
	cmd.Stderr = output

	return cmd.Run()
}
