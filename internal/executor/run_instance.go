package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vk/matrixflow/internal/ctxlog"
	"github.com/vk/matrixflow/internal/plan"
)

// runInstance executes one job instance in a fresh, isolated workspace. The
// workspace is torn down unconditionally, whatever the outcome.
func (e *Executor) runInstance(ctx context.Context, inst *plan.Instance, result *InstanceResult) {
	logger := ctxlog.FromContext(ctx)

	started := time.Now()
	result.Status = StatusRunning
	result.StartedAt = &started

	defer func() {
		completed := time.Now()
		result.Status = StatusCompleted
		result.CompletedAt = &completed
	}()

	workspace, err := os.MkdirTemp("", "matrixflow-*")
	if err != nil {
		result.Conclusion = ConclusionFailure
		result.err = fmt.Errorf("failed to create workspace: %w", err)
		skipRemaining(result.Steps, 0)
		return
	}
	defer os.RemoveAll(workspace)
	logger.Debug("Workspace created.", "dir", workspace)

	env := instanceEnv(inst)

	for i, step := range inst.Steps {
		stepResult := result.Steps[i]

		if result.err != nil {
			// Fail-fast: a failed step aborts everything after it.
			stepResult.Status = StatusCompleted
			stepResult.Conclusion = ConclusionSkipped
			if result.Conclusion == ConclusionCancelled {
				stepResult.Conclusion = ConclusionCancelled
			}
			continue
		}
		if ctx.Err() != nil {
			stepResult.Status = StatusCompleted
			stepResult.Conclusion = ConclusionCancelled
			if result.err == nil {
				result.err = ctx.Err()
				result.Conclusion = ConclusionCancelled
			}
			continue
		}

		exported, err := e.runStep(ctx, inst, step, i, workspace, env, stepResult)
		if err != nil {
			result.err = err
			result.Conclusion = ConclusionFailure
			if errors.Is(err, context.Canceled) {
				result.Conclusion = ConclusionCancelled
			}
			continue
		}
		for key, value := range exported {
			env = setEnv(env, key, value)
		}
	}

	if result.err == nil {
		result.Conclusion = ConclusionSuccess
	}
}

// skipRemaining marks every step from index on as skipped.
func skipRemaining(steps []*StepResult, from int) {
	for _, step := range steps[from:] {
		step.Status = StatusCompleted
		step.Conclusion = ConclusionSkipped
	}
}

// instanceEnv builds the starting environment for an instance: the parent
// process environment plus one MATRIX_<AXIS> variable per axis.
func instanceEnv(inst *plan.Instance) []string {
	env := os.Environ()
	for _, name := range inst.Combo.Names {
		env = setEnv(env, "MATRIX_"+envName(name), inst.Combo.Values[name])
	}
	if inst.RunsOn != "" {
		env = setEnv(env, "RUNS_ON", inst.RunsOn)
	}
	return env
}

// setEnv returns env with key set to value, replacing an existing entry.
func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}

// envName normalizes an axis name into environment variable form.
func envName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}
