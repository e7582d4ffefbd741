// SPDX-License-Identifier: MIT

// Package plan materializes a workflow model against one triggering event:
// every job matching the event is expanded into its surviving matrix
// combinations, and each combination becomes one job instance with a fully
// rendered, ordered step list.
//
// Planning is pure. Building the same model against the same event always
// produces the same plan, so a re-run of an unchanged trigger is guaranteed
// to execute the same instances in the same per-instance step order.
package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/matrixflow/internal/config"
	"github.com/vk/matrixflow/internal/ctxlog"
	"github.com/vk/matrixflow/internal/matrix"
	"github.com/vk/matrixflow/internal/registry"
	"github.com/vk/matrixflow/internal/trigger"
)

// Plan is the full set of job instances one event gives rise to.
type Plan struct {
	Event     trigger.Event
	Workflows []string
	Instances []*Instance
}

// Instance is one isolated execution unit: a job crossed with one surviving
// matrix combination.
type Instance struct {
	// ID is "job (v1, v2, ...)" with values in axis order, or just the job
	// name for a matrix-less job. IDs are unique within a plan.
	ID       string
	Workflow string
	Job      string
	Combo    matrix.Combination
	// RunsOn is the rendered environment label, "" when unspecified.
	RunsOn string
	// Timeout is the job-level default step timeout.
	Timeout time.Duration
	Steps   []*RenderedStep
}

// RenderedStep is a step with its per-instance expressions resolved. With
// argument expressions stay raw; they are decoded against the instance's
// evaluation context when the action runs.
type RenderedStep struct {
	Name    string
	Uses    string
	With    map[string]hcl.Expression
	Run     string
	Shell   string
	Env     map[string]string
	Timeout time.Duration
}

// IsAction reports whether the step delegates to a registered action.
func (s *RenderedStep) IsAction() bool {
	return s.Uses != ""
}

// Build expands every workflow in the model that matches the event. Steps
// referencing unregistered actions fail here, before anything executes.
func Build(ctx context.Context, model *config.Model, ev trigger.Event, reg *registry.Registry) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	p := &Plan{Event: ev}
	ids := make(map[string]struct{})

	for _, wf := range model.Workflows {
		if !trigger.Matches(wf.On, ev) {
			logger.Debug("Workflow does not match event, skipping.", "workflow", wf.Name, "event", ev.Kind)
			continue
		}
		p.Workflows = append(p.Workflows, wf.Name)

		for _, job := range wf.Jobs {
			instances, err := expandJob(ctx, wf.Name, job, reg)
			if err != nil {
				return nil, fmt.Errorf("workflow %q, job %q: %w", wf.Name, job.Name, err)
			}
			for _, inst := range instances {
				if _, dup := ids[inst.ID]; dup {
					return nil, fmt.Errorf("duplicate job instance ID %q", inst.ID)
				}
				ids[inst.ID] = struct{}{}
				p.Instances = append(p.Instances, inst)
			}
		}
	}

	logger.Debug("Plan built.", "instances", len(p.Instances), "workflows", len(p.Workflows))
	return p, nil
}

func expandJob(ctx context.Context, workflow string, job *config.Job, reg *registry.Registry) ([]*Instance, error) {
	spec := job.Matrix
	if spec == nil {
		spec = &matrix.Spec{}
	}

	combos := spec.Expand()
	instances := make([]*Instance, 0, len(combos))

	for _, combo := range combos {
		evalCtx := EvalContext(combo)

		inst := &Instance{
			ID:       instanceID(workflow, job.Name, combo),
			Workflow: workflow,
			Job:      job.Name,
			Combo:    combo,
			Timeout:  job.Timeout,
		}

		if config.ExprPresent(job.RunsOn) {
			label, err := renderString(job.RunsOn, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("runs_on: %w", err)
			}
			inst.RunsOn = label
		}

		for _, step := range job.Steps {
			rendered, err := renderStep(step, evalCtx, reg)
			if err != nil {
				return nil, fmt.Errorf("instance %q, step %q: %w", inst.ID, step.Name, err)
			}
			inst.Steps = append(inst.Steps, rendered)
		}

		instances = append(instances, inst)
	}

	return instances, nil
}

func renderStep(step *config.Step, evalCtx *hcl.EvalContext, reg *registry.Registry) (*RenderedStep, error) {
	out := &RenderedStep{
		Name:    step.Name,
		Uses:    step.Uses,
		With:    step.With,
		Shell:   step.Shell,
		Timeout: step.Timeout,
	}

	if step.IsAction() {
		if _, ok := reg.Lookup(step.Uses); !ok {
			return nil, fmt.Errorf("unknown action %q", step.Uses)
		}
	} else {
		command, err := renderString(step.Run, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("run: %w", err)
		}
		out.Run = command
	}

	if len(step.Env) > 0 {
		out.Env = make(map[string]string, len(step.Env))
		for name, expr := range step.Env {
			val, err := renderString(expr, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("env %q: %w", name, err)
			}
			out.Env[name] = val
		}
	}

	return out, nil
}

// EvalContext builds the HCL evaluation context for one combination,
// exposing it as the `matrix` object variable.
func EvalContext(combo matrix.Combination) *hcl.EvalContext {
	values := make(map[string]cty.Value, len(combo.Values))
	for name, value := range combo.Values {
		values[name] = cty.StringVal(value)
	}

	matrixVal := cty.EmptyObjectVal
	if len(values) > 0 {
		matrixVal = cty.ObjectVal(values)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"matrix": matrixVal},
	}
}

func renderString(expr hcl.Expression, evalCtx *hcl.EvalContext) (string, error) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", diags
	}
	if val.IsNull() {
		return "", fmt.Errorf("expression produced null")
	}
	strVal, err := ctyToString(val)
	if err != nil {
		return "", err
	}
	return strVal, nil
}

func ctyToString(val cty.Value) (string, error) {
	if val.Type() == cty.String {
		return val.AsString(), nil
	}
	return "", fmt.Errorf("expected string, got %s", val.Type().FriendlyName())
}

// instanceID qualifies the job with its workflow so two workflows declaring
// the same job name never collide within one plan.
func instanceID(workflow, job string, combo matrix.Combination) string {
	label := combo.Label()
	if label == "" {
		return fmt.Sprintf("%s/%s", workflow, job)
	}
	return fmt.Sprintf("%s/%s (%s)", workflow, job, label)
}
