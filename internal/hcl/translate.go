// This file contains the logic for translating HCL schema structs into the
// format-agnostic configuration model defined in the config package.

package hcl

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/matrixflow/internal/config"
	"github.com/vk/matrixflow/internal/matrix"
	"github.com/vk/matrixflow/internal/schema"
	"github.com/vk/matrixflow/internal/trigger"
)

// translateWorkflow converts a decoded workflow block into the agnostic
// model, validating everything that can be checked at load time: cron specs,
// timeouts, the matrix declaration, and the one-of-run/uses step rule.
func (l *Loader) translateWorkflow(ctx context.Context, wf *schema.Workflow) (*config.Workflow, error) {
	if wf.On == nil {
		return nil, fmt.Errorf("workflow %q declares no triggers", wf.Name)
	}

	on, err := translateTriggers(wf.On)
	if err != nil {
		return nil, fmt.Errorf("workflow %q: %w", wf.Name, err)
	}

	out := &config.Workflow{Name: wf.Name, On: on}

	if len(wf.Jobs) == 0 {
		return nil, fmt.Errorf("workflow %q has no jobs", wf.Name)
	}

	jobNames := make(map[string]struct{}, len(wf.Jobs))
	for _, job := range wf.Jobs {
		if _, dup := jobNames[job.Name]; dup {
			return nil, fmt.Errorf("workflow %q: job %q declared more than once", wf.Name, job.Name)
		}
		jobNames[job.Name] = struct{}{}

		translated, err := l.translateJob(ctx, job)
		if err != nil {
			return nil, fmt.Errorf("workflow %q, job %q: %w", wf.Name, job.Name, err)
		}
		out.Jobs = append(out.Jobs, translated)
	}

	return out, nil
}

func translateTriggers(on *schema.On) (*config.Triggers, error) {
	out := &config.Triggers{}
	if on.Push != nil {
		out.Push = &config.BranchFilter{Branches: on.Push.Branches}
	}
	if on.PullRequest != nil {
		out.PullRequest = &config.BranchFilter{Branches: on.PullRequest.Branches}
	}
	for _, sched := range on.Schedules {
		if _, err := trigger.ParseCron(sched.Cron); err != nil {
			return nil, err
		}
		out.Schedules = append(out.Schedules, sched.Cron)
	}
	if out.Push == nil && out.PullRequest == nil && len(out.Schedules) == 0 {
		return nil, fmt.Errorf("empty 'on' block")
	}
	return out, nil
}

func (l *Loader) translateJob(ctx context.Context, job *schema.Job) (*config.Job, error) {
	timeout, err := parseTimeout(job.Timeout)
	if err != nil {
		return nil, err
	}

	out := &config.Job{
		Name:    job.Name,
		RunsOn:  job.RunsOn,
		Timeout: timeout,
	}

	if job.Strategy != nil && job.Strategy.Matrix != nil {
		spec, err := translateMatrix(job.Strategy.Matrix)
		if err != nil {
			return nil, err
		}
		out.Matrix = spec
	}

	if len(job.Steps) == 0 {
		return nil, fmt.Errorf("job has no steps")
	}
	for _, step := range job.Steps {
		translated, err := l.translateStep(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", step.Name, err)
		}
		out.Steps = append(out.Steps, translated)
	}

	return out, nil
}

func translateMatrix(m *schema.Matrix) (*matrix.Spec, error) {
	spec := &matrix.Spec{}
	for _, axis := range m.Axes {
		spec.Axes = append(spec.Axes, matrix.Axis{Name: axis.Name, Values: axis.Values})
	}
	for _, excl := range m.Excludes {
		rule, err := translateExclude(excl)
		if err != nil {
			return nil, err
		}
		spec.Excludes = append(spec.Excludes, rule)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// translateExclude turns the free-form attributes of an exclude block into
// axis=value constraints. Values must be constant strings; an exclusion that
// needs an expression would make the matrix non-deterministic.
func translateExclude(excl *schema.Exclude) (matrix.Exclusion, error) {
	attrs, diags := excl.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid exclude block: %w", diags)
	}

	rule := make(matrix.Exclusion, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("exclude constraint %q must be a constant: %w", name, diags)
		}
		strVal, err := convert.Convert(val, cty.String)
		if err != nil {
			return nil, fmt.Errorf("exclude constraint %q: %w", name, err)
		}
		rule[name] = strVal.AsString()
	}
	return rule, nil
}

func (l *Loader) translateStep(ctx context.Context, step *schema.Step) (*config.Step, error) {
	timeout, err := parseTimeout(step.Timeout)
	if err != nil {
		return nil, err
	}

	out := &config.Step{
		Name:    step.Name,
		Uses:    step.Uses,
		Shell:   step.Shell,
		Timeout: timeout,
		With:    extractBodyAttributes(step.With),
		Env:     extractBodyAttributes(step.Env),
	}

	hasRun := config.ExprPresent(step.Run)
	switch {
	case step.Uses != "" && hasRun:
		return nil, fmt.Errorf("declares both 'uses' and 'run'")
	case step.Uses == "" && !hasRun:
		return nil, fmt.Errorf("declares neither 'uses' nor 'run'")
	case hasRun:
		out.Run = step.Run
	}

	if step.Uses != "" && out.Shell != "" {
		return nil, fmt.Errorf("'shell' is only valid with 'run'")
	}

	return out, nil
}

func extractBodyAttributes(block *schema.ArgsBlock) map[string]hcl.Expression {
	if block == nil || block.Body == nil {
		return nil
	}
	attrs, _ := block.Body.JustAttributes()
	if len(attrs) == 0 {
		return nil
	}
	exprMap := make(map[string]hcl.Expression, len(attrs))
	for name, attr := range attrs {
		exprMap[name] = attr.Expr
	}
	return exprMap
}

func parseTimeout(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout %q must be positive", raw)
	}
	return d, nil
}
