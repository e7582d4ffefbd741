// SPDX-License-Identifier: MIT

package config

import (
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/matrixflow/internal/matrix"
)

// Model is the unified, format-agnostic representation of every workflow
// definition discovered on disk.
type Model struct {
	Workflows []*Workflow
}

// ExprPresent reports whether an optional expression attribute was actually
// written in the file. gohcl fills absent optional expression fields with a
// static null expression rather than nil, so a nil check is not enough:
// evaluate and look for that null. An expression that needs variables
// produces diagnostics here, which still means the attribute was written.
func ExprPresent(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return true
	}
	return !val.IsNull()
}

// Workflow is the root configuration unit: its triggers and its ordered
// list of jobs.
type Workflow struct {
	Name string
	On   *Triggers
	Jobs []*Job
}

// Triggers declares the events that start a workflow run.
type Triggers struct {
	Push        *BranchFilter
	PullRequest *BranchFilter
	// Schedules holds validated five-field cron specs.
	Schedules []string
}

// BranchFilter restricts a push or pull_request trigger to a set of
// branches. An empty list matches every branch.
type BranchFilter struct {
	Branches []string
}

// Job is one matrix-expandable unit of the workflow. Axes and exclusions are
// fixed once loaded; every triggering event expands them afresh.
type Job struct {
	Name string
	// RunsOn selects the execution environment label. It may reference
	// matrix.* and is evaluated per job instance. Nil means unspecified.
	RunsOn hcl.Expression
	// Timeout is the default per-step timeout. Zero means unlimited.
	Timeout time.Duration
	Matrix  *matrix.Spec
	Steps   []*Step
}

// Step is one ordered unit of work inside a job. Exactly one of Uses or Run
// is set; the loader rejects anything else.
type Step struct {
	Name string
	// Uses names a registered action handler.
	Uses string
	// With holds raw argument expressions for the action, evaluated per job
	// instance with the matrix variables in scope.
	With map[string]hcl.Expression
	// Run is the inline command expression. Like With, it may reference
	// matrix.* and is rendered per job instance.
	Run hcl.Expression
	// Shell runs the rendered command; defaults to "sh".
	Shell string
	// Env holds additional environment expressions for this step.
	Env map[string]hcl.Expression
	// Timeout overrides the job timeout for this step. Zero means inherit.
	Timeout time.Duration
}

// IsAction reports whether the step delegates to a registered action rather
// than running an inline command.
func (s *Step) IsAction() bool {
	return s.Uses != ""
}
