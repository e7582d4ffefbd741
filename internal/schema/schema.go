// Package schema defines the HCL block structures for workflow files. These
// structs are decode targets only; the hcl package translates them into the
// format-agnostic config model.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// ArgsBlock captures the free-form attributes of a `with` or `env` block.
type ArgsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// BranchFilter is the body of a `push` or `pull_request` trigger block.
type BranchFilter struct {
	Branches []string `hcl:"branches,optional"`
}

// Schedule is a single `schedule` trigger block.
type Schedule struct {
	Cron string `hcl:"cron"`
}

// On collects every trigger declared by a workflow.
type On struct {
	Push        *BranchFilter `hcl:"push,block"`
	PullRequest *BranchFilter `hcl:"pull_request,block"`
	Schedules   []*Schedule   `hcl:"schedule,block"`
}

// Axis is one named dimension of a job's matrix.
type Axis struct {
	Name   string   `hcl:"name,label"`
	Values []string `hcl:"values"`
}

// Exclude removes matching combinations from the matrix. Its attributes are
// free-form axis=value constraints.
type Exclude struct {
	Body hcl.Body `hcl:",remain"`
}

// Matrix is the body of a `strategy { matrix { ... } }` declaration.
type Matrix struct {
	Axes     []*Axis    `hcl:"axis,block"`
	Excludes []*Exclude `hcl:"exclude,block"`
}

// Strategy wraps the matrix block of a job.
type Strategy struct {
	Matrix *Matrix `hcl:"matrix,block"`
}

// Step represents a `step` block from a workflow file.
type Step struct {
	Name    string         `hcl:"name,label"`
	Uses    string         `hcl:"uses,optional"`
	With    *ArgsBlock     `hcl:"with,block"`
	Run     hcl.Expression `hcl:"run,optional"`
	Shell   string         `hcl:"shell,optional"`
	Timeout string         `hcl:"timeout,optional"`
	Env     *ArgsBlock     `hcl:"env,block"`
}

// Job represents a `job` block from a workflow file.
type Job struct {
	Name     string         `hcl:"name,label"`
	RunsOn   hcl.Expression `hcl:"runs_on,optional"`
	Timeout  string         `hcl:"timeout,optional"`
	Strategy *Strategy      `hcl:"strategy,block"`
	Steps    []*Step        `hcl:"step,block"`
}

// Workflow represents a top-level `workflow` block.
type Workflow struct {
	Name string `hcl:"name,label"`
	On   *On    `hcl:"on,block"`
	Jobs []*Job `hcl:"job,block"`
}

// Root is the decode target for a whole workflow file.
type Root struct {
	Workflows []*Workflow `hcl:"workflow,block"`
	Body      hcl.Body    `hcl:",remain"`
}
