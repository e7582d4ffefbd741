package plan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/matrixflow/internal/config"
	"github.com/vk/matrixflow/internal/hcl"
	"github.com/vk/matrixflow/internal/registry"
	"github.com/vk/matrixflow/internal/trigger"
)

const matrixWorkflow = `
workflow "ci" {
  on {
    push { branches = ["main"] }
    schedule { cron = "0 4 * * 0" }
  }

  job "test" {
    runs_on = matrix.os

    strategy {
      matrix {
        axis "os" { values = ["ubuntu-latest", "windows-latest"] }
        axis "python_version" { values = ["3.8", "3.9", "3.10"] }
        exclude {
          os             = "windows-latest"
          python_version = "3.8"
        }
        exclude {
          os             = "windows-latest"
          python_version = "3.9"
        }
      }
    }

    step "checkout" { uses = "checkout" }
    step "report version" {
      run = "echo python ${matrix.python_version}"
    }
  }
}
`

func loadModel(t *testing.T, content string) *config.Model {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ci.hcl"), []byte(content), 0644))
	model, _, err := hcl.NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	return model
}

func testRegistry() *registry.Registry {
	r := registry.New()
	r.RegisterAction("checkout", &registry.RegisteredAction{
		Fn: func(context.Context, *registry.ActionContext, any) (map[string]string, error) {
			return nil, nil
		},
	})
	return r
}

func instanceIDs(p *Plan) []string {
	ids := make([]string, len(p.Instances))
	for i, inst := range p.Instances {
		ids[i] = inst.ID
	}
	return ids
}

func TestBuild_MatrixExpansion(t *testing.T) {
	model := loadModel(t, matrixWorkflow)
	ev := trigger.Event{Kind: trigger.KindPush, Branch: "main", Time: time.Now()}

	p, err := Build(context.Background(), model, ev, testRegistry())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ci/test (ubuntu-latest, 3.8)",
		"ci/test (ubuntu-latest, 3.9)",
		"ci/test (ubuntu-latest, 3.10)",
		"ci/test (windows-latest, 3.10)",
	}, instanceIDs(p))
}

func TestBuild_RendersPerInstanceExpressions(t *testing.T) {
	model := loadModel(t, matrixWorkflow)
	ev := trigger.Event{Kind: trigger.KindPush, Branch: "main"}

	p, err := Build(context.Background(), model, ev, testRegistry())
	require.NoError(t, err)
	require.Len(t, p.Instances, 4)

	first := p.Instances[0]
	assert.Equal(t, "ubuntu-latest", first.RunsOn)
	require.Len(t, first.Steps, 2)
	assert.Equal(t, "echo python 3.8", first.Steps[1].Run)

	last := p.Instances[3]
	assert.Equal(t, "windows-latest", last.RunsOn)
	assert.Equal(t, "echo python 3.10", last.Steps[1].Run)
}

func TestBuild_SchedulePlanMatchesPushPlan(t *testing.T) {
	model := loadModel(t, matrixWorkflow)

	pushPlan, err := Build(context.Background(), model,
		trigger.Event{Kind: trigger.KindPush, Branch: "main"}, testRegistry())
	require.NoError(t, err)

	schedPlan, err := Build(context.Background(), model,
		trigger.Event{Kind: trigger.KindSchedule, Time: time.Now()}, testRegistry())
	require.NoError(t, err)

	assert.Equal(t, instanceIDs(pushPlan), instanceIDs(schedPlan))
}

func TestBuild_Idempotent(t *testing.T) {
	model := loadModel(t, matrixWorkflow)
	ev := trigger.Event{Kind: trigger.KindPush, Branch: "main"}

	first, err := Build(context.Background(), model, ev, testRegistry())
	require.NoError(t, err)
	second, err := Build(context.Background(), model, ev, testRegistry())
	require.NoError(t, err)

	require.Equal(t, instanceIDs(first), instanceIDs(second))
	for i := range first.Instances {
		var a, b []string
		for _, s := range first.Instances[i].Steps {
			a = append(a, s.Name)
		}
		for _, s := range second.Instances[i].Steps {
			b = append(b, s.Name)
		}
		assert.Equal(t, a, b)
	}
}

func TestBuild_NonMatchingEventYieldsEmptyPlan(t *testing.T) {
	model := loadModel(t, matrixWorkflow)

	// The workflow declares no pull_request trigger.
	p, err := Build(context.Background(), model,
		trigger.Event{Kind: trigger.KindPullRequest, Branch: "main"}, testRegistry())
	require.NoError(t, err)
	assert.Empty(t, p.Instances)
	assert.Empty(t, p.Workflows)
}

func TestBuild_UnknownActionFails(t *testing.T) {
	model := loadModel(t, `
workflow "ci" {
  on {
    push {}
  }
  job "j" {
    step "s" { uses = "does-not-exist" }
  }
}
`)

	_, err := Build(context.Background(), model,
		trigger.Event{Kind: trigger.KindPush}, registry.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown action "does-not-exist"`)
}

func TestBuild_JobWithoutMatrixYieldsOneInstance(t *testing.T) {
	model := loadModel(t, `
workflow "ci" {
  on {
    push {}
  }
  job "lint" {
    step "s" { run = "true" }
  }
}
`)

	p, err := Build(context.Background(), model,
		trigger.Event{Kind: trigger.KindPush}, registry.New())
	require.NoError(t, err)
	require.Len(t, p.Instances, 1)
	assert.Equal(t, "ci/lint", p.Instances[0].ID)
}

func TestBuild_JobWithoutRunsOnGetsEmptyLabel(t *testing.T) {
	model := loadModel(t, `
workflow "ci" {
  on {
    push {}
  }
  job "lint" {
    step "s" { run = "true" }
  }
}
`)

	p, err := Build(context.Background(), model,
		trigger.Event{Kind: trigger.KindPush}, registry.New())
	require.NoError(t, err)
	require.Len(t, p.Instances, 1)
	assert.Empty(t, p.Instances[0].RunsOn)
}

func TestBuild_SameJobNameAcrossWorkflows(t *testing.T) {
	model := loadModel(t, `
workflow "ci" {
  on {
    push {}
  }
  job "test" {
    step "s" { run = "true" }
  }
}

workflow "nightly" {
  on {
    push {}
  }
  job "test" {
    step "s" { run = "true" }
  }
}
`)

	p, err := Build(context.Background(), model,
		trigger.Event{Kind: trigger.KindPush}, registry.New())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ci/test", "nightly/test"}, instanceIDs(p))
}
