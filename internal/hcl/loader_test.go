package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/matrixflow/internal/config"
)

const ciWorkflow = `
workflow "ci" {
  on {
    push { branches = ["main"] }
    pull_request { branches = ["main"] }
    schedule { cron = "0 4 * * 0" }
  }

  job "test" {
    runs_on = matrix.os
    timeout = "30m"

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

    step "checkout" {
      uses = "checkout"
      with { source = "." }
    }

    step "install deps" {
      run     = "pip install -e ."
      timeout = "10m"
    }

    step "run tests" {
      run = "pytest --cov=kale --nbval"
      env {
        PYTHON_VERSION = matrix.python_version
      }
    }
  }
}
`

func loadFixture(t *testing.T, content string) (*config.Model, config.Converter, error) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ci.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return NewLoader().Load(context.Background(), dir)
}

func TestLoad_FullWorkflow(t *testing.T) {
	model, conv, err := loadFixture(t, ciWorkflow)
	require.NoError(t, err)
	require.NotNil(t, conv)
	require.Len(t, model.Workflows, 1)

	wf := model.Workflows[0]
	assert.Equal(t, "ci", wf.Name)

	require.NotNil(t, wf.On)
	require.NotNil(t, wf.On.Push)
	assert.Equal(t, []string{"main"}, wf.On.Push.Branches)
	require.NotNil(t, wf.On.PullRequest)
	assert.Equal(t, []string{"0 4 * * 0"}, wf.On.Schedules)

	require.Len(t, wf.Jobs, 1)
	job := wf.Jobs[0]
	assert.Equal(t, "test", job.Name)
	assert.Equal(t, 30*time.Minute, job.Timeout)
	assert.True(t, config.ExprPresent(job.RunsOn))

	require.NotNil(t, job.Matrix)
	require.Len(t, job.Matrix.Axes, 2)
	assert.Equal(t, "os", job.Matrix.Axes[0].Name)
	assert.Equal(t, "python_version", job.Matrix.Axes[1].Name)
	require.Len(t, job.Matrix.Excludes, 2)
	assert.Equal(t, "windows-latest", job.Matrix.Excludes[0]["os"])

	require.Len(t, job.Steps, 3)
	assert.Equal(t, "checkout", job.Steps[0].Name)
	assert.True(t, job.Steps[0].IsAction())
	assert.Contains(t, job.Steps[0].With, "source")

	assert.Equal(t, "install deps", job.Steps[1].Name)
	assert.False(t, job.Steps[1].IsAction())
	assert.Equal(t, 10*time.Minute, job.Steps[1].Timeout)

	assert.Contains(t, job.Steps[2].Env, "PYTHON_VERSION")
}

func TestLoad_StepOrderPreserved(t *testing.T) {
	model, _, err := loadFixture(t, ciWorkflow)
	require.NoError(t, err)

	var names []string
	for _, s := range model.Workflows[0].Jobs[0].Steps {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"checkout", "install deps", "run tests"}, names)
}

func TestLoad_DiscoversNestedWorkflowFiles(t *testing.T) {
	dir := t.TempDir()
	nightly := `
workflow "nightly" {
  on {
    push {}
  }
  job "j" {
    step "s" { run = "true" }
  }
}
`
	daily := `
workflow "daily" {
  on {
    push {}
  }
  job "j" {
    step "s" { run = "true" }
  }
}
`
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "daily.hcl"), []byte(daily), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "nightly.hcl"), []byte(nightly), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a workflow"), 0644))

	model, _, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)

	var names []string
	for _, wf := range model.Workflows {
		names = append(names, wf.Name)
	}
	assert.ElementsMatch(t, []string{"daily", "nightly"}, names)
}

func TestLoad_ActionOnlyStepHasNoRunExpression(t *testing.T) {
	// gohcl leaves absent optional expressions as static nulls, not nil;
	// a step declaring only 'uses' must still load as an action step.
	model, _, err := loadFixture(t, `
workflow "ci" {
  on {
    push {}
  }
  job "test" {
    step "checkout" { uses = "checkout" }
  }
}
`)
	require.NoError(t, err)

	step := model.Workflows[0].Jobs[0].Steps[0]
	assert.True(t, step.IsAction())
	assert.False(t, config.ExprPresent(step.Run))
}

func TestLoad_RejectsStepWithRunAndUses(t *testing.T) {
	_, _, err := loadFixture(t, `
workflow "bad" {
  on {
    push {}
  }
  job "j" {
    step "s" {
      uses = "checkout"
      run  = "echo hi"
    }
  }
}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both 'uses' and 'run'")
}

func TestLoad_RejectsStepWithNeitherRunNorUses(t *testing.T) {
	_, _, err := loadFixture(t, `
workflow "bad" {
  on {
    push {}
  }
  job "j" {
    step "s" {}
  }
}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither 'uses' nor 'run'")
}

func TestLoad_RejectsInvalidCron(t *testing.T) {
	_, _, err := loadFixture(t, `
workflow "bad" {
  on {
    schedule { cron = "99 99 * * *" }
  }
  job "j" {
    step "s" { run = "true" }
  }
}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron spec")
}

func TestLoad_RejectsUnknownExcludeAxis(t *testing.T) {
	_, _, err := loadFixture(t, `
workflow "bad" {
  on {
    push {}
  }
  job "j" {
    strategy {
      matrix {
        axis "os" { values = ["linux"] }
        exclude { arch = "amd64" }
      }
    }
    step "s" { run = "true" }
  }
}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown axis")
}

func TestLoad_RejectsEmptyTriggerBlock(t *testing.T) {
	_, _, err := loadFixture(t, `
workflow "bad" {
  on {}
  job "j" {
    step "s" { run = "true" }
  }
}
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty 'on' block")
}

func TestLoad_MissingPathIsAnError(t *testing.T) {
	_, _, err := NewLoader().Load(context.Background(), "/definitely/not/here.hcl")
	assert.Error(t, err)
}
