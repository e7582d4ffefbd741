package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/matrixflow/internal/app"
	"github.com/vk/matrixflow/internal/testutil"
)

const filteredWorkflow = `
workflow "ci" {
  on {
    push { branches = ["main", "release"] }
  }

  job "test" {
    step "noop" { run = "true" }
  }
}
`

// Test for: a push to a listed branch runs the workflow.
func TestTriggerMatching_ListedBranch_Runs(t *testing.T) {
	result := testutil.RunSystemTest(t, map[string]string{"ci.hcl": filteredWorkflow}, app.Config{
		EventKind: "push",
		Branch:    "release",
	})

	require.NoError(t, result.Err)
	assert.Contains(t, result.LogOutput, "Execution finished")
}

// Test for: a push to an unlisted branch is filtered out.
func TestTriggerMatching_UnlistedBranch_Filtered(t *testing.T) {
	result := testutil.RunSystemTest(t, map[string]string{"ci.hcl": filteredWorkflow}, app.Config{
		EventKind: "push",
		Branch:    "feature/typo",
	})

	require.NoError(t, result.Err)
	assert.Contains(t, result.LogOutput, "No job instances matched the event")
}

// Test for: watch mode refuses to start when nothing is scheduled.
func TestTriggerMatching_WatchWithoutSchedules_Errors(t *testing.T) {
	result := testutil.RunSystemTest(t, map[string]string{"ci.hcl": filteredWorkflow}, app.Config{
		EventKind: "push",
		Branch:    "main",
		Watch:     true,
	})

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "schedule")
}
