// Package testutil provides a shared harness for system tests that exercise
// the full startup-plan-execute path of the application.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/matrixflow/internal/app"
	"github.com/vk/matrixflow/internal/registry"
)

// HarnessResult holds the outcomes of a system test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	LogsDir   string
}

// RunSystemTest writes the given workflow files to a temp directory, boots a
// full App against them, and runs the configured event end to end. Startup
// panics are recovered and surfaced as the result error.
func RunSystemTest(t *testing.T, files map[string]string, cfg app.Config, modules ...registry.Module) *HarnessResult {
	t.Helper()
	return RunSystemTestWithContext(context.Background(), t, files, cfg, modules...)
}

// RunSystemTestWithContext is RunSystemTest with a caller-provided context,
// for tests that need cancellation or deadlines.
func RunSystemTestWithContext(ctx context.Context, t *testing.T, files map[string]string, cfg app.Config, modules ...registry.Module) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	}

	cfg.WorkflowPath = tmpDir
	if cfg.LogsDir == "" {
		cfg.LogsDir = filepath.Join(tmpDir, "runs")
	}
	validated, err := app.NewConfig(cfg)
	require.NoError(t, err)

	logBuffer := &app.SafeBuffer{}

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp = app.SetupAppTestWithOutput(t, logBuffer, validated, modules...)
	}()

	if panicErr != nil {
		return &HarnessResult{
			LogOutput: logBuffer.String(),
			Err:       fmt.Errorf("application startup panicked | %v", panicErr),
			LogsDir:   validated.LogsDir,
		}
	}

	runErr := testApp.Run(ctx)

	if os.Getenv("MXF_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
		LogsDir:   validated.LogsDir,
	}
}
