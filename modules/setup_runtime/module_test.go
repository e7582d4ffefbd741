package setup_runtime

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/matrixflow/internal/registry"
)

func TestOnRun(t *testing.T) {
	workspace := t.TempDir()
	var out bytes.Buffer
	ac := &registry.ActionContext{Dir: workspace, Output: &out}

	exported, err := onRun(context.Background(), ac, &Input{Version: "3.10"})
	require.NoError(t, err)

	assert.Equal(t, "python", exported["RUNTIME"])
	assert.Equal(t, "3.10", exported["RUNTIME_VERSION"])
	assert.Contains(t, out.String(), "Provisioned python 3.10")

	data, err := os.ReadFile(filepath.Join(workspace, ".python-version"))
	require.NoError(t, err)
	assert.Equal(t, "3.10\n", string(data))
}

func TestOnRun_RejectsEmptyVersion(t *testing.T) {
	ac := &registry.ActionContext{Dir: t.TempDir(), Output: &bytes.Buffer{}}
	_, err := onRun(context.Background(), ac, &Input{Version: "  "})
	assert.Error(t, err)
}
