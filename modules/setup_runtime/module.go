// Package setup_runtime provides the action that provisions an interpreter
// version for a job instance. Locally this records the requested version in
// the workspace and exports it to later steps; resolving an actual toolchain
// install is the hosting platform's concern.
package setup_runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/matrixflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the setup_runtime action.
type Input struct {
	// Runtime names the interpreter, e.g. "python". Defaults to "python".
	Runtime string `mxf:"runtime,optional"`
	// Version is the interpreter version to provision.
	Version string `mxf:"version"`
}

// Register registers the setup_runtime action with the central registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("setup_runtime", &registry.RegisteredAction{
		NewInput: func() any { return new(Input) },
		Fn:       onRun,
	})
}

func onRun(ctx context.Context, ac *registry.ActionContext, input any) (map[string]string, error) {
	in := input.(*Input)

	runtime := in.Runtime
	if runtime == "" {
		runtime = "python"
	}
	version := strings.TrimSpace(in.Version)
	if version == "" {
		return nil, fmt.Errorf("version must not be empty")
	}

	marker := filepath.Join(ac.Dir, fmt.Sprintf(".%s-version", runtime))
	if err := os.WriteFile(marker, []byte(version+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("failed to record runtime version: %w", err)
	}

	fmt.Fprintf(ac.Output, "Provisioned %s %s\n", runtime, version)
	return map[string]string{
		"RUNTIME":         runtime,
		"RUNTIME_VERSION": version,
	}, nil
}
