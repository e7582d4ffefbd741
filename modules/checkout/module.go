// Package checkout provides the action that puts the source tree into a job
// instance's workspace, either by cloning a git URL or by copying a local
// directory.
package checkout

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/vk/matrixflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the checkout action.
type Input struct {
	// Source is a git URL or a local directory. Defaults to the current
	// working directory.
	Source string `mxf:"source,optional"`
	// Ref is the branch or tag to clone. Ignored for local directories.
	Ref string `mxf:"ref,optional"`
}

// Register registers the checkout action with the central registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("checkout", &registry.RegisteredAction{
		NewInput: func() any { return new(Input) },
		Fn:       onRun,
	})
}

func onRun(ctx context.Context, ac *registry.ActionContext, input any) (map[string]string, error) {
	in := input.(*Input)

	source := in.Source
	if source == "" {
		source = "."
	}

	if info, err := os.Stat(source); err == nil && info.IsDir() {
		abs, err := filepath.Abs(source)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(ac.Output, "Copying %s into workspace\n", abs)
		if err := copyTree(abs, ac.Dir); err != nil {
			return nil, fmt.Errorf("failed to copy source tree: %w", err)
		}
		return map[string]string{"CHECKOUT_SOURCE": abs}, nil
	}

	args := []string{"clone", "--depth", "1"}
	if in.Ref != "" {
		args = append(args, "--branch", in.Ref)
	}
	args = append(args, source, ".")

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = ac.Dir
	cmd.Env = ac.Env
	cmd.Stdout = ac.Output
	cmd.Stderr = ac.Output
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git clone failed: %w", err)
	}
	return map[string]string{"CHECKOUT_SOURCE": source}, nil
}

// copyTree copies src into dst, skipping VCS metadata.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() && strings.HasPrefix(filepath.Base(path), ".git") {
			return filepath.SkipDir
		}

		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
