// SPDX-License-Identifier: MIT

// Package hcl implements the HCL-backed config.Loader. It parses workflow
// files, decodes them into the schema structs, and translates those into the
// format-agnostic config model.
package hcl

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/matrixflow/internal/config"
	"github.com/vk/matrixflow/internal/ctxlog"
	"github.com/vk/matrixflow/internal/schema"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL workflow loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load orchestrates the entire HCL loading process. Each path may be a
// single .hcl file or a directory searched recursively.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := l.findWorkflowFiles(paths)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no workflow files (*.hcl) found in %v", paths)
	}
	logger.Debug("Discovered workflow files.", "count", len(files))

	model := &config.Model{}
	parser := hclparse.NewParser()
	seen := make(map[string]string)

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse workflow file %s: %w", file, diags)
		}

		var root schema.Root
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to decode workflow file %s: %w", file, diags)
		}

		for _, wf := range root.Workflows {
			if prev, dup := seen[wf.Name]; dup {
				return nil, nil, fmt.Errorf("workflow %q defined in both %s and %s", wf.Name, prev, file)
			}
			seen[wf.Name] = file

			translated, err := l.translateWorkflow(ctx, wf)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", file, err)
			}
			model.Workflows = append(model.Workflows, translated)
		}
	}

	logger.Debug("HCL loading complete.", "workflows", len(model.Workflows))
	return model, NewConverter(), nil
}

// findWorkflowFiles resolves each path to the .hcl files beneath it. A
// missing path is an error here, unlike optional config dirs: the caller
// asked for exactly this workflow.
func (l *Loader) findWorkflowFiles(paths []string) ([]string, error) {
	var all []string
	dedupe := make(map[string]struct{})

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		var found []string
		if info.IsDir() {
			found, err = workflowFilesIn(path)
			if err != nil {
				return nil, err
			}
		} else {
			found = []string{path}
		}

		for _, f := range found {
			if _, ok := dedupe[f]; ok {
				continue
			}
			dedupe[f] = struct{}{}
			all = append(all, f)
		}
	}
	return all, nil
}

// workflowFilesIn walks a directory tree and collects every .hcl workflow
// file, in walk order, so nested layouts like workflows/nightly/ work.
func workflowFilesIn(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".hcl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
