// Package coverage_upload provides the action that sends a generated
// coverage report to an external collection service.
package coverage_upload

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/vk/matrixflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the coverage_upload action.
type Input struct {
	// File is the coverage report, relative to the workspace.
	File string `mxf:"file"`
	// URL is the upload endpoint.
	URL string `mxf:"url"`
	// Token is sent as a bearer token when set.
	Token string `mxf:"token,optional"`
	// Flags tags the upload, e.g. with the matrix combination.
	Flags string `mxf:"flags,optional"`
}

// Register registers the coverage_upload action with the central registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("coverage_upload", &registry.RegisteredAction{
		NewInput: func() any { return new(Input) },
		Fn:       onRun,
	})
}

func onRun(ctx context.Context, ac *registry.ActionContext, input any) (map[string]string, error) {
	in := input.(*Input)

	path := in.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(ac.Dir, path)
	}
	report, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read coverage report: %w", err)
	}

	endpoint, err := url.Parse(in.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid upload URL: %w", err)
	}
	if in.Flags != "" {
		q := endpoint.Query()
		q.Set("flags", in.Flags)
		endpoint.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(report))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain")
	if in.Token != "" {
		req.Header.Set("Authorization", "Bearer "+in.Token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coverage upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("coverage service returned status %d", resp.StatusCode)
	}

	fmt.Fprintf(ac.Output, "Uploaded %d bytes of coverage to %s\n", len(report), in.URL)
	return nil, nil
}
