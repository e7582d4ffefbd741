// Package logstore persists the artifacts of a run: one log file per
// executed step, grouped by job instance, plus a machine-readable report of
// the whole run.
package logstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store manages the on-disk layout of run artifacts under a base directory:
//
//	<base>/<runID>/<instance>/NN_<step>.log
//	<base>/<runID>/report.json
type Store struct {
	BaseDir string
}

// New creates a new log store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{BaseDir: baseDir}
}

// SaveStepLog writes the captured output of one step. The index prefix keeps
// directory listings in execution order.
func (s *Store) SaveStepLog(runID, instanceID string, index int, stepName, output string) (string, error) {
	dir := filepath.Join(s.BaseDir, sanitize(runID), sanitize(instanceID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%02d_%s.log", index, sanitize(stepName)))
	if err := os.WriteFile(path, []byte(output), 0644); err != nil {
		return "", fmt.Errorf("failed to write step log: %w", err)
	}
	return path, nil
}

// WriteReport marshals the run report as indented JSON next to the logs.
func (s *Store) WriteReport(runID string, report any) (string, error) {
	dir := filepath.Join(s.BaseDir, sanitize(runID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run report: %w", err)
	}

	path := filepath.Join(dir, "report.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write run report: %w", err)
	}
	return path, nil
}

// sanitize keeps names filesystem-safe. Spaces and the workflow/job
// separator become underscores so instance IDs like
// "ci/test (ubuntu-latest, 3.10)" stay readable.
func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		case r == '-' || r == '_' || r == '.':
			out = append(out, r)
		case r == ' ' || r == '/':
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "unnamed"
	}
	return string(out)
}
