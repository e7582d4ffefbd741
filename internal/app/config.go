package app

import (
	"errors"

	"github.com/vk/matrixflow/internal/trigger"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// WorkflowPath is a .hcl file or a directory of workflow files.
	WorkflowPath string

	// EventKind and Branch describe the triggering event simulated by a
	// one-shot run. EventKind is ignored in watch mode.
	EventKind string
	Branch    string

	LogsDir         string
	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int
	Watch           bool
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.WorkflowPath == "" {
		return nil, errors.New("WorkflowPath is a required configuration field and cannot be empty")
	}
	if cfg.EventKind == "" {
		cfg.EventKind = string(trigger.KindPush)
	}
	if _, err := trigger.ParseKind(cfg.EventKind); err != nil {
		return nil, err
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 4
	}
	if cfg.LogsDir == "" {
		cfg.LogsDir = ".matrixflow/runs"
	}
	return &cfg, nil
}
