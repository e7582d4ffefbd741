// Package registry holds the named action handlers that `uses` steps
// resolve to. Modules self-register at startup; the registry is frozen
// before the first run begins.
package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Module is the interface that all action modules must implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// ActionContext carries the per-instance execution environment an action
// handler runs against.
type ActionContext struct {
	// Dir is the instance's isolated workspace directory.
	Dir string
	// Env is the instance environment in os/exec form ("KEY=value").
	Env []string
	// Matrix is the instance's axis assignment.
	Matrix map[string]string
	// Output receives the action's human-readable log output.
	Output io.Writer
}

// ActionFunc is the handler signature for an action. The returned map, if
// non-nil, is merged into the instance environment for subsequent steps.
type ActionFunc func(ctx context.Context, ac *ActionContext, input any) (map[string]string, error)

// RegisteredAction holds the compiled Go parts of an action.
type RegisteredAction struct {
	// NewInput returns a pointer to a fresh input struct for argument
	// decoding, or nil when the action takes no arguments.
	NewInput func() any
	Fn       ActionFunc
}

// Registry holds all registered actions for a single application instance.
type Registry struct {
	Actions map[string]*RegisteredAction
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{Actions: make(map[string]*RegisteredAction)}
}

// RegisterAction registers an action handler under a name. Double
// registration is a programmer error.
func (r *Registry) RegisterAction(name string, action *RegisteredAction) {
	if _, exists := r.Actions[name]; exists {
		panic(fmt.Sprintf("action with name '%s' already registered", name))
	}
	slog.Debug("Registering action handler.", "name", name)
	r.Actions[name] = action
}

// Lookup returns the action registered under name.
func (r *Registry) Lookup(name string) (*RegisteredAction, bool) {
	action, ok := r.Actions[name]
	return action, ok
}

// Validate checks the integrity of every registered action.
func (r *Registry) Validate(ctx context.Context) error {
	for name, action := range r.Actions {
		if action == nil || action.Fn == nil {
			return fmt.Errorf("action '%s' registered without a handler function", name)
		}
		if action.NewInput != nil && action.NewInput() == nil {
			return fmt.Errorf("action '%s': NewInput must return a non-nil pointer", name)
		}
	}
	return nil
}
