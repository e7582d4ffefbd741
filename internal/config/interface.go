package config

import (
	"context"

	"github.com/hashicorp/hcl/v2"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads workflow definitions from the given paths, translates them
	// into the format-agnostic model, and returns a matching Converter.
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
}

// Converter is the interface for a format-specific data binding
// implementation. It bridges raw argument expressions and the Go input
// structs used by action modules.
type Converter interface {
	// DecodeArgs evaluates the argument expressions against evalCtx and
	// populates the target Go struct. Fields are matched by their `mxf` tag;
	// a field tagged ",optional" may be absent, everything else is required.
	DecodeArgs(
		ctx context.Context,
		inputStruct any,
		args map[string]hcl.Expression,
		evalCtx *hcl.EvalContext,
	) error
}
