package hcl

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/matrixflow/internal/ctxlog"
)

// Converter is the HCL-specific implementation of the config.Converter
// interface.
type Converter struct{}

// NewConverter creates a new HCL converter.
func NewConverter() *Converter {
	return &Converter{}
}

// DecodeArgs evaluates argument expressions and populates the provided Go
// struct using reflection. Struct fields opt in via the `mxf` tag; a tag
// suffixed with ",optional" tolerates a missing argument.
func (c *Converter) DecodeArgs(
	ctx context.Context,
	inputStruct any,
	args map[string]hcl.Expression,
	evalCtx *hcl.EvalContext,
) error {
	logger := ctxlog.FromContext(ctx)

	structVal := reflect.ValueOf(inputStruct)
	if structVal.Kind() != reflect.Ptr || structVal.IsNil() {
		return fmt.Errorf("inputStruct must be a non-nil pointer")
	}
	structVal = structVal.Elem()
	structType := structVal.Type()

	known := make(map[string]struct{}, structType.NumField())

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		fieldVal := structVal.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		tag := field.Tag.Get("mxf")
		if tag == "" || tag == "-" {
			continue
		}
		parts := strings.Split(tag, ",")
		lookupName := parts[0]
		optional := len(parts) > 1 && parts[1] == "optional"
		known[lookupName] = struct{}{}

		argExpr, provided := args[lookupName]
		if !provided {
			if optional {
				continue
			}
			return fmt.Errorf("missing required argument %q", lookupName)
		}

		val, diags := argExpr.Value(evalCtx)
		if diags.HasErrors() {
			return fmt.Errorf("evaluating argument %q: %w", lookupName, diags)
		}
		if err := c.decode(val, fieldVal.Addr().Interface()); err != nil {
			return fmt.Errorf("failed to decode argument %q: %w", lookupName, err)
		}
	}

	// Arguments the handler has no field for are almost certainly typos.
	for name := range args {
		if _, ok := known[name]; !ok {
			return fmt.Errorf("unsupported argument %q", name)
		}
	}

	logger.Debug("Finished decoding action arguments.", "count", len(args))
	return nil
}

// decode handles the conversion of a cty.Value into a Go pointer target.
func (c *Converter) decode(val cty.Value, goVal any) error {
	valPtr := reflect.ValueOf(goVal)
	if valPtr.Kind() != reflect.Ptr {
		return fmt.Errorf("target for decoding must be a pointer, got %T", goVal)
	}

	impliedType, err := gocty.ImpliedType(valPtr.Elem().Interface())
	if err != nil {
		return gocty.FromCtyValue(val, goVal)
	}

	convertedVal, err := convert.Convert(val, impliedType)
	if err != nil {
		return fmt.Errorf("cannot convert %s to required type %s: %w",
			val.Type().FriendlyName(), impliedType.FriendlyName(), err)
	}

	return gocty.FromCtyValue(convertedVal, goVal)
}
