package runconfig

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/seantiz/groundstate/internal/registry"
)

// DecodeHCL parses an HCL configuration. Each top-level block is a section;
// the block type is the kind and the component name comes from either a
// single block label or a name attribute.
func DecodeHCL(data []byte, filename string) (Configuration, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return Configuration{}, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return Configuration{}, fmt.Errorf("failed to parse HCL file %s: unexpected body type %T", filename, file.Body)
	}
	if len(body.Attributes) > 0 {
		return Configuration{}, fmt.Errorf("%s: top-level attributes are not allowed, use blocks", filename)
	}

	var cfg Configuration
	for _, block := range body.Blocks {
		kind, err := registry.ParseKind(block.Type)
		if err != nil {
			return Configuration{}, fmt.Errorf("%s:%d: %w", filename, block.TypeRange.Start.Line, err)
		}
		if len(block.Labels) > 1 {
			return Configuration{}, fmt.Errorf("%s:%d: %s block takes at most one label", filename, block.TypeRange.Start.Line, kind)
		}
		if len(block.Body.Blocks) > 0 {
			return Configuration{}, fmt.Errorf("%s:%d: nested blocks are not allowed in %s", filename, block.TypeRange.Start.Line, kind)
		}

		m := make(map[string]any, len(block.Body.Attributes))
		for name, attr := range block.Body.Attributes {
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return Configuration{}, fmt.Errorf("%s: %s.%s: %w", filename, kind, name, diags)
			}
			native, err := ctyToNative(val)
			if err != nil {
				return Configuration{}, fmt.Errorf("%s: %s.%s: %w", filename, kind, name, err)
			}
			m[name] = native
		}

		s, err := sectionFromMap(kind, m)
		if err != nil {
			return Configuration{}, fmt.Errorf("%s: %w", filename, err)
		}
		if len(block.Labels) == 1 {
			if s.Name != "" && s.Name != block.Labels[0] {
				return Configuration{}, fmt.Errorf("%s: %s label %q conflicts with name %q", filename, kind, block.Labels[0], s.Name)
			}
			s.Name = block.Labels[0]
		}
		cfg.Sections = append(cfg.Sections, s)
	}
	return cfg, nil
}

// ctyToNative converts a cty value into plain Go values: strings, float64
// numbers, bools, []any and map[string]any.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert number to float64: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		it := v.ElementIterator()
		for it.Next() {
			key, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
