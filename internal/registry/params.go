package registry

import (
	"encoding/json"
	"fmt"
	"math"
)

// Configuration decoders produce numbers as float64 (JSON, HCL), int (YAML)
// or json.Number. The accessors below accept any of them.

// Int returns the parameter as an int.
func (p Params) Int(name string) (int, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return 0, fmt.Errorf("parameter %q is not set", name)
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %w", name, err)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("parameter %q: %v is not an integer", name, v)
	}
	// -math.MinInt is 2^63, the first float64 above the int range.
	if f < math.MinInt || f >= -math.MinInt {
		return 0, fmt.Errorf("parameter %q: %v is out of range", name, v)
	}
	return int(f), nil
}

// Float returns the parameter as a float64.
func (p Params) Float(name string) (float64, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return 0, fmt.Errorf("parameter %q is not set", name)
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %w", name, err)
	}
	return f, nil
}

// String returns the parameter as a string.
func (p Params) String(name string) (string, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return "", fmt.Errorf("parameter %q is not set", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q: want string, got %T", name, v)
	}
	return s, nil
}

// Floats returns the parameter as a []float64. An unset or nil parameter
// yields a nil slice and no error.
func (p Params) Floats(name string) ([]float64, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return nil, nil
	}
	switch vals := v.(type) {
	case []float64:
		return append([]float64(nil), vals...), nil
	case []any:
		out := make([]float64, len(vals))
		for i, e := range vals {
			f, err := toFloat(e)
			if err != nil {
				return nil, fmt.Errorf("parameter %q[%d]: %w", name, i, err)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("parameter %q: want list of numbers, got %T", name, v)
	}
}

// OptionalInt returns the parameter as an int, or ok=false when it is unset or nil.
func (p Params) OptionalInt(name string) (n int, ok bool, err error) {
	if v, present := p[name]; !present || v == nil {
		return 0, false, nil
	}
	n, err = p.Int(name)
	return n, err == nil, err
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("want number, got %T", v)
	}
}
