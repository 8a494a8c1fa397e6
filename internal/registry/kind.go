package registry

import (
	"maps"
	"slices"
)

// Kind identifies a family of interchangeable components.
type Kind string

// Component kinds. The string values double as configuration section keys.
const (
	KindAlgorithm       Kind = "algorithm"
	KindVariationalForm Kind = "variational_form"
	KindOptimizer       Kind = "optimizer"
	KindBackend         Kind = "backend"
	KindInput           Kind = "input"
	KindProblem         Kind = "problem"
)

// Kinds lists every known kind in construction order: kinds earlier in the
// list never depend on kinds later in it.
var Kinds = []Kind{
	KindProblem,
	KindInput,
	KindBackend,
	KindOptimizer,
	KindVariationalForm,
	KindAlgorithm,
}

// ParseKind converts a configuration section key into a Kind. An unknown
// key yields an *UnknownComponentError naming it.
func ParseKind(s string) (Kind, error) {
	if k := Kind(s); k.known() {
		return k, nil
	}
	return "", &UnknownComponentError{Kind: Kind(s)}
}

func (k Kind) known() bool {
	return slices.Contains(Kinds, k)
}

// Params is a set of named component parameters.
type Params map[string]any

// Clone returns a shallow copy of p. A nil receiver yields an empty map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	maps.Copy(out, p)
	return out
}
