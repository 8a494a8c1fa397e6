// Package assemble constructs resolved components in dependency order.
package assemble

import (
	"context"
	"fmt"

	"github.com/seantiz/groundstate/internal/algorithm"
	"github.com/seantiz/groundstate/internal/backend"
	"github.com/seantiz/groundstate/internal/ctxlog"
	"github.com/seantiz/groundstate/internal/registry"
	"github.com/seantiz/groundstate/internal/resolve"
	"github.com/seantiz/groundstate/internal/result"
)

// ComponentConstructionError wraps a factory failure with the component
// and parameters that were used.
type ComponentConstructionError struct {
	Kind   registry.Kind
	Name   string
	Params registry.Params
	Err    error
}

func (e *ComponentConstructionError) Error() string {
	return fmt.Sprintf("construct %s %q with %v: %v", e.Kind, e.Name, map[string]any(e.Params), e.Err)
}

func (e *ComponentConstructionError) Unwrap() error { return e.Err }

// Graph is an assembled component set ready to run.
type Graph struct {
	Algorithm algorithm.Algorithm
	// Backend is nil when the configuration named none.
	Backend backend.Backend
	Problem result.ProblemType
	Input   any
	// Components holds every constructed instance by kind.
	Components map[registry.Kind]any
	Specs      []resolve.Spec
}

// Assemble builds specs in order, handing each factory the instances its
// spec depends on and the caller's input payload. specs must be in the
// order Resolve returns, with the algorithm last.
func Assemble(ctx context.Context, reg *registry.Registry, specs []resolve.Spec, payload any) (*Graph, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("assemble: no components")
	}
	logger := ctxlog.FromContext(ctx)
	built := make(map[registry.Kind]any, len(specs))

	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := reg.Lookup(spec.Kind, spec.Name)
		if err != nil {
			return nil, err
		}

		deps := make(map[registry.Kind]any, len(spec.Requires))
		for _, k := range spec.Requires {
			dep, ok := built[k]
			if !ok {
				return nil, fmt.Errorf("assemble %s: dependency %s not built yet", spec.Label(), k)
			}
			deps[k] = dep
		}

		instance, err := entry.Factory(spec.Params.Clone(), registry.NewDeps(deps, payload))
		if err != nil {
			return nil, &ComponentConstructionError{Kind: spec.Kind, Name: spec.Name, Params: spec.Params.Clone(), Err: err}
		}
		built[spec.Kind] = instance
		logger.Debug("component built", "kind", spec.Kind, "name", spec.Name)
	}

	root := specs[len(specs)-1]
	if root.Kind != registry.KindAlgorithm {
		return nil, fmt.Errorf("assemble: last component is %s, want an algorithm", root.Label())
	}
	algo, ok := built[registry.KindAlgorithm].(algorithm.Algorithm)
	if !ok {
		return nil, &ComponentConstructionError{
			Kind: root.Kind, Name: root.Name, Params: root.Params.Clone(),
			Err: fmt.Errorf("factory returned %T, which is not an algorithm", built[registry.KindAlgorithm]),
		}
	}

	g := &Graph{
		Algorithm:  algo,
		Problem:    result.ProblemEnergy,
		Input:      payload,
		Components: built,
		Specs:      specs,
	}
	if be, ok := built[registry.KindBackend].(backend.Backend); ok {
		g.Backend = be
	}
	if in, ok := built[registry.KindInput]; ok {
		g.Input = in
	}
	if p, ok := built[registry.KindProblem].(interface{ ProblemType() result.ProblemType }); ok {
		g.Problem = p.ProblemType()
	}
	return g, nil
}
